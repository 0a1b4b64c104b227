// Package stats aggregates per-endpoint call statistics in memory.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/prasenjit/go-gateway/internal/models"
)

// Collector collects and aggregates statistics
type Collector struct {
	mu             sync.RWMutex
	startTime      time.Time
	endpoints      map[string]*models.AtomicEndpointStat // endpointID -> stats
	recentFailures []models.FailureStat
	hourlyStats    map[string]*hourlyCounter // "YYYY-MM-DD-HH" -> counter
	maxFailures    int
	maxHourlySlots int
	now            func() time.Time
}

type hourlyCounter struct {
	Hour     string
	Calls    int64
	Failures int64
}

// NewCollector creates a new statistics collector
func NewCollector() *Collector {
	c := &Collector{
		maxFailures:    100,
		maxHourlySlots: 168, // 7 days
		now:            time.Now,
	}
	c.reset()
	return c
}

func (c *Collector) reset() {
	c.startTime = c.now()
	c.endpoints = make(map[string]*models.AtomicEndpointStat)
	c.recentFailures = make([]models.FailureStat, 0)
	c.hourlyStats = make(map[string]*hourlyCounter)
}

// Record records one finished call against its endpoint. A call that got
// no upstream answer counts as a failure; an upstream status of 400 or more
// counts as an upstream error.
func (c *Collector) Record(endpoint *models.Endpoint, result *models.CallResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	durationNs := int64(result.DurationMs * float64(time.Millisecond))

	// Get or create endpoint stats
	epStats, ok := c.endpoints[endpoint.ID]
	if !ok {
		epStats = &models.AtomicEndpointStat{
			EndpointID: endpoint.ID,
			SpecID:     endpoint.SpecID,
			Method:     endpoint.Method,
			Path:       endpoint.Path,
		}
		epStats.MinTimeNs.Store(durationNs)
		c.endpoints[endpoint.ID] = epStats
	}

	// Update stats
	epStats.TotalCalls.Add(1)
	epStats.TotalTimeNs.Add(durationNs)
	epStats.LastCallTime.Store(c.now())

	// Update min/max
	for {
		currentMin := epStats.MinTimeNs.Load()
		if durationNs >= currentMin || epStats.MinTimeNs.CompareAndSwap(currentMin, durationNs) {
			break
		}
	}
	for {
		currentMax := epStats.MaxTimeNs.Load()
		if durationNs <= currentMax || epStats.MaxTimeNs.CompareAndSwap(currentMax, durationNs) {
			break
		}
	}

	failed := !result.Success
	if failed {
		epStats.TotalFailures.Add(1)
		failure := models.FailureStat{
			Timestamp:  c.now(),
			SpecID:     endpoint.SpecID,
			EndpointID: endpoint.ID,
			Path:       endpoint.Path,
			Method:     endpoint.Method,
		}
		if result.Error != nil {
			failure.Kind = result.Error.Kind
			failure.Error = result.Error.Message
		}
		c.recentFailures = append(c.recentFailures, failure)
		if len(c.recentFailures) > c.maxFailures {
			c.recentFailures = c.recentFailures[1:]
		}
	} else if result.StatusCode >= 400 {
		epStats.TotalUpstreamErrs.Add(1)
	}

	// Update hourly stats
	hourKey := c.now().Format("2006-01-02-15")
	hourly, ok := c.hourlyStats[hourKey]
	if !ok {
		hourly = &hourlyCounter{Hour: hourKey}
		c.hourlyStats[hourKey] = hourly
		c.cleanupOldHourlyStats()
	}
	hourly.Calls++
	if failed {
		hourly.Failures++
	}
}

// Forget drops the statistics of every endpoint of a specification.
func (c *Collector) Forget(specID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ep := range c.endpoints {
		if ep.SpecID == specID {
			delete(c.endpoints, id)
		}
	}
}

// cleanupOldHourlyStats removes hourly stats older than maxHourlySlots
func (c *Collector) cleanupOldHourlyStats() {
	if len(c.hourlyStats) <= c.maxHourlySlots {
		return
	}

	// Get sorted keys
	keys := make([]string, 0, len(c.hourlyStats))
	for k := range c.hourlyStats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Remove oldest entries
	toRemove := len(keys) - c.maxHourlySlots
	for i := 0; i < toRemove; i++ {
		delete(c.hourlyStats, keys[i])
	}
}

// GetGlobalStats returns global statistics
func (c *Collector) GetGlobalStats(activeSpecs, totalEndpoints int) *models.GlobalStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var totalCalls, totalFailures, totalUpstream, totalTimeNs int64

	epStats := make([]models.EndpointStat, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		stat := ep.ToEndpointStat()
		epStats = append(epStats, stat)
		totalCalls += stat.TotalCalls
		totalFailures += stat.TotalFailures
		totalUpstream += stat.TotalUpstreamErrs
		totalTimeNs += ep.TotalTimeNs.Load()
	}

	// Sort by total calls (descending)
	sort.Slice(epStats, func(i, j int) bool {
		if epStats[i].TotalCalls != epStats[j].TotalCalls {
			return epStats[i].TotalCalls > epStats[j].TotalCalls
		}
		return epStats[i].EndpointID < epStats[j].EndpointID
	})

	// Top 10 endpoints
	top := epStats
	if len(top) > 10 {
		top = top[:10]
	}

	var avgDurationMs float64
	if totalCalls > 0 {
		avgDurationMs = float64(totalTimeNs) / float64(totalCalls) / 1e6
	}

	uptime := c.now().Sub(c.startTime)
	var callsPerSecond float64
	if uptime.Seconds() > 0 {
		callsPerSecond = float64(totalCalls) / uptime.Seconds()
	}

	return &models.GlobalStats{
		TotalCalls:        totalCalls,
		TotalFailures:     totalFailures,
		TotalUpstreamErrs: totalUpstream,
		ActiveSpecs:       activeSpecs,
		TotalEndpoints:    totalEndpoints,
		AvgDurationMs:     avgDurationMs,
		CallsPerSecond:    callsPerSecond,
		StartTime:         c.startTime,
		Uptime:            formatDuration(uptime),
		TopEndpoints:      top,
		RecentFailures:    append([]models.FailureStat(nil), c.recentFailures...),
		CallsByHour:       c.buildHourlyStats(),
	}
}

// GetSpecStats returns statistics for a specific spec
func (c *Collector) GetSpecStats(specID, specName string) *models.SpecStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var totalCalls, totalFailures, totalTimeNs int64
	epStats := make([]models.EndpointStat, 0)

	for _, ep := range c.endpoints {
		if ep.SpecID != specID {
			continue
		}

		stat := ep.ToEndpointStat()
		epStats = append(epStats, stat)
		totalCalls += stat.TotalCalls
		totalFailures += stat.TotalFailures
		totalTimeNs += ep.TotalTimeNs.Load()
	}
	sort.Slice(epStats, func(i, j int) bool { return epStats[i].EndpointID < epStats[j].EndpointID })

	var avgDurationMs float64
	if totalCalls > 0 {
		avgDurationMs = float64(totalTimeNs) / float64(totalCalls) / 1e6
	}

	return &models.SpecStats{
		SpecID:        specID,
		SpecName:      specName,
		TotalCalls:    totalCalls,
		TotalFailures: totalFailures,
		AvgDurationMs: avgDurationMs,
		Endpoints:     epStats,
	}
}

// GetEndpointStats returns statistics for a specific endpoint
func (c *Collector) GetEndpointStats(endpointID string) *models.EndpointStat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if ep, ok := c.endpoints[endpointID]; ok {
		stat := ep.ToEndpointStat()
		return &stat
	}

	return nil
}

// buildHourlyStats builds the hourly statistics array
func (c *Collector) buildHourlyStats() []models.HourlyStat {
	// Get sorted keys for the last 24 hours
	now := c.now()
	stats := make([]models.HourlyStat, 0, 24)

	for i := 23; i >= 0; i-- {
		hour := now.Add(-time.Duration(i) * time.Hour)
		hourKey := hour.Format("2006-01-02-15")

		stat := models.HourlyStat{
			Hour: hour.Format("15:00"),
		}

		if hourly, ok := c.hourlyStats[hourKey]; ok {
			stat.Calls = hourly.Calls
			stat.Failures = hourly.Failures
		}

		stats = append(stats, stat)
	}

	return stats
}

// Reset resets all statistics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return d.Round(time.Minute).String()
	case d >= time.Minute:
		return d.Round(time.Second).String()
	}
	return d.Round(time.Millisecond).String()
}
