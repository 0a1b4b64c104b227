package models

import (
	"sync/atomic"
	"time"
)

// GlobalStats represents gateway-wide call statistics
type GlobalStats struct {
	TotalCalls        int64          `json:"totalCalls"`
	TotalFailures     int64          `json:"totalFailures"`       // gateway-level failures
	TotalUpstreamErrs int64          `json:"totalUpstreamErrors"` // upstream 4xx/5xx
	ActiveSpecs       int            `json:"activeSpecs"`
	TotalEndpoints    int            `json:"totalEndpoints"`
	AvgDurationMs     float64        `json:"avgDurationMs"`
	CallsPerSecond    float64        `json:"callsPerSecond"`
	StartTime         time.Time      `json:"startTime"`
	Uptime            string         `json:"uptime"`
	TopEndpoints      []EndpointStat `json:"topEndpoints"`
	RecentFailures    []FailureStat  `json:"recentFailures"`
	CallsByHour       []HourlyStat   `json:"callsByHour"`
}

// SpecStats represents statistics for one specification version
type SpecStats struct {
	SpecID        string         `json:"specId"`
	SpecName      string         `json:"specName"`
	TotalCalls    int64          `json:"totalCalls"`
	TotalFailures int64          `json:"totalFailures"`
	AvgDurationMs float64        `json:"avgDurationMs"`
	Endpoints     []EndpointStat `json:"endpoints"`
}

// EndpointStat represents statistics for a specific endpoint
type EndpointStat struct {
	EndpointID        string  `json:"endpointId"`
	SpecID            string  `json:"specId"`
	Method            string  `json:"method"`
	Path              string  `json:"path"`
	TotalCalls        int64   `json:"totalCalls"`
	TotalFailures     int64   `json:"totalFailures"`
	TotalUpstreamErrs int64   `json:"totalUpstreamErrors"`
	AvgDurationMs     float64 `json:"avgDurationMs"`
	MinDurationMs     float64 `json:"minDurationMs"`
	MaxDurationMs     float64 `json:"maxDurationMs"`
	LastCallTime      string  `json:"lastCallTime,omitempty"`
}

// FailureStat represents a failed call
type FailureStat struct {
	Timestamp  time.Time `json:"timestamp"`
	SpecID     string    `json:"specId"`
	EndpointID string    `json:"endpointId"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	Kind       string    `json:"kind"`
	Error      string    `json:"error"`
}

// HourlyStat represents hourly call statistics
type HourlyStat struct {
	Hour     string `json:"hour"`
	Calls    int64  `json:"calls"`
	Failures int64  `json:"failures"`
}

// AtomicEndpointStat is a thread-safe version of endpoint statistics
type AtomicEndpointStat struct {
	EndpointID        string
	SpecID            string
	Method            string
	Path              string
	TotalCalls        atomic.Int64
	TotalFailures     atomic.Int64
	TotalUpstreamErrs atomic.Int64
	TotalTimeNs       atomic.Int64
	MinTimeNs         atomic.Int64
	MaxTimeNs         atomic.Int64
	LastCallTime      atomic.Value // stores time.Time
}

// ToEndpointStat converts to a regular EndpointStat
func (a *AtomicEndpointStat) ToEndpointStat() EndpointStat {
	totalCalls := a.TotalCalls.Load()
	totalTimeNs := a.TotalTimeNs.Load()
	var avgMs float64
	if totalCalls > 0 {
		avgMs = float64(totalTimeNs) / float64(totalCalls) / 1e6
	}

	var lastCall string
	if t, ok := a.LastCallTime.Load().(time.Time); ok && !t.IsZero() {
		lastCall = t.Format(time.RFC3339)
	}

	return EndpointStat{
		EndpointID:        a.EndpointID,
		SpecID:            a.SpecID,
		Method:            a.Method,
		Path:              a.Path,
		TotalCalls:        totalCalls,
		TotalFailures:     a.TotalFailures.Load(),
		TotalUpstreamErrs: a.TotalUpstreamErrs.Load(),
		AvgDurationMs:     avgMs,
		MinDurationMs:     float64(a.MinTimeNs.Load()) / 1e6,
		MaxDurationMs:     float64(a.MaxTimeNs.Load()) / 1e6,
		LastCallTime:      lastCall,
	}
}
