// Package tracing keeps a bounded in-memory log of gateway calls and fans
// new entries out to live subscribers.
package tracing

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prasenjit/go-gateway/internal/models"
)

// Service manages the call log
type Service struct {
	mu          sync.RWMutex
	calls       []*models.CallLog
	maxCalls    int
	subscribers map[string]chan *models.CallLog
}

// NewService creates a new tracing service
func NewService(maxCalls int) *Service {
	if maxCalls <= 0 {
		maxCalls = 1000
	}

	return &Service{
		calls:       make([]*models.CallLog, 0),
		maxCalls:    maxCalls,
		subscribers: make(map[string]chan *models.CallLog),
	}
}

// RecordCall appends a call log entry and notifies subscribers. Slow
// subscribers miss entries rather than block the call path.
func (s *Service) RecordCall(entry *models.CallLog) {
	s.mu.Lock()

	// Generate ID if not set
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	// Set timestamp if not set
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.calls = append(s.calls, entry)

	// Trim if over max
	if len(s.calls) > s.maxCalls {
		s.calls = s.calls[len(s.calls)-s.maxCalls:]
	}

	s.mu.Unlock()

	// Unsubscribe closes channels under the write lock, so holding the read
	// lock here keeps every send on an open channel.
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- entry:
		default:
			// Channel full, skip
		}
	}
}

// GetCalls returns entries matching the filter, newest first
func (s *Service) GetCalls(filter *models.CallLogFilter) []*models.CallLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.CallLog, 0)

	for i := len(s.calls) - 1; i >= 0; i-- {
		entry := s.calls[i]

		if filter != nil && !matches(filter, entry) {
			continue
		}

		result = append(result, entry)

		// Apply limit
		if filter != nil && filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}

	return result
}

func matches(filter *models.CallLogFilter, entry *models.CallLog) bool {
	switch {
	case filter.SpecID != "" && entry.SpecID != filter.SpecID:
		return false
	case filter.EndpointID != "" && entry.EndpointID != filter.EndpointID:
		return false
	case filter.Method != "" && entry.Request.Method != filter.Method:
		return false
	case filter.StatusCode != 0 && entry.Response.StatusCode != filter.StatusCode:
		return false
	case filter.Success != nil && entry.Success != *filter.Success:
		return false
	case !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime):
		return false
	case !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime):
		return false
	}
	return true
}

// GetCall returns a single entry by ID
func (s *Service) GetCall(id string) *models.CallLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.calls {
		if entry.ID == id {
			return entry
		}
	}

	return nil
}

// ClearCalls removes all entries
func (s *Service) ClearCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = make([]*models.CallLog, 0)
}

// ClearCallsBySpec removes the entries of a specific spec
func (s *Service) ClearCallsBySpec(specID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]*models.CallLog, 0)
	for _, entry := range s.calls {
		if entry.SpecID != specID {
			filtered = append(filtered, entry)
		}
	}
	s.calls = filtered
}

// Subscribe creates a subscription for live call logs
func (s *Service) Subscribe() (string, chan *models.CallLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan *models.CallLog, 100)
	s.subscribers[id] = ch

	return id, ch
}

// Unsubscribe removes a subscription
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// GetStats returns call log statistics
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"totalCalls":        len(s.calls),
		"maxCalls":          s.maxCalls,
		"activeSubscribers": len(s.subscribers),
	}
}
