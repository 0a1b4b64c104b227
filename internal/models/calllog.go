package models

import (
	"time"
)

// CallLog represents a captured gateway call
type CallLog struct {
	ID           string          `json:"id"`
	SpecID       string          `json:"specId"`
	SpecName     string          `json:"specName"`
	EndpointID   string          `json:"endpointId"`
	EndpointPath string          `json:"endpointPath"`
	Timestamp    time.Time       `json:"timestamp"`
	Duration     int64           `json:"duration"` // Duration in nanoseconds
	Request      CallLogRequest  `json:"request"`
	Response     CallLogResponse `json:"response"`
	Success      bool            `json:"success"`
	ErrorKind    string          `json:"errorKind,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// CallLogRequest represents the forwarded request
type CallLogRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
}

// CallLogResponse represents the upstream response
type CallLogResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
}

// CallLogFilter represents filters for querying call logs
type CallLogFilter struct {
	SpecID     string    `json:"specId,omitempty"`
	EndpointID string    `json:"endpointId,omitempty"`
	Method     string    `json:"method,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"`
	Success    *bool     `json:"success,omitempty"`
	StartTime  time.Time `json:"startTime,omitempty"`
	EndTime    time.Time `json:"endTime,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// NewCallLog builds the log entry for a finished call
func NewCallLog(spec *Specification, endpoint *Endpoint, result *CallResult) *CallLog {
	entry := &CallLog{
		ID:        result.ID,
		Timestamp: result.StartedAt,
		Duration:  int64(result.DurationMs * float64(time.Millisecond)),
		Request: CallLogRequest{
			Method:  result.Method,
			URL:     result.URL,
			Headers: result.RequestHeaders,
			Body:    result.RequestBody,
		},
		Response: CallLogResponse{
			StatusCode: result.StatusCode,
			Headers:    result.ResponseHeaders,
			Body:       string(result.ResponseBody),
		},
		Success: result.Success,
	}
	if spec != nil {
		entry.SpecID = spec.ID
		entry.SpecName = spec.Name
	}
	if endpoint != nil {
		entry.EndpointID = endpoint.ID
		entry.EndpointPath = endpoint.Path
	}
	if result.Error != nil {
		entry.ErrorKind = result.Error.Kind
		entry.Error = result.Error.Message
	}
	return entry
}
