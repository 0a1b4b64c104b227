package models

import (
	"encoding/json"
	"time"
)

// Gateway-level failure kinds reported in CallResult.Error
const (
	ErrorKindTimeout           = "Timeout"
	ErrorKindConnectionRefused = "ConnectionRefused"
	ErrorKindDNSFailure        = "DnsFailure"
	ErrorKindCanceled          = "Canceled"
	ErrorKindNetwork           = "Network"
)

// CallRequest carries the caller's inputs for one gateway call
type CallRequest struct {
	PathParams  map[string]string `json:"pathParams"`
	QueryParams map[string]string `json:"queryParams"`
	Headers     map[string]string `json:"headers"`
	Cookies     map[string]string `json:"cookies"`
	Body        json.RawMessage   `json:"body,omitempty"`
}

// CallByPathRequest is the input of callByPath
type CallByPathRequest struct {
	CallRequest
	Path   string `json:"path"`
	Method string `json:"method"`
}

// CallError describes why a gateway call did not reach the upstream or did
// not get an answer from it
type CallError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CallResult is the normalized outcome of one upstream call. An upstream
// 4xx or 5xx is still Success: the gateway did its job.
type CallResult struct {
	ID              string            `json:"id"`
	SpecID          string            `json:"specId"`
	EndpointID      string            `json:"endpointId"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	RequestHeaders  map[string]string `json:"requestHeaders"`
	RequestBody     string            `json:"requestBody,omitempty"`
	StatusCode      int               `json:"statusCode,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	ResponseBody    json.RawMessage   `json:"responseBody,omitempty"`
	Success         bool              `json:"success"`
	Error           *CallError        `json:"error,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
	StartedAt       time.Time         `json:"startedAt"`
	DurationMs      float64           `json:"durationMs"`
}
