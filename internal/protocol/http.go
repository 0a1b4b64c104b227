package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/tidwall/gjson"

	"github.com/prasenjit/go-gateway/internal/models"
)

// Config holds the outbound HTTP settings
type Config struct {
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration // time to wait for response headers
	MaxResponseBytes int64
	UserAgent        string
}

// HTTP is the Adapter for http and https URLs
type HTTP struct {
	client *http.Client
	cfg    Config
}

// NewHTTP creates an HTTP adapter with its own connection pool
func NewHTTP(cfg Config) *HTTP {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
	return &HTTP{
		client: &http.Client{
			Transport: transport,
			// Redirects are the caller's business, as with any proxy.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cfg: cfg,
	}
}

// Do sends req and reads the whole response body up to MaxResponseBytes.
func (h *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header = req.Header.Clone()
	if httpReq.Header.Get("User-Agent") == "" && h.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", h.cfg.UserAgent)
	}
	for _, c := range req.Cookies {
		httpReq.AddCookie(c)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Kind: Classify(err), Err: err}
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if h.cfg.MaxResponseBytes > 0 {
		reader = io.LimitReader(resp.Body, h.cfg.MaxResponseBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &NetworkError{Kind: Classify(err), Err: err}
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
	if h.cfg.MaxResponseBytes > 0 && int64(len(data)) > h.cfg.MaxResponseBytes {
		out.Body = data[:h.cfg.MaxResponseBytes]
		out.Truncated = true
	}
	return out, nil
}

// NetworkError is a failure to get any answer from the upstream
type NetworkError struct {
	Kind string // one of the models.ErrorKind* values
	Err  error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// Classify maps a transport error to a gateway error kind.
func Classify(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return models.ErrorKindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrorKindTimeout
	case errors.As(err, &dnsErr):
		return models.ErrorKindDNSFailure
	case errors.Is(err, syscall.ECONNREFUSED):
		return models.ErrorKindConnectionRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.ErrorKindTimeout
	}
	return models.ErrorKindNetwork
}

// JSONBody returns body unchanged when it is valid JSON, and as a JSON
// string otherwise. An empty body yields nil.
func JSONBody(body []byte) json.RawMessage {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if gjson.ValidBytes(body) {
		return json.RawMessage(body)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(string(body))
	return bytes.TrimRight(buf.Bytes(), "\n")
}
