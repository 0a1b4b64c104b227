package executor

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/prasenjit/go-gateway/internal/auth"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/protocol"
)

// redacted replaces credential values in call results and logs.
const redacted = "***"

// describeRequest records the outbound request on result with every value
// written by an auth strategy masked.
func describeRequest(result *models.CallResult, req *protocol.Request, applied *auth.Result) {
	var secretHeaders, secretQuery, secretCookies []string
	if applied != nil {
		secretHeaders, secretQuery, secretCookies = applied.Headers, applied.Query, applied.Cookies
	}

	masked := *req
	if len(secretQuery) > 0 {
		masked.Query = url.Values{}
		for k, v := range req.Query {
			if slices.Contains(secretQuery, k) {
				masked.Query[k] = []string{redacted}
				continue
			}
			masked.Query[k] = v
		}
	}
	result.URL = masked.URL()

	result.RequestHeaders = make(map[string]string, len(req.Header)+1)
	for k, v := range req.Header {
		if len(v) == 0 {
			continue
		}
		if slices.Contains(secretHeaders, http.CanonicalHeaderKey(k)) {
			result.RequestHeaders[k] = redacted
			continue
		}
		result.RequestHeaders[k] = v[0]
	}
	if len(req.Cookies) > 0 {
		parts := make([]string, 0, len(req.Cookies))
		for _, c := range req.Cookies {
			value := c.Value
			if slices.Contains(secretCookies, c.Name) {
				value = redacted
			}
			parts = append(parts, c.Name+"="+value)
		}
		result.RequestHeaders["Cookie"] = strings.Join(parts, "; ")
	}

	if len(req.Body) > 0 {
		result.RequestBody = string(req.Body)
	}
}

// describeResponse normalizes the upstream answer onto result.
func describeResponse(result *models.CallResult, resp *protocol.Response) {
	result.Success = true
	result.StatusCode = resp.StatusCode
	result.ResponseHeaders = make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			result.ResponseHeaders[k] = strings.Join(v, ", ")
		}
	}
	if resp.Truncated {
		result.Warnings = append(result.Warnings, "response body truncated")
	}
	result.ResponseBody = protocol.JSONBody(resp.Body)
}
