package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
)

// BaseURL returns the URL calls are sent to: override when one is given,
// otherwise the first server with its variables replaced by their defaults.
// The result has no trailing slash.
func (m *Model) BaseURL(override string) (string, error) {
	raw := strings.TrimSpace(override)
	pointer := ""
	if raw == "" {
		if len(m.Servers) == 0 {
			return "", &gwerrors.ValidationError{
				Path:    "#/servers",
				Message: "document declares no servers and no base URL was given",
			}
		}
		pointer = "#/servers/0/url"
		expanded, err := expandServer(m.Servers[0])
		if err != nil {
			return "", &gwerrors.ValidationError{Path: pointer, Message: err.Error()}
		}
		raw = expanded
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &gwerrors.ValidationError{Path: pointer, Message: fmt.Sprintf("invalid base URL %q: %v", raw, err)}
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &gwerrors.ValidationError{
			Path:    pointer,
			Message: fmt.Sprintf("base URL %q is not absolute; register the specification with a base URL", raw),
		}
	}
	return strings.TrimRight(raw, "/"), nil
}

// expandServer substitutes {name} placeholders with variable defaults.
func expandServer(s Server) (string, error) {
	var b strings.Builder
	rest := s.URL
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated variable in server URL %q", s.URL)
		}
		name := rest[start+1 : start+end]
		value, ok := s.Variables[name]
		if !ok || value == "" {
			return "", fmt.Errorf("server variable %q has no default", name)
		}
		b.WriteString(rest[:start])
		b.WriteString(value)
		rest = rest[start+end+1:]
	}
}
