// Package credential materializes credential values from templates, so an
// auth config can hold "{{env.API_TOKEN}}" instead of the secret itself.
package credential

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Engine expands {{source.key}} templates in credential values
type Engine struct {
	lookupEnv func(string) (string, bool)
	now       func() time.Time
}

// NewEngine creates an engine that reads the process environment
func NewEngine() *Engine {
	return &Engine{
		lookupEnv: os.LookupEnv,
		now:       time.Now,
	}
}

// WithEnv returns a copy of e that resolves env.* through lookup
func (e *Engine) WithEnv(lookup func(string) (string, bool)) *Engine {
	out := *e
	out.lookupEnv = lookup
	return &out
}

// Context contains the inbound call data templates may read from
type Context struct {
	PathParams  map[string]string
	QueryParams map[string]string
	Headers     map[string]string
	Body        string
}

// templateVarPattern matches template variables like {{variable}}
var templateVarPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// HasTemplate reports whether s contains at least one template variable
func HasTemplate(s string) bool {
	return templateVarPattern.MatchString(s)
}

// Expand replaces every template variable in s. Unknown sources and
// missing keys expand to the empty string.
func (e *Engine) Expand(s string, ctx *Context) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return templateVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSpace(match[2 : len(match)-2])
		return e.resolve(varName, ctx)
	})
}

// ExpandAll expands every value of a config map
func (e *Engine) ExpandAll(values map[string]string, ctx *Context) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = e.Expand(v, ctx)
	}
	return out
}

func (e *Engine) resolve(varName string, ctx *Context) string {
	// Both "env.X" and ".env.X" are accepted
	varName = strings.TrimPrefix(varName, ".")

	source, key, _ := strings.Cut(varName, ".")
	if ctx == nil {
		ctx = &Context{}
	}

	switch source {
	case "env":
		if v, ok := e.lookupEnv(key); ok {
			return v
		}
	case "path":
		return ctx.PathParams[key]
	case "query":
		return ctx.QueryParams[key]
	case "header":
		// Headers are case-insensitive
		for k, v := range ctx.Headers {
			if strings.EqualFold(k, key) {
				return v
			}
		}
	case "body":
		if key != "" && ctx.Body != "" {
			if result := gjson.Get(ctx.Body, key); result.Exists() {
				return result.String()
			}
		}
	case "random":
		if key == "uuid" {
			return uuid.New().String()
		}
	case "timestamp":
		now := e.now()
		switch key {
		case "iso":
			return now.UTC().Format(time.RFC3339)
		case "unixMilli":
			return strconv.FormatInt(now.UnixMilli(), 10)
		default:
			return strconv.FormatInt(now.Unix(), 10)
		}
	}
	return ""
}
