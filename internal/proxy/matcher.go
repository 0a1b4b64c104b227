package proxy

import (
	"net/url"
	"strings"
)

// segment is one '/'-separated piece of a path template. A parameter
// segment may carry a literal prefix and suffix, as in "{file}.json".
type segment struct {
	literal string
	param   string
	prefix  string
	suffix  string
}

func (s segment) isParam() bool { return s.param != "" }

// Template is a compiled path template such as /pets/{petId}.
type Template struct {
	raw      string
	segments []segment
	params   int
}

// Compile splits a path template into segments. Compilation never fails: a
// malformed placeholder is treated as literal text.
func Compile(template string) Template {
	t := Template{raw: template}
	for _, part := range split(template) {
		seg := segment{literal: part}
		if open := strings.IndexByte(part, '{'); open >= 0 {
			if end := strings.IndexByte(part[open:], '}'); end > 1 {
				seg = segment{
					param:  part[open+1 : open+end],
					prefix: part[:open],
					suffix: part[open+end+1:],
				}
				t.params++
			}
		}
		t.segments = append(t.segments, seg)
	}
	return t
}

// String returns the template as written.
func (t Template) String() string { return t.raw }

// Params returns the number of placeholders.
func (t Template) Params() int { return t.params }

// Match tests a concrete path against the template. Segment counts must be
// equal, literal segments must match exactly and each placeholder must bind
// a non-empty value. Bound values are returned unescaped.
func (t Template) Match(path string) (map[string]string, bool) {
	parts := split(path)
	if len(parts) != len(t.segments) {
		return nil, false
	}

	var bound map[string]string
	for i, seg := range t.segments {
		part := parts[i]
		if !seg.isParam() {
			if part != seg.literal && unescape(part) != seg.literal {
				return nil, false
			}
			continue
		}
		if len(part) <= len(seg.prefix)+len(seg.suffix) ||
			!strings.HasPrefix(part, seg.prefix) || !strings.HasSuffix(part, seg.suffix) {
			return nil, false
		}
		if bound == nil {
			bound = make(map[string]string, t.params)
		}
		bound[seg.param] = unescape(part[len(seg.prefix) : len(part)-len(seg.suffix)])
	}
	if bound == nil {
		bound = map[string]string{}
	}
	return bound, true
}

// split tokenizes a path on '/', ignoring the leading and any trailing
// slash, so "/pets/" and "/pets" both yield ["pets"].
func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
