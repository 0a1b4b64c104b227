package document

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
)

const fragmentPrefix = "#/"

// Resolve returns the node a local fragment reference points at. Only refs
// of the form "#/a/b/c" are accepted. The document is never modified.
func Resolve(ref string, root *Node) (*Node, error) {
	segments, err := SplitRef(ref)
	if err != nil {
		return nil, err
	}

	cur := root
	for _, seg := range segments {
		next, ok := child(cur, seg)
		if !ok {
			return nil, &gwerrors.ReferenceError{Kind: gwerrors.ReferenceNotFound, Ref: ref, Segment: seg}
		}
		cur = next
	}
	return cur, nil
}

func child(n *Node, seg string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	switch n.Kind {
	case Object:
		return n.Get(seg)
	case Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(n.Items) {
			return nil, false
		}
		return n.Items[i], true
	}
	return nil, false
}

// SplitRef parses a local fragment reference into unescaped JSON pointer
// segments.
func SplitRef(ref string) ([]string, error) {
	if !strings.HasPrefix(ref, fragmentPrefix) {
		return nil, &gwerrors.ReferenceError{Kind: gwerrors.UnsupportedReference, Ref: ref}
	}
	raw := strings.Split(ref[len(fragmentPrefix):], "/")
	segments := make([]string, len(raw))
	for i, s := range raw {
		if u, err := url.PathUnescape(s); err == nil {
			s = u
		}
		segments[i] = unescapePointer(s)
	}
	return segments, nil
}

// unescapePointer applies RFC 6901 unescaping; ~1 must be handled before ~0.
func unescapePointer(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}

func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

// Pointer builds a local fragment reference from raw segments.
func Pointer(segments ...string) string {
	return Join("#", segments...)
}

// Join appends raw segments to an existing fragment reference.
func Join(ref string, segments ...string) string {
	var b strings.Builder
	b.WriteString(ref)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(escapePointer(s))
	}
	return b.String()
}

// Canonical rewrites a ref with minimal escaping so that equivalent
// spellings compare equal. Refs that do not parse are returned unchanged.
func Canonical(ref string) string {
	segments, err := SplitRef(ref)
	if err != nil {
		return ref
	}
	return Pointer(segments...)
}

// RefName returns the last unescaped segment of a ref, which is the name of
// the component it targets.
func RefName(ref string) string {
	segments, err := SplitRef(ref)
	if err != nil || len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// Stack tracks the refs currently being expanded. A ref that reappears
// while still active is a cycle.
type Stack struct {
	refs   []string
	active map[string]bool
}

// Push marks ref active, failing with a CyclicReference error if it already
// is.
func (s *Stack) Push(ref string) error {
	if s.active == nil {
		s.active = make(map[string]bool)
	}
	if s.active[ref] {
		return &gwerrors.ReferenceError{
			Kind:  gwerrors.CyclicReference,
			Ref:   ref,
			Chain: append([]string(nil), s.refs...),
		}
	}
	s.active[ref] = true
	s.refs = append(s.refs, ref)
	return nil
}

// Pop releases the most recently pushed ref.
func (s *Stack) Pop() {
	if len(s.refs) == 0 {
		return
	}
	last := s.refs[len(s.refs)-1]
	s.refs = s.refs[:len(s.refs)-1]
	delete(s.active, last)
}

// Contains reports whether ref is on the active stack.
func (s *Stack) Contains(ref string) bool {
	return s.active[ref]
}

// Chase follows ref, and any $ref found at each target, until it reaches a
// node that is not itself a reference. It returns that node and the last
// ref followed. A chain that loops back on itself fails with a
// CyclicReference error.
func Chase(ref string, root *Node) (*Node, string, error) {
	var stack Stack
	cur := ref
	for {
		if err := stack.Push(cur); err != nil {
			return nil, "", err
		}
		target, err := Resolve(cur, root)
		if err != nil {
			return nil, "", err
		}
		next, isRef := target.Ref()
		if !isRef {
			return target, cur, nil
		}
		cur = next
	}
}
