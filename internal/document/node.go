// Package document holds the ordered, JSON-compatible tree every
// description format is decoded into, and the local $ref resolver that
// walks it.
//
// Object members keep declaration order and duplicate keys. Lookups follow
// last-value-wins; iteration through Fields keeps the position of a key's
// first occurrence with the value of its last.
package document

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind is the JSON type of a Node.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "null"
	}
}

// Member is one key/value pair of an object node.
type Member struct {
	Key   string
	Value *Node
}

// Node is one value in a decoded document.
type Node struct {
	Kind    Kind
	Str     string // string value, or the literal text of a number
	Boolean bool
	Items   []*Node
	Members []Member // raw members in declaration order, duplicates included
}

// NewObject builds an object node from members.
func NewObject(members ...Member) *Node {
	return &Node{Kind: Object, Members: members}
}

// NewString builds a string node.
func NewString(s string) *Node {
	return &Node{Kind: String, Str: s}
}

// Get returns the value of key on an object node. Duplicate keys resolve to
// the last occurrence.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != Object {
		return nil, false
	}
	for i := len(n.Members) - 1; i >= 0; i-- {
		if n.Members[i].Key == key {
			return n.Members[i].Value, true
		}
	}
	return nil, false
}

// Has reports whether an object node declares key.
func (n *Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Fields returns the members of an object node with duplicate keys folded:
// each key appears once, at its first position, carrying its last value.
func (n *Node) Fields() []Member {
	if n == nil || n.Kind != Object {
		return nil
	}
	index := make(map[string]int, len(n.Members))
	out := make([]Member, 0, len(n.Members))
	for _, m := range n.Members {
		if i, seen := index[m.Key]; seen {
			out[i].Value = m.Value
			continue
		}
		index[m.Key] = len(out)
		out = append(out, m)
	}
	return out
}

// Text returns the string value of a string node, or "" for anything else.
func (n *Node) Text() string {
	if n == nil || n.Kind != String {
		return ""
	}
	return n.Str
}

// StringAt returns the string value stored under key, or "".
func (n *Node) StringAt(key string) string {
	v, _ := n.Get(key)
	return v.Text()
}

// ScalarAt is StringAt that also accepts numbers, returning their literal
// text. YAML documents often carry versions such as `version: 1.0`.
func (n *Node) ScalarAt(key string) string {
	v, ok := n.Get(key)
	if !ok || (v.Kind != String && v.Kind != Number) {
		return ""
	}
	return v.Str
}

// BoolAt returns the boolean stored under key, or false.
func (n *Node) BoolAt(key string) bool {
	v, ok := n.Get(key)
	return ok && v.Kind == Bool && v.Boolean
}

// Float returns the numeric value of a number node.
func (n *Node) Float() (float64, bool) {
	if n == nil || n.Kind != Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.Str, 64)
	return f, err == nil
}

// Ref returns the $ref string of a reference object.
func (n *Node) Ref() (string, bool) {
	v, ok := n.Get("$ref")
	if !ok || v.Kind != String {
		return "", false
	}
	return v.Str, true
}

// MarshalJSON writes the node as JSON, preserving member order and folding
// duplicate keys the same way Fields does.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	if n == nil {
		buf.WriteString("null")
		return nil
	}
	switch n.Kind {
	case Bool:
		buf.WriteString(strconv.FormatBool(n.Boolean))
	case Number:
		buf.WriteString(n.Str)
	case String:
		b, err := json.Marshal(n.Str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Array:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range n.Fields() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
	return nil
}
