// Package schema converts JSON-Schema fragments into a closed tagged
// representation and compiles them into flat DTO descriptions.
package schema

import (
	"strconv"

	"github.com/prasenjit/go-gateway/internal/document"
)

// Kind tags the shape of a schema node.
type Kind int

const (
	KindObject Kind = iota + 1
	KindArray
	KindScalar
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindScalar:
		return "scalar"
	case KindReference:
		return "reference"
	}
	return "unknown"
}

// Scalar type tags.
const (
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeObject  = "object"
)

// Node is a schema in closed form. Which fields are meaningful depends on
// Kind: Properties, Required and AllOf for objects, Items for arrays, Type
// for scalars and Ref for references.
type Node struct {
	Kind        Kind
	Pointer     string
	Description string
	Format      string
	Nullable    bool
	Enum        []string

	Type string
	Ref  string

	Properties  []Property
	Required    []string
	AllOf       []*Node
	Polymorphic bool // oneOf / anyOf

	Items *Node
}

// Property is one declared object property.
type Property struct {
	Name   string
	Schema *Node
}

// IsRequired reports whether name is listed in the node's required list.
func (n *Node) IsRequired(name string) bool {
	for _, r := range n.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Component is one named entry under components.schemas.
type Component struct {
	Key     string
	Pointer string
	Schema  *Node
}

// Components converts every entry under components.schemas, in declaration
// order. Duplicate keys are kept as separate entries.
func Components(root *document.Node) []Component {
	return ComponentsAt(root, "components", "schemas")
}

// ComponentsAt is Components for a schema map at any location, such as
// "definitions" in older documents.
func ComponentsAt(root *document.Node, segments ...string) []Component {
	schemas, err := document.Resolve(document.Pointer(segments...), root)
	if err != nil || schemas.Kind != document.Object {
		return nil
	}

	out := make([]Component, 0, len(schemas.Members))
	for _, m := range schemas.Members {
		ptr := document.Join(document.Pointer(segments...), m.Key)
		out = append(out, Component{Key: m.Key, Pointer: ptr, Schema: From(m.Value, ptr)})
	}
	return out
}

// From converts a raw schema object. References are kept as KindReference
// nodes and never followed, so conversion always terminates.
func From(n *document.Node, pointer string) *Node {
	if n == nil || n.Kind != document.Object {
		// Boolean schemas and malformed entries accept anything.
		return &Node{Kind: KindObject, Pointer: pointer}
	}

	if ref, ok := n.Ref(); ok {
		return &Node{Kind: KindReference, Ref: ref, Pointer: pointer, Description: n.StringAt("description")}
	}

	out := &Node{
		Pointer:     pointer,
		Description: n.StringAt("description"),
		Format:      n.StringAt("format"),
		Nullable:    n.BoolAt("nullable"),
	}
	typ := declaredType(n, out)

	if enum, ok := n.Get("enum"); ok && enum.Kind == document.Array {
		for _, item := range enum.Items {
			if item.Kind == document.Null {
				out.Nullable = true
				continue
			}
			out.Enum = append(out.Enum, scalarText(item))
		}
	}

	switch {
	case typ == "array" || (typ == "" && n.Has("items")):
		out.Kind = KindArray
		if items, ok := n.Get("items"); ok {
			out.Items = From(items, document.Join(pointer, "items"))
		}
	case typ == TypeInteger || typ == TypeNumber || typ == TypeString || typ == TypeBoolean:
		out.Kind = KindScalar
		out.Type = typ
	case typ == "" && len(out.Enum) > 0 && !n.Has("properties"):
		out.Kind = KindScalar
		out.Type = enumType(n)
	default:
		out.Kind = KindObject
		fillObject(n, out, pointer)
	}
	return out
}

func fillObject(n *document.Node, out *Node, pointer string) {
	if props, ok := n.Get("properties"); ok && props.Kind == document.Object {
		for _, m := range props.Fields() {
			out.Properties = append(out.Properties, Property{
				Name:   m.Key,
				Schema: From(m.Value, document.Join(pointer, "properties", m.Key)),
			})
		}
	}
	if req, ok := n.Get("required"); ok && req.Kind == document.Array {
		for _, r := range req.Items {
			if r.Kind == document.String {
				out.Required = append(out.Required, r.Str)
			}
		}
	}
	if all, ok := n.Get("allOf"); ok && all.Kind == document.Array {
		for i, member := range all.Items {
			out.AllOf = append(out.AllOf, From(member, document.Join(pointer, "allOf", strconv.Itoa(i))))
		}
	}
	out.Polymorphic = n.Has("oneOf") || n.Has("anyOf")
}

// declaredType reads "type", accepting the list form where "null" marks
// the schema nullable.
func declaredType(n *document.Node, out *Node) string {
	t, ok := n.Get("type")
	if !ok {
		return ""
	}
	switch t.Kind {
	case document.String:
		return t.Str
	case document.Array:
		typ := ""
		for _, item := range t.Items {
			if item.Text() == "null" {
				out.Nullable = true
				continue
			}
			if typ == "" {
				typ = item.Text()
			}
		}
		return typ
	}
	return ""
}

func enumType(n *document.Node) string {
	enum, _ := n.Get("enum")
	for _, item := range enum.Items {
		switch item.Kind {
		case document.Bool:
			return TypeBoolean
		case document.Number:
			return TypeNumber
		case document.String:
			return TypeString
		}
	}
	return TypeString
}

func scalarText(n *document.Node) string {
	switch n.Kind {
	case document.String, document.Number:
		return n.Str
	case document.Bool:
		return strconv.FormatBool(n.Boolean)
	}
	b, _ := n.MarshalJSON()
	return string(b)
}
