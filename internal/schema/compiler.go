package schema

import (
	"github.com/prasenjit/go-gateway/internal/document"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
)

// Synthetic field names used for components that are not objects.
const (
	ItemsField = "items"
	ValueField = "value"
)

// compiler holds the state of one CompileAll run.
type compiler struct {
	root      *document.Node
	names     *namer
	byPointer map[string]string // component pointer -> DTO name (last duplicate wins)
	converted map[string]*Node  // ref target cache
	queue     []pending         // non-component objects reached by $ref
	problems  []error
	current   string // pointer of the DTO being compiled
}

type pending struct {
	name    string
	pointer string
	node    *Node
}

// CompileAll compiles every component into a DTO, in declaration order,
// followed by any non-component object schemas reached through $ref, in
// first-reference order. Output is deterministic for a given document.
//
// Problems are collected across all schemas. When any are found the
// returned error is a *gwerrors.CompileError and the DTO list omits the
// offending fields.
func CompileAll(root *document.Node, components []Component) ([]models.DTO, error) {
	c := &compiler{
		root:      root,
		names:     newNamer(),
		byPointer: make(map[string]string, len(components)),
		converted: make(map[string]*Node),
	}

	// Names are assigned up front so any reference, including a cycle, can
	// be emitted without compiling its target first.
	names := make([]string, len(components))
	for i, comp := range components {
		names[i] = c.names.claim(comp.Key)
		c.byPointer[comp.Pointer] = names[i]
	}

	dtos := make([]models.DTO, 0, len(components))
	for i, comp := range components {
		dtos = append(dtos, c.compile(names[i], comp.Pointer, comp.Schema))
	}
	for i := 0; i < len(c.queue); i++ {
		p := c.queue[i]
		dtos = append(dtos, c.compile(p.name, p.pointer, p.node))
	}

	if len(c.problems) > 0 {
		return dtos, &gwerrors.CompileError{Problems: c.problems}
	}
	return dtos, nil
}

func (c *compiler) compile(name, pointer string, n *Node) models.DTO {
	c.current = pointer
	dto := models.DTO{
		Name:        name,
		Source:      pointer,
		Description: n.Description,
		Fields:      make([]models.Field, 0),
	}

	var stack document.Stack
	_ = stack.Push(pointer)

	switch n.Kind {
	case KindObject:
		props, required := c.flatten(name, n, &stack)
		for _, p := range props {
			field, err := c.field(p.Name, p.Schema, &stack)
			if err != nil {
				c.fail(name, p.Name, err)
				continue
			}
			field.IsRequired = required[p.Name]
			dto.Fields = append(dto.Fields, field)
		}
	case KindArray:
		field, err := c.field(ItemsField, n, &stack)
		if err != nil {
			c.fail(name, ItemsField, err)
			break
		}
		field.IsRequired = true
		dto.Fields = append(dto.Fields, field)
	default:
		field, err := c.field(ValueField, n, &stack)
		if err != nil {
			c.fail(name, ValueField, err)
			break
		}
		field.IsRequired = true
		dto.Fields = append(dto.Fields, field)
	}
	return dto
}

// flatten merges allOf members into one property list. Members come first,
// the node's own properties last; a later property replaces an earlier one
// of the same name but keeps its position.
func (c *compiler) flatten(dtoName string, n *Node, stack *document.Stack) ([]Property, map[string]bool) {
	var props []Property
	index := make(map[string]int)
	required := make(map[string]bool)

	add := func(p Property) {
		if i, ok := index[p.Name]; ok {
			props[i] = p
			return
		}
		index[p.Name] = len(props)
		props = append(props, p)
	}

	var walk func(n *Node)
	walk = func(n *Node) {
		for _, member := range n.AllOf {
			target := member
			if member.Kind == KindReference {
				resolved, ptr, err := c.chase(member.Ref)
				if err != nil {
					c.fail(dtoName, "", err)
					continue
				}
				if err := stack.Push(ptr); err != nil {
					c.fail(dtoName, "", err)
					continue
				}
				target = resolved
				if target.Kind == KindObject {
					walk(target)
				}
				stack.Pop()
				continue
			}
			if target.Kind == KindObject {
				walk(target)
			}
		}
		for _, p := range n.Properties {
			add(p)
		}
		for _, r := range n.Required {
			required[r] = true
		}
	}
	walk(n)
	return props, required
}

func (c *compiler) field(name string, n *Node, stack *document.Stack) (models.Field, error) {
	tag, ref, err := c.typeOf(n, stack)
	if err != nil {
		return models.Field{}, err
	}
	f := models.Field{
		Name:        name,
		FieldType:   tag,
		Ref:         ref,
		Format:      n.Format,
		Nullable:    n.Nullable,
		Enum:        n.Enum,
		Description: n.Description,
	}
	if n.Kind == KindReference && f.Format == "" && len(f.Enum) == 0 {
		if target, _, err := c.chase(n.Ref); err == nil && target.Kind == KindScalar {
			f.Format = target.Format
			f.Enum = target.Enum
		}
	}
	return f, nil
}

// typeOf returns the normalized tag of n and, when the tag names a DTO,
// that DTO's name.
func (c *compiler) typeOf(n *Node, stack *document.Stack) (string, string, error) {
	switch n.Kind {
	case KindScalar:
		return n.Type, "", nil
	case KindArray:
		if n.Items == nil {
			return "array<" + TypeObject + ">", "", nil
		}
		inner, ref, err := c.typeOf(n.Items, stack)
		if err != nil {
			return "", "", err
		}
		return "array<" + inner + ">", ref, nil
	case KindReference:
		return c.refType(n.Ref, stack)
	}
	return TypeObject, "", nil
}

func (c *compiler) refType(ref string, stack *document.Stack) (string, string, error) {
	target, ptr, err := c.chase(ref)
	if err != nil {
		return "", "", err
	}

	switch target.Kind {
	case KindObject:
		name := c.dtoName(ptr, target)
		return "ref:" + name, name, nil
	case KindArray:
		if stack.Contains(ptr) {
			// A collection that contains itself: point back at its DTO.
			if name, ok := c.byPointer[ptr]; ok {
				return "ref:" + name, name, nil
			}
		}
		if err := stack.Push(ptr); err != nil {
			return "", "", err
		}
		defer stack.Pop()
		return c.typeOf(target, stack)
	}
	return target.Type, "", nil
}

// chase follows a $ref chain to its first non-reference target and returns
// that target in closed form with its pointer.
func (c *compiler) chase(ref string) (*Node, string, error) {
	raw, last, err := document.Chase(ref, c.root)
	if err != nil {
		return nil, "", err
	}
	ptr := document.Canonical(last)
	if n, ok := c.converted[ptr]; ok {
		return n, ptr, nil
	}
	n := From(raw, ptr)
	c.converted[ptr] = n
	return n, ptr, nil
}

// dtoName returns the DTO compiled for an object at ptr, queueing a new one
// when the object is not a component.
func (c *compiler) dtoName(ptr string, n *Node) string {
	if name, ok := c.byPointer[ptr]; ok {
		return name
	}
	name := c.names.claim(document.RefName(ptr))
	c.byPointer[ptr] = name
	c.queue = append(c.queue, pending{name: name, pointer: ptr, node: n})
	return name
}

func (c *compiler) fail(schema, field string, err error) {
	c.problems = append(c.problems, &gwerrors.FieldError{
		Schema:  schema,
		Field:   field,
		Pointer: c.current,
		Err:     err,
	})
}
