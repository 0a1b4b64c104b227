package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
)

// Encoding hints accepted by Decode.
const (
	EncodingJSON = "json"
	EncodingYAML = "yaml"
	EncodingAuto = ""
)

// maxAliasDepth bounds YAML alias nesting.
const maxAliasDepth = 64

// maxYAMLNodes bounds the size of the tree a YAML document may expand to.
// Aliases are copied on expansion, so a few bytes can otherwise describe
// an exponentially large tree.
const maxYAMLNodes = 1 << 20

// Decode turns raw content into a tree. An empty hint sniffs the content:
// a leading '{' or '[' means JSON, anything else is read as YAML.
func Decode(data []byte, hint string) (*Node, error) {
	switch strings.ToLower(hint) {
	case EncodingJSON:
		return DecodeJSON(data)
	case EncodingYAML, "yml":
		return DecodeYAML(data)
	case EncodingAuto:
		trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
		if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
			return DecodeJSON(data)
		}
		return DecodeYAML(data)
	default:
		return nil, &gwerrors.ParseError{Message: fmt.Sprintf("unknown content encoding %q", hint)}
	}
}

// DecodeJSON decodes JSON text token by token so member order and duplicate
// keys survive.
func DecodeJSON(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := decodeJSONValue(dec)
	if err != nil {
		return nil, &gwerrors.ParseError{Message: "invalid JSON", Cause: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &gwerrors.ParseError{Message: "invalid JSON: trailing data after document"}
	}
	return root, nil
}

func decodeJSONValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			obj := &Node{Kind: Object}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, not string", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Members = append(obj.Members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := &Node{Kind: Array}
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Items = append(arr.Items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return &Node{Kind: String, Str: v}, nil
	case json.Number:
		return &Node{Kind: Number, Str: v.String()}, nil
	case bool:
		return &Node{Kind: Bool, Boolean: v}, nil
	case nil:
		return &Node{Kind: Null}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// DecodeYAML decodes YAML into the same tree shape JSON produces.
func DecodeYAML(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &gwerrors.ParseError{Message: "invalid YAML", Cause: err}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, &gwerrors.ParseError{Message: "empty document"}
	}
	b := &yamlBuilder{budget: maxYAMLNodes}
	root, err := b.build(doc.Content[0], 0)
	if err != nil {
		return nil, &gwerrors.ParseError{Message: "invalid YAML", Cause: err}
	}
	return root, nil
}

// yamlBuilder converts yaml.v3 nodes while counting what it produces.
type yamlBuilder struct {
	budget int
}

func (b *yamlBuilder) build(y *yaml.Node, aliasDepth int) (*Node, error) {
	if b.budget--; b.budget < 0 {
		return nil, fmt.Errorf("document expands to more than %d nodes", maxYAMLNodes)
	}
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return &Node{Kind: Null}, nil
		}
		return b.build(y.Content[0], aliasDepth)
	case yaml.AliasNode:
		if aliasDepth >= maxAliasDepth || y.Alias == nil {
			return nil, errors.New("alias nesting too deep")
		}
		return b.build(y.Alias, aliasDepth+1)
	case yaml.MappingNode:
		obj := &Node{Kind: Object, Members: make([]Member, 0, len(y.Content)/2)}
		for i := 0; i+1 < len(y.Content); i += 2 {
			key := y.Content[i]
			if key.Kind == yaml.AliasNode && key.Alias != nil {
				key = key.Alias
			}
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", key.Line)
			}
			val, err := b.build(y.Content[i+1], aliasDepth)
			if err != nil {
				return nil, err
			}
			obj.Members = append(obj.Members, Member{Key: key.Value, Value: val})
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := &Node{Kind: Array, Items: make([]*Node, 0, len(y.Content))}
		for _, c := range y.Content {
			item, err := b.build(c, aliasDepth)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, item)
		}
		return arr, nil
	case yaml.ScalarNode:
		return fromYAMLScalar(y), nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", y.Line)
}

func fromYAMLScalar(y *yaml.Node) *Node {
	switch y.ShortTag() {
	case "!!null":
		return &Node{Kind: Null}
	case "!!bool":
		if b, err := strconv.ParseBool(strings.ToLower(y.Value)); err == nil {
			return &Node{Kind: Bool, Boolean: b}
		}
	case "!!int":
		if i, err := strconv.ParseInt(strings.ReplaceAll(y.Value, "_", ""), 0, 64); err == nil {
			return &Node{Kind: Number, Str: strconv.FormatInt(i, 10)}
		}
	case "!!float":
		if f, err := strconv.ParseFloat(y.Value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			// Keep the literal when it is already valid JSON so "2.0" stays "2.0".
			if json.Valid([]byte(y.Value)) {
				return &Node{Kind: Number, Str: y.Value}
			}
			return &Node{Kind: Number, Str: strconv.FormatFloat(f, 'g', -1, 64)}
		}
	}
	// Timestamps, binary and non-finite floats stay textual.
	return &Node{Kind: String, Str: y.Value}
}
