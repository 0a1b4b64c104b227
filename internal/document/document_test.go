package document

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
)

const petstoreJSON = `{
  "openapi": "3.0.3",
  "info": {"title": "Petstore", "version": "1.0.0"},
  "paths": {"/pets/{id}": {"get": {"responses": {"200": {"description": "ok"}}}}},
  "components": {
    "schemas": {
      "Pet": {"type": "object", "properties": {"id": {"type": "integer"}, "name": {"type": "string"}}},
      "Alias": {"$ref": "#/components/schemas/Pet"},
      "LoopA": {"$ref": "#/components/schemas/LoopB"},
      "LoopB": {"$ref": "#/components/schemas/LoopA"}
    }
  }
}`

func TestDecodeJSONKeepsOrderAndDuplicates(t *testing.T) {
	root, err := DecodeJSON([]byte(`{"b": 1, "a": true, "b": "last", "c": null, "d": [1.5, "x"]}`))
	require.NoError(t, err)

	require.Len(t, root.Members, 5)
	assert.Equal(t, "b", root.Members[0].Key)

	v, ok := root.Get("b")
	require.True(t, ok)
	assert.Equal(t, "last", v.Text())

	fields := root.Fields()
	require.Len(t, fields, 4)
	assert.Equal(t, []string{"b", "a", "c", "d"}, []string{fields[0].Key, fields[1].Key, fields[2].Key, fields[3].Key})
	assert.Equal(t, "last", fields[0].Value.Text())

	d, _ := root.Get("d")
	require.Equal(t, Array, d.Kind)
	f, ok := d.Items[0].Float()
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"a": 1} {"b": 2}`))
	assert.ErrorIs(t, err, gwerrors.ErrParse)
}

func TestDecodeYAMLMatchesJSONShape(t *testing.T) {
	src := `
openapi: 3.0.3
info:
  title: Petstore
  version: "1.0.0"
count: 16
ratio: 2.5
enabled: true
nothing: ~
base: &base
  type: string
copy: *base
responses:
  200:
    description: ok
`
	root, err := DecodeYAML([]byte(src))
	require.NoError(t, err)

	keys := make([]string, 0)
	for _, m := range root.Fields() {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"openapi", "info", "count", "ratio", "enabled", "nothing", "base", "copy", "responses"}, keys)

	count, _ := root.Get("count")
	assert.Equal(t, Number, count.Kind)
	assert.Equal(t, "16", count.Str)

	assert.True(t, root.BoolAt("enabled"))

	nothing, _ := root.Get("nothing")
	assert.Equal(t, Null, nothing.Kind)

	cp, _ := root.Get("copy")
	assert.Equal(t, "string", cp.StringAt("type"))

	responses, _ := root.Get("responses")
	assert.True(t, responses.Has("200"))
}

func TestDecodeYAMLBoundsAliasExpansion(t *testing.T) {
	// Each level is a list of ten aliases to the previous one, so the
	// expanded tree grows tenfold per level while the text stays tiny.
	var b strings.Builder
	b.WriteString("a0: &a0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= 7; i++ {
		prev := fmt.Sprintf("*a%d", i-1)
		fmt.Fprintf(&b, "a%d: &a%d [%s]\n", i, i, strings.TrimSuffix(strings.Repeat(prev+", ", 10), ", "))
	}
	require.Less(t, b.Len(), 1024)

	_, err := DecodeYAML([]byte(b.String()))
	require.Error(t, err)
	assert.ErrorIs(t, err, gwerrors.ErrParse)
	assert.Contains(t, err.Error(), "expands to more than")

	// A couple of levels is ordinary alias reuse
	small := "a0: &a0 [x, x]\na1: &a1 [*a0, *a0]\na2: [*a1, *a1]\n"
	root, err := DecodeYAML([]byte(small))
	require.NoError(t, err)
	a2, _ := root.Get("a2")
	assert.Len(t, a2.Items, 2)
}

func TestDecodeSniffsEncoding(t *testing.T) {
	tests := []struct {
		name string
		src  string
		hint string
	}{
		{"json auto", `  {"info": {"title": "t"}}`, EncodingAuto},
		{"yaml auto", "info:\n  title: t\n", EncodingAuto},
		{"json explicit", `{"info": {"title": "t"}}`, EncodingJSON},
		{"yaml explicit", "info:\n  title: t\n", "YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Decode([]byte(tt.src), tt.hint)
			require.NoError(t, err)
			info, ok := root.Get("info")
			require.True(t, ok)
			assert.Equal(t, "t", info.StringAt("title"))
		})
	}

	_, err := Decode([]byte("x"), "toml")
	assert.ErrorIs(t, err, gwerrors.ErrParse)
}

func TestMarshalJSONPreservesOrder(t *testing.T) {
	root, err := DecodeJSON([]byte(`{"z": 1, "a": {"y": [true, null], "b": "s"}, "z": 2}`))
	require.NoError(t, err)

	out, err := root.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":2,"a":{"y":[true,null],"b":"s"}}`, string(out))
}

func TestResolve(t *testing.T) {
	root, err := DecodeJSON([]byte(petstoreJSON))
	require.NoError(t, err)

	t.Run("existing component", func(t *testing.T) {
		n, err := Resolve("#/components/schemas/Pet", root)
		require.NoError(t, err)
		assert.Equal(t, "object", n.StringAt("type"))
	})

	t.Run("escaped segment", func(t *testing.T) {
		n, err := Resolve("#/paths/~1pets~1{id}/get", root)
		require.NoError(t, err)
		assert.True(t, n.Has("responses"))
	})

	t.Run("percent encoded segment", func(t *testing.T) {
		_, err := Resolve("#/paths/~1pets~1%7Bid%7D", root)
		require.NoError(t, err)
	})

	t.Run("missing component", func(t *testing.T) {
		_, err := Resolve("#/components/schemas/Missing", root)
		require.ErrorIs(t, err, gwerrors.ErrReferenceNotFound)

		var refErr *gwerrors.ReferenceError
		require.ErrorAs(t, err, &refErr)
		assert.Equal(t, "Missing", refErr.Segment)
	})

	t.Run("first missing segment is named", func(t *testing.T) {
		_, err := Resolve("#/components/nope/Pet", root)
		var refErr *gwerrors.ReferenceError
		require.ErrorAs(t, err, &refErr)
		assert.Equal(t, "nope", refErr.Segment)
	})

	t.Run("remote ref unsupported", func(t *testing.T) {
		for _, ref := range []string{"other.yaml#/Pet", "http://x/y.json#/a", "#", "components/schemas/Pet"} {
			_, err := Resolve(ref, root)
			assert.ErrorIs(t, err, gwerrors.ErrUnsupportedReference, ref)
		}
	})

	t.Run("does not mutate", func(t *testing.T) {
		before, _ := root.MarshalJSON()
		_, _ = Resolve("#/components/schemas/Alias", root)
		after, _ := root.MarshalJSON()
		assert.Equal(t, before, after)
	})
}

func TestChase(t *testing.T) {
	root, err := DecodeJSON([]byte(petstoreJSON))
	require.NoError(t, err)

	n, last, err := Chase("#/components/schemas/Alias", root)
	require.NoError(t, err)
	assert.Equal(t, "#/components/schemas/Pet", last)
	assert.Equal(t, "object", n.StringAt("type"))

	_, _, err = Chase("#/components/schemas/LoopA", root)
	assert.ErrorIs(t, err, gwerrors.ErrCyclicReference)
}

func TestStack(t *testing.T) {
	var s Stack
	require.NoError(t, s.Push("#/a"))
	require.NoError(t, s.Push("#/b"))
	assert.True(t, s.Contains("#/a"))

	err := s.Push("#/a")
	var refErr *gwerrors.ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, []string{"#/a", "#/b"}, refErr.Chain)

	s.Pop()
	s.Pop()
	assert.False(t, s.Contains("#/a"))
	require.NoError(t, s.Push("#/a"))
}

func TestPointerRoundTrip(t *testing.T) {
	ref := Pointer("paths", "/pets/{id}", "a~b")
	assert.Equal(t, "#/paths/~1pets~1{id}/a~0b", ref)

	segs, err := SplitRef(ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"paths", "/pets/{id}", "a~b"}, segs)
	assert.Equal(t, "a~b", RefName(ref))
}
