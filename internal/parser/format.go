package parser

import (
	"github.com/prasenjit/go-gateway/internal/document"
)

// Format recognizes and decodes OpenAPI 3.x and Swagger 2.0 documents.
type Format struct{}

// Decode turns raw content into a document tree. encoding is "json",
// "yaml" or "" to sniff the content.
func (Format) Decode(content []byte, encoding string) (*document.Node, error) {
	return document.Decode(content, encoding)
}

// Detect reports whether root looks like a document of this format.
func (Format) Detect(root *document.Node) bool {
	if root == nil || root.Kind != document.Object {
		return false
	}
	return root.Has("openapi") || root.Has("swagger")
}
