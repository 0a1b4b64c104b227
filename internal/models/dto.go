package models

// DTO is a flat data-transfer-object description compiled from one schema
type DTO struct {
	Name        string  `json:"name"`
	Source      string  `json:"source"` // JSON pointer of the compiled schema
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
}

// Field is one property of a DTO. FieldType is a normalized tag: integer,
// string, boolean, number, object, array<T> or ref:<DTOName>.
type Field struct {
	Name        string   `json:"name"`
	FieldType   string   `json:"fieldType"`
	IsRequired  bool     `json:"isRequired"`
	Ref         string   `json:"ref,omitempty"` // nested DTO name
	Format      string   `json:"format,omitempty"`
	Nullable    bool     `json:"nullable,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}
