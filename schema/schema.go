// Package schema describes Go types as JSON Schema and coerces raw JSON into
// typed Go values.
package schema

import (
	"reflect"
)

// Schema represents a JSON Schema.
type Schema struct {
	Ref                  string             `json:"$ref,omitempty"`
	Title                string             `json:"title,omitempty"`
	Type                 string             `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AnyOf                []*Schema          `json:"anyOf,omitempty"`
	Description          string             `json:"description,omitempty"`
	Default              any                `json:"default,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
}

// Generate creates a self-contained JSON Schema from a Go value.
// Named types are expanded in place rather than referenced.
func Generate(v any) (*Schema, error) {
	return GenerateFromType(reflect.TypeOf(v))
}

// GenerateFromType creates a self-contained JSON Schema from a reflect.Type.
func GenerateFromType(t reflect.Type) (*Schema, error) {
	if t == nil {
		return &Schema{}, nil
	}
	r := &Reflector{inline: true}
	return r.Reflect(t), nil
}

// Nullable wraps s so that it also accepts null.
func Nullable(s *Schema) *Schema {
	return &Schema{AnyOf: []*Schema{s, {Type: typeNull}}}
}

// constrained returns the schema that value constraints apply to: the
// non-null branch of a nullable schema, or s itself.
func (s *Schema) constrained() *Schema {
	if len(s.AnyOf) == 2 && s.AnyOf[1].Type == typeNull {
		return s.AnyOf[0]
	}
	return s
}
