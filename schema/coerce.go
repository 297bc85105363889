package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Adapter turns raw JSON into a typed Go value. It is the boundary between
// the dispatch engine and the type machinery; Reflector provides the
// matching schemas.
type Adapter interface {
	// Coerce decodes raw into a new value of type t. When s is non-nil the
	// raw value is validated against it first.
	Coerce(raw json.RawMessage, t reflect.Type, s *Schema) (reflect.Value, error)
}

// Validator is implemented by types that check their own invariants after
// decoding.
type Validator interface {
	Validate() error
}

var validatorType = reflect.TypeFor[Validator]()

// CoercionError reports a value that could not be converted to a Go type.
type CoercionError struct {
	Type reflect.Type
	Err  error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot use value as %s: %v", e.Type, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// JSONAdapter is the default Adapter. It validates against the schema,
// rejects null for types that cannot hold it and decodes with encoding/json.
type JSONAdapter struct{}

// Coerce implements Adapter.
func (JSONAdapter) Coerce(raw json.RawMessage, t reflect.Type, s *Schema) (reflect.Value, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) && !Nillable(t) {
		return reflect.Value{}, &CoercionError{Type: t, Err: fmt.Errorf("null is not allowed")}
	}

	if s != nil {
		if err := s.Validate(raw); err != nil {
			return reflect.Value{}, &CoercionError{Type: t, Err: err}
		}
	}

	v := reflect.New(t)
	if err := json.Unmarshal(raw, v.Interface()); err != nil {
		return reflect.Value{}, &CoercionError{Type: t, Err: err}
	}

	if v.Type().Implements(validatorType) {
		if err := v.Interface().(Validator).Validate(); err != nil {
			return reflect.Value{}, &CoercionError{Type: t, Err: err}
		}
	}

	if implements(t, enumerType) {
		enum := reflect.Zero(t).Interface().(Enumer).Enum()
		if !inEnum(enum, v.Elem().Interface()) {
			return reflect.Value{}, &CoercionError{Type: t, Err: fmt.Errorf("value must be one of: %v", enum)}
		}
	}

	return v.Elem(), nil
}

// Nillable reports whether t can represent JSON null.
func Nillable(t reflect.Type) bool {
	switch {
	case t.Kind() == reflect.Ptr, t.Kind() == reflect.Interface, t == rawType:
		return true
	case implements(t, unwrapperType):
		return Nillable(reflect.Zero(t).Interface().(Unwrapper).SchemaType())
	}
	return false
}

// FieldSchema returns a self-contained schema for a struct field, with its
// tags applied, suitable for validating values of that field.
func FieldSchema(f reflect.StructField) *Schema {
	r := &Reflector{inline: true}
	return r.Field(f)
}
