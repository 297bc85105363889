package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/felixgeelhaar/openrpc-go/schema"
)

// Optional is a parameter that distinguishes "absent from params" from
// any value the client sent, null included. The zero value is undefined.
//
//	type UpdateParams struct {
//	    Name     server.Optional[string]  `json:"name"`     // absent or a string
//	    Nickname server.Optional[*string] `json:"nickname"` // absent, null or a string
//	}
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a defined Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Get returns the value and whether it was defined.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether a value was supplied.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// IsZero reports whether o is undefined, so that `json:",omitzero"` omits it.
func (o Optional[T]) IsZero() bool {
	return !o.set
}

// OrElse returns the value, or def when undefined.
func (o Optional[T]) OrElse(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// SchemaType implements schema.Unwrapper.
func (Optional[T]) SchemaType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (o Optional[T]) String() string {
	if !o.set {
		return "<undefined>"
	}
	return fmt.Sprint(o.value)
}

// MarshalJSON encodes the value, or null when undefined.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON marks o as defined. Null is only accepted when T can hold it.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	t := reflect.TypeFor[T]()
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) && !schema.Nillable(t) {
		return fmt.Errorf("null is not allowed for %s", t)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.value, o.set = v, true
	return nil
}

// optionalValue is implemented by *Optional[T] for parameter binding.
type optionalValue interface {
	valueType() reflect.Type
	define(v reflect.Value)
}

func (*Optional[T]) valueType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (o *Optional[T]) define(v reflect.Value) {
	reflect.ValueOf(&o.value).Elem().Set(v)
	o.set = true
}

var optionalValueType = reflect.TypeFor[optionalValue]()

// isOptional reports whether t is an Optional instantiation.
func isOptional(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(optionalValueType)
}
