package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Unwrapper is implemented by wrapper types whose JSON form is that of the
// value they carry, such as optional values.
type Unwrapper interface {
	SchemaType() reflect.Type
}

// Enumer is implemented by named types with a closed set of values.
// Enum is called on the zero value.
type Enumer interface {
	Enum() []any
}

var (
	unwrapperType = reflect.TypeFor[Unwrapper]()
	enumerType    = reflect.TypeFor[Enumer]()
	timeType      = reflect.TypeFor[time.Time]()
	rawType       = reflect.TypeFor[json.RawMessage]()
)

// Reflector builds schemas for Go types. Named struct and enum types are
// hoisted into Definitions and referenced by name, so a type shared by many
// methods is described once and recursive types terminate.
//
// A Reflector is not safe for concurrent use.
type Reflector struct {
	// RefPrefix is prepended to definition names in $ref values.
	RefPrefix string
	// Definitions holds the hoisted schemas by name.
	Definitions map[string]*Schema

	names  map[reflect.Type]string
	taken  map[string]reflect.Type
	inline bool
	stack  map[reflect.Type]bool
}

// NewReflector creates a Reflector whose references point at refPrefix,
// for example "#/components/schemas/".
func NewReflector(refPrefix string) *Reflector {
	return &Reflector{
		RefPrefix:   refPrefix,
		Definitions: make(map[string]*Schema),
		names:       make(map[reflect.Type]string),
		taken:       make(map[string]reflect.Type),
	}
}

// Reflect returns the schema for t.
func (r *Reflector) Reflect(t reflect.Type) *Schema {
	if implements(t, unwrapperType) {
		return r.Reflect(reflect.Zero(t).Interface().(Unwrapper).SchemaType())
	}

	switch {
	case t == timeType:
		return &Schema{Type: typeString, Format: "date-time"}
	case t == rawType:
		return &Schema{}
	}

	if t.Kind() == reflect.Ptr {
		return Nullable(r.Reflect(t.Elem()))
	}

	if t.Name() != "" && (t.Kind() == reflect.Struct || implements(t, enumerType)) {
		return r.named(t)
	}
	return r.build(t)
}

// Field returns the schema for a struct field, with its jsonschema and
// default tags applied.
func (r *Reflector) Field(f reflect.StructField) *Schema {
	s := r.Reflect(f.Type)
	if s.Ref != "" {
		// Annotations must not leak into the shared definition.
		s = &Schema{Ref: s.Ref}
	}
	applyTags(f, s)
	return s
}

func (r *Reflector) named(t reflect.Type) *Schema {
	if r.inline {
		if r.stack[t] {
			return &Schema{Type: typeObject}
		}
		if r.stack == nil {
			r.stack = make(map[reflect.Type]bool)
		}
		r.stack[t] = true
		defer delete(r.stack, t)
		return r.build(t)
	}

	if name, ok := r.names[t]; ok {
		return &Schema{Ref: r.RefPrefix + name}
	}

	name := r.reserve(t)
	// Registered before building so self references resolve to the $ref.
	r.Definitions[name] = &Schema{}
	s := r.build(t)
	s.Title = name
	r.Definitions[name] = s
	return &Schema{Ref: r.RefPrefix + name}
}

func (r *Reflector) reserve(t reflect.Type) string {
	base := definitionName(t)
	name := base
	for i := 2; ; i++ {
		if _, used := r.taken[name]; !used {
			break
		}
		name = base + strconv.Itoa(i)
	}
	r.taken[name] = t
	r.names[t] = name
	return name
}

func (r *Reflector) build(t reflect.Type) *Schema {
	var s *Schema
	switch t.Kind() {
	case reflect.Struct:
		s = r.object(t)
	case reflect.String:
		s = &Schema{Type: typeString}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		s = &Schema{Type: typeInteger}
	case reflect.Float32, reflect.Float64:
		s = &Schema{Type: typeNumber}
	case reflect.Bool:
		s = &Schema{Type: typeBoolean}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			s = &Schema{Type: typeString, Format: "byte"}
			break
		}
		s = &Schema{Type: typeArray, Items: r.Reflect(t.Elem())}
	case reflect.Array:
		s = &Schema{Type: typeArray, Items: r.Reflect(t.Elem())}
	case reflect.Map:
		s = &Schema{Type: typeObject, AdditionalProperties: r.Reflect(t.Elem())}
	default:
		s = &Schema{}
	}

	if implements(t, enumerType) {
		s.Enum = reflect.Zero(t).Interface().(Enumer).Enum()
	}
	return s
}

func (r *Reflector) object(t reflect.Type) *Schema {
	s := &Schema{
		Type:       typeObject,
		Properties: make(map[string]*Schema),
	}
	r.addFields(s, t)
	return s
}

func (r *Reflector) addFields(s *Schema, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		name, opts, skip := FieldName(f)
		if skip {
			continue
		}

		if f.Anonymous && f.Tag.Get("json") == "" {
			et := f.Type
			if et.Kind() == reflect.Ptr {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				r.addFields(s, et)
				continue
			}
		}

		s.Properties[name] = r.Field(f)
		if FieldRequired(f, opts) {
			s.Required = append(s.Required, name)
		}
	}
}

// FieldName returns the JSON name of a struct field and its json tag
// options. skip is true for unexported and `json:"-"` fields.
func FieldName(f reflect.StructField) (name string, opts string, skip bool) {
	if !f.IsExported() && !f.Anonymous {
		return "", "", true
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", "", true
	}
	name, opts, _ = strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, opts, false
}

// FieldRequired reports whether a field must be present in its object.
// Fields are required unless they are omitempty, optional wrappers or carry
// a default; the jsonschema "required" flag forces them required.
func FieldRequired(f reflect.StructField, jsonOpts string) bool {
	if hasFlag(f.Tag.Get("jsonschema"), "required") {
		return true
	}
	if hasFlag(jsonOpts, "omitempty") || hasFlag(jsonOpts, "omitzero") {
		return false
	}
	if _, ok := f.Tag.Lookup("default"); ok {
		return false
	}
	return !implements(f.Type, unwrapperType)
}

// implements reports whether values of t implement iface and can be
// queried through their zero value.
func implements(t, iface reflect.Type) bool {
	k := t.Kind()
	return k != reflect.Ptr && k != reflect.Interface && t.Implements(iface)
}

func hasFlag(list, flag string) bool {
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == flag {
			return true
		}
	}
	return false
}

// definitionName turns a Go type name into a components key. Type arguments
// of generic types are reduced to their unqualified names.
func definitionName(t reflect.Type) string {
	name := t.Name()
	i := strings.IndexByte(name, '[')
	if i < 0 {
		return name
	}
	args := strings.Split(strings.TrimSuffix(name[i+1:], "]"), ",")
	for j, a := range args {
		if k := strings.LastIndexByte(a, '.'); k >= 0 {
			a = a[k+1:]
		}
		args[j] = strings.Map(func(c rune) rune {
			if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
				return c
			}
			return -1
		}, a)
	}
	return name[:i] + "_" + strings.Join(args, "_")
}
