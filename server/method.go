package server

import (
	"context"
	"encoding/json"
	"reflect"
	"slices"
	"strings"

	"github.com/felixgeelhaar/openrpc-go/schema"
	"github.com/felixgeelhaar/openrpc-go/security"
)

// ParamStructure restricts how a method accepts params.
type ParamStructure string

// Param structures.
const (
	ParamsEither     ParamStructure = "either"
	ParamsByName     ParamStructure = "by-name"
	ParamsByPosition ParamStructure = "by-position"
)

// ParamSpec describes one parameter of a method.
type ParamSpec struct {
	Name        string
	Type        reflect.Type
	Description string

	// Required is true unless the parameter has a default, accepts the
	// undefined value or is tagged omitempty.
	Required   bool
	HasDefault bool
	Default    json.RawMessage

	// AcceptsUndefined is true for Optional parameters.
	AcceptsUndefined bool

	// IsDependency marks parameters filled from the caller value instead of
	// params. Provider is nil for named lookups.
	IsDependency bool
	Provider     *Provider

	field      reflect.StructField
	valueType  reflect.Type
	validation *schema.Schema
}

// MethodEntry is a registered method. Entries are immutable once built.
type MethodEntry struct {
	Name           string
	Summary        string
	Description    string
	Tags           []string
	Deprecated     bool
	ParamStructure ParamStructure
	Security       security.Requirement

	// Documentation passed through to discovery as given.
	ExternalDocs *ExternalDocs
	Servers      []ServerObject
	Errors       []ErrorObject
	Links        []Link
	Examples     []ExamplePairing

	// ParamDescriptors and ResultDescriptor replace the descriptors
	// generated from the handler in discovery. They do not affect binding.
	ParamDescriptors []ContentDescriptor
	ResultDescriptor *ContentDescriptor

	// Params are the client-visible parameters in declaration order.
	Params []ParamSpec
	// Depends are the dependency parameters.
	Depends []ParamSpec

	// ResultType is nil for handlers that only return an error. For
	// asynchronous handlers it is the type the future resolves to.
	ResultType reflect.Type
	IsAsync    bool

	fn         reflect.Value
	hasContext bool
	paramsType reflect.Type
	paramsPtr  bool
	builtin    bool
}

// withName returns a copy of e registered under another name.
func (e *MethodEntry) withName(name string, tags []string) *MethodEntry {
	c := *e
	c.Name = name
	c.Tags = append(slices.Clone(e.Tags), tags...)
	return &c
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// registrar is implemented by Server and Router.
type registrar interface {
	register(e *MethodEntry) error
}

// MethodBuilder provides a fluent API for building methods.
type MethodBuilder struct {
	reg       registrar
	entry     *MethodEntry
	providers map[string]*Provider
}

func newMethodBuilder(reg registrar, name string) *MethodBuilder {
	return &MethodBuilder{
		reg:       reg,
		entry:     &MethodEntry{Name: name, ParamStructure: ParamsEither},
		providers: make(map[string]*Provider),
	}
}

// Summary sets a short summary shown in discovery.
func (b *MethodBuilder) Summary(s string) *MethodBuilder {
	b.entry.Summary = s
	return b
}

// Description sets the method description.
func (b *MethodBuilder) Description(desc string) *MethodBuilder {
	b.entry.Description = desc
	return b
}

// Tags adds discovery tags.
func (b *MethodBuilder) Tags(tags ...string) *MethodBuilder {
	b.entry.Tags = append(b.entry.Tags, tags...)
	return b
}

// Deprecated marks the method as deprecated.
func (b *MethodBuilder) Deprecated() *MethodBuilder {
	b.entry.Deprecated = true
	return b
}

// Security sets the schemes and scopes a caller needs.
func (b *MethodBuilder) Security(req security.Requirement) *MethodBuilder {
	b.entry.Security = req
	return b
}

// ParamStructure restricts params to by-name or by-position.
func (b *MethodBuilder) ParamStructure(ps ParamStructure) *MethodBuilder {
	b.entry.ParamStructure = ps
	return b
}

// ExternalDocs links the method to documentation outside the document.
func (b *MethodBuilder) ExternalDocs(url, description string) *MethodBuilder {
	b.entry.ExternalDocs = &ExternalDocs{URL: url, Description: description}
	return b
}

// Servers lists servers that serve this method, overriding the document's
// servers for it.
func (b *MethodBuilder) Servers(servers ...ServerObject) *MethodBuilder {
	b.entry.Servers = append(b.entry.Servers, servers...)
	return b
}

// Errors documents application errors the method may return.
func (b *MethodBuilder) Errors(errs ...ErrorObject) *MethodBuilder {
	b.entry.Errors = append(b.entry.Errors, errs...)
	return b
}

// Links documents follow-up calls.
func (b *MethodBuilder) Links(links ...Link) *MethodBuilder {
	b.entry.Links = append(b.entry.Links, links...)
	return b
}

// Examples adds example calls.
func (b *MethodBuilder) Examples(examples ...ExamplePairing) *MethodBuilder {
	b.entry.Examples = append(b.entry.Examples, examples...)
	return b
}

// ParamDescriptors replaces the generated param descriptors in discovery.
// Calling it with no descriptors documents the method as taking none.
func (b *MethodBuilder) ParamDescriptors(params ...ContentDescriptor) *MethodBuilder {
	b.entry.ParamDescriptors = append([]ContentDescriptor{}, params...)
	return b
}

// ResultDescriptor replaces the generated result descriptor in discovery.
func (b *MethodBuilder) ResultDescriptor(result ContentDescriptor) *MethodBuilder {
	b.entry.ResultDescriptor = &result
	return b
}

// Depends binds a provider to the named parameter, marking it as a
// dependency.
func (b *MethodBuilder) Depends(param string, p *Provider) *MethodBuilder {
	b.providers[param] = p
	return b
}

// Handler parses fn and registers the method.
//
// The handler signature must be one of:
//   - func([ctx context.Context][, params P]) (R, error)
//   - func([ctx context.Context][, params P]) error
//
// P is a struct (or pointer to struct) whose exported fields are the
// method's parameters in declaration order. R may be *Future[T] for
// asynchronous methods.
func (b *MethodBuilder) Handler(fn any) error {
	if err := parseHandler(b.entry, fn, b.providers); err != nil {
		return err
	}
	return b.reg.register(b.entry)
}

func parseHandler(e *MethodEntry, fn any, providers map[string]*Provider) error {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return invalidHandler("%s: handler must be a function, got %T", e.Name, fn)
	}
	t := v.Type()
	if t.IsVariadic() {
		return invalidHandler("%s: variadic handlers are not supported", e.Name)
	}

	in := 0
	if t.NumIn() > in && t.In(in) == contextType {
		e.hasContext = true
		in++
	}
	switch t.NumIn() - in {
	case 0:
	case 1:
		pt := t.In(in)
		if pt.Kind() == reflect.Ptr {
			e.paramsPtr = true
			pt = pt.Elem()
		}
		if pt.Kind() != reflect.Struct {
			return invalidHandler("%s: params must be a struct, got %s", e.Name, t.In(in))
		}
		e.paramsType = pt
	default:
		return invalidHandler("%s: handler takes at most a context and a params struct", e.Name)
	}

	switch t.NumOut() {
	case 1:
		if t.Out(0) != errorType {
			return invalidHandler("%s: single return value must be error", e.Name)
		}
	case 2:
		if t.Out(1) != errorType {
			return invalidHandler("%s: second return value must be error", e.Name)
		}
		e.ResultType = t.Out(0)
		if t.Out(0).Implements(awaitableType) {
			e.IsAsync = true
			e.ResultType = reflect.Zero(t.Out(0)).Interface().(awaitable).resultType()
		}
	default:
		return invalidHandler("%s: handler must return (result, error) or error", e.Name)
	}

	e.fn = v
	if e.paramsType == nil {
		if len(providers) > 0 {
			return invalidHandler("%s: dependencies bound but handler has no params", e.Name)
		}
		return nil
	}
	return parseParams(e, providers)
}

func parseParams(e *MethodEntry, providers map[string]*Provider) error {
	seen := make(map[string]bool)
	used := make(map[string]bool)

	fields, err := paramFields(e.Name, e.paramsType, nil)
	if err != nil {
		return err
	}
	for _, f := range fields {
		name, opts, _ := schema.FieldName(f)
		if seen[name] {
			return invalidHandler("%s: duplicate parameter %q", e.Name, name)
		}
		seen[name] = true

		spec := ParamSpec{
			Name:      name,
			Type:      f.Type,
			field:     f,
			valueType: f.Type,
		}

		p, bound := providers[name]
		if bound || hasRPCFlag(f, "depends") {
			spec.IsDependency = true
			spec.Provider = p
			used[name] = true
			e.Depends = append(e.Depends, spec)
			continue
		}

		if isOptional(f.Type) {
			spec.AcceptsUndefined = true
			spec.valueType = reflect.New(f.Type).Interface().(optionalValue).valueType()
		}

		s := schema.FieldSchema(f)
		spec.Description = s.Description
		spec.validation = s

		if def, ok := f.Tag.Lookup("default"); ok {
			raw := json.RawMessage(def)
			if _, err := (schema.JSONAdapter{}).Coerce(raw, spec.valueType, s); err != nil {
				return invalidHandler("%s: default for %q: %v", e.Name, name, err)
			}
			spec.HasDefault = true
			spec.Default = raw
		}

		spec.Required = !spec.HasDefault && !spec.AcceptsUndefined &&
			!strings.Contains(","+opts+",", ",omitempty,") && !strings.Contains(","+opts+",", ",omitzero,")
		e.Params = append(e.Params, spec)
	}

	for name := range providers {
		if !used[name] {
			return invalidHandler("%s: dependency %q is not a parameter", e.Name, name)
		}
	}
	return nil
}

// paramFields lists the fields of t that are parameters, flattening
// untagged embedded structs the way encoding/json does. Each field's Index
// is the full path from t.
func paramFields(method string, t reflect.Type, parent []int) ([]reflect.StructField, error) {
	var out []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		f.Index = append(slices.Clone(parent), i)

		if f.Anonymous && f.Tag.Get("json") == "" {
			switch {
			case f.Type.Kind() == reflect.Struct:
				nested, err := paramFields(method, f.Type, f.Index)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
				continue
			case f.Type.Kind() == reflect.Ptr && f.Type.Elem().Kind() == reflect.Struct:
				return nil, invalidHandler("%s: embedded pointer %s is not supported as params", method, f.Type)
			}
		}

		if _, _, skip := schema.FieldName(f); skip || !f.IsExported() {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func hasRPCFlag(f reflect.StructField, flag string) bool {
	for _, part := range strings.Split(f.Tag.Get("rpc"), ",") {
		if strings.TrimSpace(part) == flag {
			return true
		}
	}
	return false
}
