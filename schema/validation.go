package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JSON Schema type names.
const (
	typeObject  = "object"
	typeArray   = "array"
	typeString  = "string"
	typeInteger = "integer"
	typeNumber  = "number"
	typeBoolean = "boolean"
	typeNull    = "null"
)

// Violation is a single value that does not match its schema.
type Violation struct {
	// Path locates the value, e.g. "items[2].price". Empty for the root.
	Path   string
	Reason string
}

func (v *Violation) Error() string {
	if v.Path == "" {
		return v.Reason
	}
	return v.Path + ": " + v.Reason
}

// Violations is returned by Validate when one or more values do not match.
type Violations []*Violation

func (vs Violations) Error() string {
	switch len(vs) {
	case 0:
		return ""
	case 1:
		return vs[0].Error()
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Error()
	}
	return fmt.Sprintf("%d violations: %s", len(vs), strings.Join(parts, "; "))
}

// Validate checks a raw JSON value against s. Numbers are compared without
// loss of precision.
func (s *Schema) Validate(raw json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return &Violation{Reason: "malformed JSON: " + err.Error()}
	}
	return s.ValidateValue(value)
}

// ValidateValue checks a decoded JSON value (as produced by encoding/json)
// against s.
func (s *Schema) ValidateValue(value any) error {
	w := walker{}
	w.check(s, value)
	if len(w.found) == 0 {
		return nil
	}
	return w.found
}

type walker struct {
	path  []string
	found Violations
}

func (w *walker) fail(format string, args ...any) {
	w.found = append(w.found, &Violation{
		Path:   strings.Join(w.path, ""),
		Reason: fmt.Sprintf(format, args...),
	})
}

func (w *walker) enter(seg string) { w.path = append(w.path, seg) }
func (w *walker) leave()           { w.path = w.path[:len(w.path)-1] }

func (w *walker) check(s *Schema, value any) {
	if s == nil {
		return
	}
	if len(s.AnyOf) > 0 {
		w.checkAnyOf(s, value)
		return
	}

	if s.Type != "" && !w.checkType(s, value) {
		return
	}
	if len(s.Enum) > 0 && !inEnum(s.Enum, value) {
		w.fail("value must be one of: %v", s.Enum)
	}
}

// checkAnyOf accepts value when one branch matches, reporting the first
// branch's violations otherwise.
func (w *walker) checkAnyOf(s *Schema, value any) {
	var first Violations
	for i, branch := range s.AnyOf {
		sub := walker{path: w.path}
		sub.check(branch, value)
		if len(sub.found) == 0 {
			return
		}
		if i == 0 {
			first = sub.found
		}
	}
	w.found = append(w.found, first...)
}

// checkType reports whether value has the schema's type, descending into
// objects and arrays.
func (w *walker) checkType(s *Schema, value any) bool {
	switch v := value.(type) {
	case nil:
		if s.Type != typeNull {
			w.fail("expected %s, got null", s.Type)
			return false
		}
	case map[string]any:
		if s.Type != typeObject {
			w.fail("expected %s, got object", s.Type)
			return false
		}
		w.checkObject(s, v)
	case []any:
		if s.Type != typeArray {
			w.fail("expected %s, got array", s.Type)
			return false
		}
		for i, item := range v {
			w.enter("[" + strconv.Itoa(i) + "]")
			w.check(s.Items, item)
			w.leave()
		}
	case string:
		if s.Type != typeString {
			w.fail("expected %s, got string", s.Type)
			return false
		}
	case bool:
		if s.Type != typeBoolean {
			w.fail("expected %s, got boolean", s.Type)
			return false
		}
	case json.Number, float64, float32, int, int64:
		return w.checkNumber(s, v)
	default:
		w.fail("unsupported value %T", value)
		return false
	}
	return true
}

func (w *walker) checkObject(s *Schema, obj map[string]any) {
	for _, name := range s.Required {
		if _, ok := obj[name]; !ok {
			w.enter(w.key(name))
			w.fail("missing required property")
			w.leave()
		}
	}
	for name, value := range obj {
		prop, ok := s.Properties[name]
		if !ok {
			prop = s.AdditionalProperties
		}
		if prop == nil {
			continue
		}
		w.enter(w.key(name))
		w.check(prop, value)
		w.leave()
	}
}

func (w *walker) key(name string) string {
	if len(w.path) == 0 {
		return name
	}
	return "." + name
}

func (w *walker) checkNumber(s *Schema, value any) bool {
	if s.Type != typeNumber && s.Type != typeInteger {
		w.fail("expected %s, got number", s.Type)
		return false
	}

	var f float64
	integral := false
	switch v := value.(type) {
	case json.Number:
		_, err := v.Int64()
		integral = err == nil
		if f, err = v.Float64(); err != nil {
			w.fail("invalid number %s", v)
			return false
		}
	case float64:
		f, integral = v, v == float64(int64(v))
	case float32:
		f, integral = float64(v), float64(v) == float64(int64(v))
	case int:
		f, integral = float64(v), true
	case int64:
		f, integral = float64(v), true
	}

	if s.Type == typeInteger && !integral {
		w.fail("expected integer, got %v", value)
		return false
	}
	if s.Minimum != nil && f < *s.Minimum {
		w.fail("%v is below the minimum %v", value, *s.Minimum)
	}
	if s.Maximum != nil && f > *s.Maximum {
		w.fail("%v is above the maximum %v", value, *s.Maximum)
	}
	return true
}

// inEnum compares by JSON encoding so that typed enum values match decoded
// values.
func inEnum(enum []any, value any) bool {
	got, err := json.Marshal(value)
	if err != nil {
		return false
	}
	for _, e := range enum {
		want, err := json.Marshal(e)
		if err == nil && bytes.Equal(want, got) {
			return true
		}
	}
	return false
}
