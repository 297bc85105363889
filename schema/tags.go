package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// applyTags copies jsonschema and default tag annotations onto s.
//
//	Limit int `json:"limit" default:"10" jsonschema:"description=Page size,minimum=1,maximum=100"`
//	Sort  string `json:"sort" jsonschema:"enum=asc|desc"`
func applyTags(f reflect.StructField, s *Schema) {
	if def, ok := f.Tag.Lookup("default"); ok {
		var v any
		if err := json.Unmarshal([]byte(def), &v); err == nil {
			s.Default = v
		}
	}

	tag := f.Tag.Get("jsonschema")
	if tag == "" {
		return
	}

	target := s.constrained()
	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "description":
			s.Description = value
		case "title":
			s.Title = value
		case "minimum":
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				target.Minimum = &n
			}
		case "maximum":
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				target.Maximum = &n
			}
		case "enum":
			target.Enum = parseEnum(value, target.Type)
		}
	}
}

func parseEnum(value, typ string) []any {
	var out []any
	for _, v := range strings.Split(value, "|") {
		switch typ {
		case typeInteger, typeNumber:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				out = append(out, n)
				continue
			}
		case typeBoolean:
			if b, err := strconv.ParseBool(v); err == nil {
				out = append(out, b)
				continue
			}
		}
		out = append(out, v)
	}
	return out
}
