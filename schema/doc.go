// Package schema describes Go types as JSON Schema and coerces raw JSON into
// typed Go values.
//
// # Generating Schemas
//
// Generate and GenerateFromType produce self-contained schemas in which named
// types are expanded in place:
//
//	type Person struct {
//	    Name string `json:"name" jsonschema:"description=Full name"`
//	    Age  int    `json:"age,omitempty" jsonschema:"minimum=0"`
//	}
//
//	s, err := schema.Generate(Person{})
//
// A Reflector instead hoists named struct types and Enumer types into its
// Definitions and refers to them with $ref, which keeps shared types
// described once and lets recursive types terminate:
//
//	r := schema.NewReflector("#/components/schemas/")
//	ref := r.Reflect(reflect.TypeFor[Person]())
//	// ref.Ref == "#/components/schemas/Person"
//
// # Type Mapping
//
//   - Structs: objects; embedded structs are flattened
//   - Strings, integers, floats, booleans: the matching JSON types
//   - Slices and arrays: arrays; []byte is a base64 string
//   - Maps: objects with additionalProperties
//   - Pointers: anyOf the element schema and null
//   - time.Time: date-time string
//   - Unwrapper types: the schema of the wrapped type
//
// # Struct Tags
//
//	Name  string `json:"name"`                             // property name
//	Limit int    `json:"limit" default:"10"`               // default, not required
//	Sort  string `json:"sort" jsonschema:"enum=asc|desc"`  // enum values
//	Page  int    `json:"page" jsonschema:"minimum=1,maximum=50,description=Page number"`
//	Force string `json:"force,omitempty" jsonschema:"required"`
//
// A field is required unless it is omitempty, carries a default or is an
// Unwrapper; the jsonschema "required" flag overrides this.
//
// # Coercion
//
// JSONAdapter implements Adapter. It validates raw JSON against a schema,
// rejects null for types that cannot hold it, decodes with encoding/json and
// finally runs Validator and Enumer checks on the decoded value.
package schema
