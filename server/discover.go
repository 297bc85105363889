package server

import (
	"context"

	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/schema"
	"github.com/felixgeelhaar/openrpc-go/security"
)

// Document is an OpenRPC document.
type Document struct {
	OpenRPC    string         `json:"openrpc"`
	Info       Info           `json:"info"`
	Servers    []ServerObject `json:"servers"`
	Methods    []MethodObject `json:"methods"`
	Components Components     `json:"components"`
}

// ServerObject describes a server in discovery.
type ServerObject struct {
	Name        string                    `json:"name"`
	URL         string                    `json:"url"`
	Summary     string                    `json:"summary,omitempty"`
	Description string                    `json:"description,omitempty"`
	Variables   map[string]ServerVariable `json:"variables,omitempty"`
}

// ServerVariable is a substitution for a placeholder in a server URL.
type ServerVariable struct {
	Default     string   `json:"default"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// MethodObject describes one method. Security requirements are carried in
// the x-security extension field.
type MethodObject struct {
	Name           string               `json:"name"`
	Summary        string               `json:"summary,omitempty"`
	Description    string               `json:"description,omitempty"`
	Tags           []TagObject          `json:"tags,omitempty"`
	ExternalDocs   *ExternalDocs        `json:"externalDocs,omitempty"`
	Params         []ContentDescriptor  `json:"params"`
	Result         ContentDescriptor    `json:"result"`
	Deprecated     bool                 `json:"deprecated,omitempty"`
	Servers        []ServerObject       `json:"servers,omitempty"`
	Errors         []ErrorObject        `json:"errors,omitempty"`
	Links          []Link               `json:"links,omitempty"`
	ParamStructure ParamStructure       `json:"paramStructure,omitempty"`
	Examples       []ExamplePairing     `json:"examples,omitempty"`
	Security       security.Requirement `json:"x-security,omitempty"`
}

// ExternalDocs points to documentation outside the document.
type ExternalDocs struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// ErrorObject is an application error a method may return.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Link describes a method that can be called with values from a result.
// Params values may be runtime expressions such as "$params.id".
type Link struct {
	Name        string         `json:"name"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Method      string         `json:"method,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Server      *ServerObject  `json:"server,omitempty"`
}

// ExamplePairing is one example call: params in order and the result.
type ExamplePairing struct {
	Name        string    `json:"name"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Params      []Example `json:"params"`
	Result      *Example  `json:"result,omitempty"`
}

// Example is one example value. ExternalValue is a URL used instead of
// Value.
type Example struct {
	Name          string `json:"name"`
	Summary       string `json:"summary,omitempty"`
	Description   string `json:"description,omitempty"`
	Value         any    `json:"value,omitempty"`
	ExternalValue string `json:"externalValue,omitempty"`
}

// TagObject is a method tag.
type TagObject struct {
	Name string `json:"name"`
}

// ContentDescriptor describes a param or result.
type ContentDescriptor struct {
	Name        string         `json:"name"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Schema      *schema.Schema `json:"schema"`
	Required    bool           `json:"required"`
	Deprecated  bool           `json:"deprecated,omitempty"`
}

// Components holds hoisted schemas and, in the x-securitySchemes extension
// field, the server's security schemes.
type Components struct {
	Schemas         map[string]*schema.Schema  `json:"schemas"`
	SecuritySchemes map[string]security.Scheme `json:"x-securitySchemes,omitempty"`
}

const schemaRefPrefix = "#/components/schemas/"

// Discover returns the server's OpenRPC document. It freezes the server;
// the document is built once and shared, callers must not modify it.
func (s *Server) Discover() *Document {
	s.Freeze()
	return s.doc
}

func (s *Server) discoverMethod(ctx context.Context) (*Document, error) {
	return s.Discover(), nil
}

func (s *Server) buildDocument() *Document {
	r := schema.NewReflector(schemaRefPrefix)

	entries := s.registry.Methods()
	methods := make([]MethodObject, 0, len(entries))
	for _, e := range entries {
		methods = append(methods, describeMethod(r, e))
	}

	return &Document{
		OpenRPC: protocol.OpenRPCVersion,
		Info:    s.info,
		Servers: s.servers,
		Methods: methods,
		Components: Components{
			Schemas:         r.Definitions,
			SecuritySchemes: s.schemes,
		},
	}
}

func describeMethod(r *schema.Reflector, e *MethodEntry) MethodObject {
	m := MethodObject{
		Name:        e.Name,
		Summary:     e.Summary,
		Description: e.Description,
		Params:      make([]ContentDescriptor, 0, len(e.Params)),
		Deprecated:  e.Deprecated,

		ExternalDocs: e.ExternalDocs,
		Servers:      e.Servers,
		Errors:       e.Errors,
		Links:        e.Links,
		Examples:     e.Examples,
	}
	for _, tag := range e.Tags {
		m.Tags = append(m.Tags, TagObject{Name: tag})
	}
	if e.ParamStructure != ParamsEither {
		m.ParamStructure = e.ParamStructure
	}
	if len(e.Security) > 0 {
		m.Security = e.Security
	}

	if e.ParamDescriptors != nil {
		m.Params = append(m.Params, e.ParamDescriptors...)
	} else {
		for _, p := range e.Params {
			m.Params = append(m.Params, ContentDescriptor{
				Name:        p.Name,
				Description: p.Description,
				Schema:      r.Field(p.field),
				Required:    p.Required,
			})
		}
	}

	switch {
	case e.ResultDescriptor != nil:
		m.Result = *e.ResultDescriptor
	case e.ResultType != nil:
		m.Result = ContentDescriptor{
			Name:     "result",
			Schema:   r.Reflect(e.ResultType),
			Required: !schema.Nillable(e.ResultType),
		}
	default:
		m.Result = ContentDescriptor{Name: "result", Schema: &schema.Schema{Type: "null"}}
	}
	return m
}
