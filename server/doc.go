// Package server provides the JSON-RPC 2.0 engine: method registration,
// dispatch, dependency injection, security and OpenRPC discovery.
//
// Most users should use the higher-level openrpc package, which re-exports
// the types in this package and adds transports.
//
// # Methods
//
// Methods are ordinary Go functions registered with the fluent builder.
// The fields of the params struct are the method's parameters, in order:
//
//	type AddParams struct {
//	    A int `json:"a"`
//	    B int `json:"b" default:"0" jsonschema:"description=Second operand"`
//	}
//
//	srv := server.New(server.Info{Title: "calc", Version: "1.0.0"})
//	err := srv.Method("add").
//	    Summary("Add two numbers").
//	    Handler(func(ctx context.Context, p AddParams) (int, error) {
//	        return p.A + p.B, nil
//	    })
//
// Params may be passed by position ([2, 3]) or by name ({"a": 2, "b": 3})
// unless ParamStructure restricts them.
//
// # Undefined Values
//
// Optional[T] parameters stay undefined when absent from params. With a
// pointer type they also distinguish an explicit null:
//
//	type UpdateParams struct {
//	    Name     server.Optional[string]  `json:"name"`
//	    Nickname server.Optional[*string] `json:"nickname"`
//	}
//
// # Dependencies
//
// Fields tagged `rpc:"depends"` or bound with MethodBuilder.Depends are not
// read from params. A bound Provider computes the value from the caller
// value; without a provider the field is looked up by name in a caller value
// that is a map with string keys, such as protocol.RequestMeta.
//
//	var user = server.Provide(func(ctx context.Context, caller any) (*User, error) { ... })
//
//	type WhoAmIParams struct {
//	    User *User `json:"user" rpc:"depends"`
//	}
//	srv.Method("whoami").Depends("user", user).Handler(whoami)
//
// # Security
//
// With WithSecuritySchemes set, methods declaring a security.Requirement are
// only invoked when the caller's grants satisfy it. Grants come from the
// context (security.ContextWithGrants) or from WithSecurityFunction.
// Failures are answered with a -32099 permission error.
//
// # Dispatch
//
// Dispatch takes a raw payload and returns the raw response, or nil when
// nothing must be sent back. The first dispatch freezes the registry; later
// registrations fail with ErrRegistryFrozen. rpc.discover is always
// available and returns the OpenRPC document.
package server
