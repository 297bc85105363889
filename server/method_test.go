package server

import (
	"context"
	"errors"
	"testing"
)

func TestMethodBuilder_Handler(t *testing.T) {
	valid := []struct {
		name    string
		fn      any
		async   bool
		result  bool
		context bool
	}{
		{"params and result", func(context.Context, addParams) (int, error) { return 0, nil }, false, true, true},
		{"pointer params", func(context.Context, *addParams) (int, error) { return 0, nil }, false, true, true},
		{"no context", func(addParams) (int, error) { return 0, nil }, false, true, false},
		{"context only", func(context.Context) (string, error) { return "", nil }, false, true, true},
		{"error only", func() error { return nil }, false, false, false},
		{"async", func(context.Context) (*Future[int], error) { return Resolved(1), nil }, true, true, true},
	}

	for _, tt := range valid {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(Info{})
			if err := srv.Register("m", tt.fn); err != nil {
				t.Fatalf("Register: %v", err)
			}
			e, _ := srv.Lookup("m")
			if e.IsAsync != tt.async {
				t.Errorf("IsAsync = %v, want %v", e.IsAsync, tt.async)
			}
			if (e.ResultType != nil) != tt.result {
				t.Errorf("ResultType = %v, want present %v", e.ResultType, tt.result)
			}
			if e.hasContext != tt.context {
				t.Errorf("hasContext = %v, want %v", e.hasContext, tt.context)
			}
		})
	}

	invalid := []struct {
		name string
		fn   any
	}{
		{"not a function", 42},
		{"nil function", (func() error)(nil)},
		{"variadic", func(...int) error { return nil }},
		{"non-struct params", func(context.Context, int) (int, error) { return 0, nil }},
		{"too many inputs", func(context.Context, addParams, addParams) error { return nil }},
		{"no error return", func(context.Context) int { return 0 }},
		{"second return not error", func(context.Context) (int, int) { return 0, 0 }},
		{"too many returns", func(context.Context) (int, int, error) { return 0, 0, nil }},
		{"bad default", func(struct {
			N int `json:"n" default:"\"x\""`
		}) error {
			return nil
		}},
		{"duplicate params", func(struct {
			A int `json:"x"`
			B int `json:"x"`
		}) error {
			return nil
		}},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			err := New(Info{}).Register("m", tt.fn)
			if !errors.Is(err, ErrInvalidHandler) {
				t.Errorf("err = %v, want ErrInvalidHandler", err)
			}
		})
	}
}

func TestMethodBuilder_Params(t *testing.T) {
	type params struct {
		Required  string           `json:"required" jsonschema:"description=Must be set"`
		Pointer   *int             `json:"pointer"`
		Defaulted int              `json:"defaulted" default:"3"`
		Omitted   string           `json:"omitted,omitempty"`
		Opt       Optional[string] `json:"opt"`
		Skipped   string           `json:"-"`
		private   string
	}

	srv := New(Info{})
	if err := srv.Register("m", func(p params) error { _ = p.private; return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e, _ := srv.Lookup("m")

	want := []struct {
		name     string
		required bool
	}{
		{"required", true},
		{"pointer", true},
		{"defaulted", false},
		{"omitted", false},
		{"opt", false},
	}
	if len(e.Params) != len(want) {
		t.Fatalf("got %d params, want %d", len(e.Params), len(want))
	}
	for i, w := range want {
		p := e.Params[i]
		if p.Name != w.name {
			t.Errorf("params[%d] = %q, want %q", i, p.Name, w.name)
		}
		if p.Required != w.required {
			t.Errorf("%s.Required = %v, want %v", p.Name, p.Required, w.required)
		}
	}

	if e.Params[0].Description != "Must be set" {
		t.Errorf("description = %q", e.Params[0].Description)
	}
	if !e.Params[2].HasDefault || string(e.Params[2].Default) != "3" {
		t.Errorf("defaulted = %+v", e.Params[2])
	}
	if !e.Params[4].AcceptsUndefined {
		t.Error("Optional params accept undefined")
	}
}

func TestMethodBuilder_Metadata(t *testing.T) {
	srv := New(Info{})
	err := srv.Method("m").
		Summary("s").
		Description("d").
		Tags("a", "b").
		Deprecated().
		Handler(func() error { return nil })
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	e, _ := srv.Lookup("m")
	if e.Summary != "s" || e.Description != "d" || !e.Deprecated || len(e.Tags) != 2 {
		t.Errorf("entry = %+v", e)
	}
	if e.ParamStructure != ParamsEither {
		t.Errorf("ParamStructure = %q, want either", e.ParamStructure)
	}
}

func TestServer_RegisterReserved(t *testing.T) {
	err := New(Info{}).Register("rpc.discover", func() error { return nil })
	if !errors.Is(err, ErrReservedName) {
		t.Errorf("err = %v, want ErrReservedName", err)
	}
}
