package server

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/security"
)

func newSecuredServer(t *testing.T, invoked *atomic.Int32, opts ...Option) *Server {
	t.Helper()
	schemes := map[string]security.Scheme{
		"bearer": security.Bearer(map[string]string{"read": "Read access", "write": "Write access"}),
		"apikey": security.APIKey("X-API-Key", nil),
	}
	srv := New(Info{}, append([]Option{WithSecuritySchemes(schemes)}, opts...)...)

	handler := func(context.Context) (string, error) {
		invoked.Add(1)
		return "ok", nil
	}
	if err := srv.Method("write").Security(security.Requirement{"bearer": {"write"}}).Handler(handler); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := srv.Method("both").Security(security.Requirement{"bearer": {}, "apikey": {}}).Handler(handler); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := srv.Method("public").Handler(handler); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return srv
}

func grantsFunc(g security.Grants) Option {
	return WithSecurityFunction(func(ctx context.Context, caller any) (security.Grants, error) {
		return g, nil
	})
}

func TestSecurity(t *testing.T) {
	t.Run("without schemes every call is authorized", func(t *testing.T) {
		srv := New(Info{})
		if err := srv.Method("write").Security(security.Requirement{"bearer": {"write"}}).Handler(func() (string, error) {
			return "ok", nil
		}); err != nil {
			t.Fatalf("Register: %v", err)
		}
		resp := decodeResponse(t, dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"write"}`))
		if string(resp.Result) != `"ok"` {
			t.Errorf("result = %s, want \"ok\"", resp.Result)
		}
	})

	t.Run("denied call does not invoke method", func(t *testing.T) {
		var invoked atomic.Int32
		srv := newSecuredServer(t, &invoked, grantsFunc(security.Grants{"bearer": {"read"}}))

		resp := decodeResponse(t, dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"write"}`))
		expectError(t, resp, protocol.CodePermission)
		if invoked.Load() != 0 {
			t.Error("method must not run when authorization fails")
		}
	})

	t.Run("granted scopes authorize", func(t *testing.T) {
		var invoked atomic.Int32
		srv := newSecuredServer(t, &invoked, grantsFunc(security.Grants{"bearer": {"read", "write"}}))

		resp := decodeResponse(t, dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"write"}`))
		if resp.Error != nil {
			t.Fatalf("unexpected error: %v", resp.Error)
		}
		if invoked.Load() != 1 {
			t.Errorf("invoked %d times, want 1", invoked.Load())
		}
	})

	t.Run("no security function denies protected methods", func(t *testing.T) {
		var invoked atomic.Int32
		srv := newSecuredServer(t, &invoked)

		expectError(t, decodeResponse(t, dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"write"}`)), protocol.CodePermission)

		resp := decodeResponse(t, dispatch(t, srv, `{"jsonrpc":"2.0","id":2,"method":"public"}`))
		if resp.Error != nil {
			t.Errorf("public method failed: %v", resp.Error)
		}
	})

	t.Run("grants from context take precedence", func(t *testing.T) {
		var invoked atomic.Int32
		var asked atomic.Bool
		srv := newSecuredServer(t, &invoked, WithSecurityFunction(func(ctx context.Context, caller any) (security.Grants, error) {
			asked.Store(true)
			return nil, nil
		}))

		ctx := security.ContextWithGrants(context.Background(), security.Grants{"bearer": {"write"}})
		resp := decodeResponse(t, srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"write"}`)))
		if resp.Error != nil {
			t.Fatalf("unexpected error: %v", resp.Error)
		}
		if asked.Load() {
			t.Error("security function must not run when grants are attached")
		}
	})

	t.Run("all schemes required by default", func(t *testing.T) {
		var invoked atomic.Int32
		srv := newSecuredServer(t, &invoked, grantsFunc(security.Grants{"bearer": {}}))
		expectError(t, decodeResponse(t, dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"both"}`)), protocol.CodePermission)
	})

	t.Run("any policy accepts one scheme", func(t *testing.T) {
		var invoked atomic.Int32
		srv := newSecuredServer(t, &invoked,
			grantsFunc(security.Grants{"bearer": {}}),
			WithSecurityPolicy(security.RequireAny),
		)
		resp := decodeResponse(t, dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"both"}`))
		if resp.Error != nil {
			t.Errorf("unexpected error: %v", resp.Error)
		}
	})

	t.Run("security function errors", func(t *testing.T) {
		var invoked atomic.Int32
		srv := newSecuredServer(t, &invoked, WithSecurityFunction(func(ctx context.Context, caller any) (security.Grants, error) {
			return nil, errBoom
		}))
		expectError(t, decodeResponse(t, dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"write"}`)), protocol.CodeInternalError)
	})

	t.Run("discovery is not secured", func(t *testing.T) {
		var invoked atomic.Int32
		srv := newSecuredServer(t, &invoked)
		resp := decodeResponse(t, dispatch(t, srv, `{"jsonrpc":"2.0","id":1,"method":"rpc.discover"}`))
		if resp.Error != nil {
			t.Errorf("unexpected error: %v", resp.Error)
		}
	})
}
