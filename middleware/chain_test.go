package middleware_test

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
)

func recordingMiddleware(name string, order *[]string) middleware.Middleware {
	return func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			*order = append(*order, name+":before")
			resp, err := next(ctx, req)
			*order = append(*order, name+":after")
			return resp, err
		}
	}
}

func TestChain(t *testing.T) {
	t.Run("runs middleware in order", func(t *testing.T) {
		var order []string
		handler := middleware.Chain(
			recordingMiddleware("first", &order),
			recordingMiddleware("second", &order),
		)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			order = append(order, "handler")
			return okHandler(ctx, req)
		})

		if _, err := handler(context.Background(), callRequest("m")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"first:before", "second:before", "handler", "second:after", "first:after"}
		if len(order) != len(want) {
			t.Fatalf("order = %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
			}
		}
	})

	t.Run("empty chain returns handler", func(t *testing.T) {
		handler := middleware.Chain()(okHandler)
		resp, err := handler(context.Background(), callRequest("m"))
		if err != nil || resp == nil {
			t.Errorf("got %v, %v", resp, err)
		}
	})

	t.Run("middleware can short circuit", func(t *testing.T) {
		deny := func(next middleware.HandlerFunc) middleware.HandlerFunc {
			return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				return nil, protocol.NewServerError(-32010, "denied")
			}
		}
		handler := middleware.Chain(deny)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			t.Error("handler should not be called")
			return nil, nil
		})
		_, err := handler(context.Background(), callRequest("m"))
		expectCode(t, err, -32010)
	})
}

func TestSkip(t *testing.T) {
	var order []string
	handler := middleware.Skip(recordingMiddleware("auth", &order), protocol.MethodDiscover)(okHandler)

	_, _ = handler(context.Background(), callRequest(protocol.MethodDiscover))
	if len(order) != 0 {
		t.Errorf("skipped method ran middleware: %v", order)
	}

	_, _ = handler(context.Background(), callRequest("orders.list"))
	if len(order) != 2 {
		t.Errorf("order = %v, want middleware to run", order)
	}
}

func TestUse(t *testing.T) {
	var order []string
	chain := middleware.Use(recordingMiddleware("a", &order)).
		Append(recordingMiddleware("b", &order))

	if _, err := chain.Then(okHandler)(context.Background(), callRequest("m")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 4 || order[0] != "a:before" || order[1] != "b:before" {
		t.Errorf("order = %v", order)
	}

	order = nil
	_, _ = chain.Middleware()(okHandler)(context.Background(), callRequest("m"))
	if len(order) != 4 {
		t.Errorf("order = %v, want 4 entries", order)
	}
}
