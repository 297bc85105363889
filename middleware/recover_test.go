package middleware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
)

func panicking(value any) middleware.HandlerFunc {
	return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
		panic(value)
	}
}

func TestRecover(t *testing.T) {
	t.Run("passes through normal calls", func(t *testing.T) {
		resp, err := middleware.Recover()(okHandler)(context.Background(), callRequest("m"))
		if err != nil || resp == nil {
			t.Errorf("got %v, %v", resp, err)
		}
	})

	values := []struct {
		name  string
		value any
	}{
		{"string", "boom"},
		{"error", errors.New("boom")},
		{"other", 42},
	}
	for _, tt := range values {
		t.Run("recovers "+tt.name+" panics", func(t *testing.T) {
			_, err := middleware.Recover()(panicking(tt.value))(context.Background(), callRequest("m"))
			expectCode(t, err, protocol.CodeServerError)

			var rpcErr *protocol.Error
			errors.As(err, &rpcErr)
			if rpcErr.Data != nil {
				t.Errorf("panic details must not reach the client: %v", rpcErr.Data)
			}
		})
	}

	t.Run("logs panics", func(t *testing.T) {
		var logged bool
		logger := &errorLogger{fn: func(msg string, fields []middleware.Field) {
			logged = msg == "panic recovered" && len(fields) == 3
		}}
		_, err := middleware.RecoverWithLogger(logger)(panicking("boom"))(context.Background(), callRequest("m"))
		expectCode(t, err, protocol.CodeServerError)
		if !logged {
			t.Error("expected the panic to be logged")
		}
	})
}

func TestRecoverWithHandler(t *testing.T) {
	var got any
	handler := middleware.RecoverWithHandler(func(ctx context.Context, req *protocol.Request, panicVal any) (*protocol.Response, error) {
		got = panicVal
		return protocol.NewResponse(req.ID, "recovered"), nil
	})(panicking("boom"))

	resp, err := handler(context.Background(), callRequest("m"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Result != "recovered" || got != "boom" {
		t.Errorf("resp = %v, panic = %v", resp.Result, got)
	}
}

type errorLogger struct {
	middleware.NopLogger
	fn func(msg string, fields []middleware.Field)
}

func (l *errorLogger) Error(msg string, fields ...middleware.Field) {
	l.fn(msg, fields)
}
