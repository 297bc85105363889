package middleware_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/openrpc-go/middleware"
	"github.com/felixgeelhaar/openrpc-go/protocol"
)

func TestRateLimit(t *testing.T) {
	t.Run("allows calls within burst", func(t *testing.T) {
		handler := middleware.RateLimit(10, 10)(okHandler)
		for i := range 5 {
			if _, err := handler(context.Background(), callRequest("m")); err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
		}
	})

	t.Run("rejects calls over burst", func(t *testing.T) {
		handler := middleware.RateLimit(1, 5)(okHandler)
		for i := range 5 {
			if _, err := handler(context.Background(), callRequest("m")); err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
		}
		_, err := handler(context.Background(), callRequest("m"))
		expectCode(t, err, protocol.CodeRateLimited)
	})

	t.Run("logs rejections", func(t *testing.T) {
		var warned bool
		logger := &funcLogger{warn: func(string) { warned = true }}
		handler := middleware.RateLimit(1, 1, middleware.WithRateLimitLogger(logger))(okHandler)
		_, _ = handler(context.Background(), callRequest("m"))
		_, _ = handler(context.Background(), callRequest("m"))
		if !warned {
			t.Error("expected a warning")
		}
	})
}

func TestRateLimitByMethod(t *testing.T) {
	handler := middleware.RateLimitByMethod(1, 1)(okHandler)

	if _, err := handler(context.Background(), callRequest("a")); err != nil {
		t.Fatalf("a: %v", err)
	}
	if _, err := handler(context.Background(), callRequest("b")); err != nil {
		t.Fatalf("b uses its own bucket: %v", err)
	}
	if _, err := handler(context.Background(), callRequest("a")); err == nil {
		t.Fatal("expected a to be rate limited")
	}
}

func TestRateLimitByClient(t *testing.T) {
	handler := middleware.RateLimitByClient(1, 1, middleware.MetaKey("X-Client-ID"))(okHandler)
	client := func(id string) context.Context {
		return protocol.ContextWithRequestMeta(context.Background(), protocol.RequestMeta{"X-Client-ID": id})
	}

	if _, err := handler(client("one"), callRequest("m")); err != nil {
		t.Fatalf("one: %v", err)
	}
	if _, err := handler(client("two"), callRequest("m")); err != nil {
		t.Fatalf("two uses its own bucket: %v", err)
	}
	if _, err := handler(client("one"), callRequest("m")); err == nil {
		t.Fatal("expected client one to be rate limited")
	}
}

func TestRateLimit_Concurrent(t *testing.T) {
	handler := middleware.RateLimit(10, 10)(okHandler)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var allowed, denied int
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := handler(context.Background(), callRequest("m"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				allowed++
			} else {
				denied++
			}
		}()
	}
	wg.Wait()

	if allowed < 5 || allowed > 15 {
		t.Errorf("expected around 10 allowed, got %d", allowed)
	}
	if allowed+denied != 20 {
		t.Errorf("allowed+denied = %d, want 20", allowed+denied)
	}
}

func TestRateLimit_Recovery(t *testing.T) {
	handler := middleware.RateLimit(10, 1)(okHandler)

	if _, err := handler(context.Background(), callRequest("m")); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if _, err := handler(context.Background(), callRequest("m")); err == nil {
		t.Fatal("expected rate limit")
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := handler(context.Background(), callRequest("m")); err != nil {
		t.Fatalf("after recovery: %v", err)
	}
}

// funcLogger forwards warnings to a callback.
type funcLogger struct {
	middleware.NopLogger
	warn func(msg string)
}

func (l *funcLogger) Warn(msg string, _ ...middleware.Field) {
	l.warn(msg)
}
