package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level   string
	message string
	fields  []Field
}

func (l *mockLogger) add(level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, message: msg, fields: fields})
}

func (l *mockLogger) Info(msg string, fields ...Field)  { l.add("info", msg, fields) }
func (l *mockLogger) Error(msg string, fields ...Field) { l.add("error", msg, fields) }
func (l *mockLogger) Debug(msg string, fields ...Field) { l.add("debug", msg, fields) }
func (l *mockLogger) Warn(msg string, fields ...Field)  { l.add("warn", msg, fields) }

func (e logEntry) field(key string) (any, bool) {
	for _, f := range e.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func TestLogging(t *testing.T) {
	req := &protocol.Request{JSONRPC: "2.0", ID: json.RawMessage("1"), Method: "orders.list"}

	tests := []struct {
		name    string
		err     error
		level   string
		message string
	}{
		{"success", nil, "info", "call completed"},
		{"rpc error", protocol.NewInvalidParams(protocol.MsgInvalidParams), "warn", "call failed"},
		{"plain error", errors.New("boom"), "error", "call failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &mockLogger{}
			handler := Logging(logger)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				return nil, tt.err
			})
			_, _ = handler(context.Background(), req)

			if len(logger.entries) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(logger.entries))
			}
			e := logger.entries[0]
			if e.level != tt.level || e.message != tt.message {
				t.Errorf("entry = %s/%q, want %s/%q", e.level, e.message, tt.level, tt.message)
			}
			if m, _ := e.field("method"); m != "orders.list" {
				t.Errorf("method field = %v", m)
			}
			if _, ok := e.field("duration"); !ok {
				t.Error("expected duration field")
			}
		})
	}

	t.Run("includes request id and notification flag", func(t *testing.T) {
		logger := &mockLogger{}
		handler := Logging(logger)(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return nil, nil
		})
		ctx := ContextWithRequestID(context.Background(), "req-1")
		_, _ = handler(ctx, &protocol.Request{Method: "log"})

		e := logger.entries[0]
		if id, _ := e.field("request_id"); id != "req-1" {
			t.Errorf("request_id = %v", id)
		}
		if n, _ := e.field("notification"); n != true {
			t.Errorf("notification = %v, want true", n)
		}
	})
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Info("hello", F("method", "orders.list"), F("code", -32601))
	logger.Debug("dbg")
	logger.Warn("careful")
	logger.Error("failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %s", len(lines), buf.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	if first["msg"] != "hello" || first["method"] != "orders.list" || first["code"] != float64(-32601) {
		t.Errorf("unexpected record: %v", first)
	}

	if NewSlogLogger(nil) == nil {
		t.Error("nil logger must fall back to the default")
	}
}

func TestField(t *testing.T) {
	f := F("key", 42)
	if f.Key != "key" || f.Value != 42 {
		t.Errorf("F = %+v", f)
	}
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Info("x")
	l.Error("x")
	l.Debug("x")
	l.Warn("x")
}
