package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecode_PayloadErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode int
	}{
		{"malformed json", `{"jsonrpc": "2.0", "method": "foo", "params": "bar", "baz]`, CodeParseError},
		{"empty input", ``, CodeParseError},
		{"truncated batch", `[{"jsonrpc":"2.0","method":"sum"},{"jsonrpc":"2.0","method"]`, CodeParseError},
		{"empty batch", `[]`, CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.input))
			if err == nil {
				t.Fatalf("expected error, got payload %+v", p)
			}
			if err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", err.Code, tt.wantCode)
			}
		})
	}
}

func TestDecode_Classify(t *testing.T) {
	tests := []struct {
		name             string
		input            string
		wantErr          bool
		wantNotification bool
		wantID           string
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"add","params":[1,2]}`, false, false, "1"},
		{"notification", `{"jsonrpc":"2.0","method":"log"}`, false, true, ""},
		{"null id is a notification", `{"jsonrpc":"2.0","id":null,"method":"log"}`, false, true, ""},
		{"null params", `{"jsonrpc":"2.0","id":2,"method":"m","params":null}`, false, false, "2"},
		{"scalar", `1`, true, false, "null"},
		{"string", `"foo"`, true, false, "null"},
		{"null", `null`, true, false, "null"},
		{"missing method", `{"jsonrpc":"2.0","id":3}`, true, false, "3"},
		{"empty method", `{"jsonrpc":"2.0","id":3,"method":""}`, true, false, "3"},
		{"method not a string", `{"jsonrpc":"2.0","id":4,"method":1}`, true, false, "4"},
		{"wrong version", `{"jsonrpc":"1.0","id":5,"method":"m"}`, true, false, "5"},
		{"missing version", `{"id":6,"method":"m"}`, true, false, "6"},
		{"scalar params", `{"jsonrpc":"2.0","id":7,"method":"m","params":"bar"}`, true, false, "7"},
		{"object id", `{"jsonrpc":"2.0","id":{},"method":"m"}`, true, false, "null"},
		{"malformed notification", `{"jsonrpc":"2.0","method":1}`, true, true, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, perr := Decode([]byte(tt.input))
			if perr != nil {
				t.Fatalf("unexpected payload error: %v", perr)
			}
			if p.Batch {
				t.Error("single message decoded as batch")
			}
			if len(p.Messages) != 1 {
				t.Fatalf("len(Messages) = %d, want 1", len(p.Messages))
			}
			m := p.Messages[0]

			if tt.wantErr {
				if m.Err == nil {
					t.Fatal("expected invalid request")
				}
				if m.Err.Code != CodeInvalidRequest {
					t.Errorf("Code = %d, want %d", m.Err.Code, CodeInvalidRequest)
				}
				if m.Request != nil {
					t.Error("invalid message should not carry a request")
				}
			} else if m.Err != nil {
				t.Fatalf("unexpected error: %v", m.Err)
			}

			if m.Notification != tt.wantNotification {
				t.Errorf("Notification = %v, want %v", m.Notification, tt.wantNotification)
			}
			if string(m.ID) != tt.wantID {
				t.Errorf("ID = %s, want %s", m.ID, tt.wantID)
			}
		})
	}
}

func TestClassifyRequest(t *testing.T) {
	tests := []struct {
		name             string
		req              *Request
		wantErr          bool
		wantNotification bool
		wantID           string
	}{
		{"request", &Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "add", Params: json.RawMessage(`[1,2]`)}, false, false, "1"},
		{"notification", &Request{JSONRPC: "2.0", Method: "log"}, false, true, ""},
		{"null id", &Request{JSONRPC: "2.0", ID: json.RawMessage(`null`), Method: "log"}, false, true, ""},
		{"nil request", nil, true, false, "null"},
		{"wrong version", &Request{JSONRPC: "1.0", ID: json.RawMessage(`2`), Method: "m"}, true, false, "2"},
		{"missing version", &Request{ID: json.RawMessage(`3`), Method: "m"}, true, false, "3"},
		{"empty method", &Request{JSONRPC: "2.0", ID: json.RawMessage(`4`)}, true, false, "4"},
		{"notification without method", &Request{JSONRPC: "2.0"}, true, false, "null"},
		{"invalid notification", &Request{Method: "log"}, true, true, "null"},
		{"object id", &Request{JSONRPC: "2.0", ID: json.RawMessage(`{}`), Method: "m"}, true, false, "null"},
		{"scalar params", &Request{JSONRPC: "2.0", ID: json.RawMessage(`5`), Method: "m", Params: json.RawMessage(`"x"`)}, true, false, "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ClassifyRequest(tt.req)
			if tt.wantErr {
				if m.Err == nil || m.Err.Code != CodeInvalidRequest {
					t.Fatalf("Err = %v, want invalid request", m.Err)
				}
				if m.Request != nil {
					t.Error("invalid message should not carry a request")
				}
			} else if m.Err != nil {
				t.Fatalf("unexpected error: %v", m.Err)
			}
			if m.Notification != tt.wantNotification {
				t.Errorf("Notification = %v, want %v", m.Notification, tt.wantNotification)
			}
			if string(m.ID) != tt.wantID {
				t.Errorf("ID = %s, want %s", m.ID, tt.wantID)
			}
		})
	}

	t.Run("null params are absent", func(t *testing.T) {
		m := ClassifyRequest(&Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "m", Params: json.RawMessage(`null`)})
		if m.Request == nil || m.Request.Params != nil {
			t.Errorf("Request = %+v, want nil params", m.Request)
		}
	})
}

func TestDecode_NullParamsAreAbsent(t *testing.T) {
	p, _ := Decode([]byte(`{"jsonrpc":"2.0","id":2,"method":"m","params":null}`))
	if p.Messages[0].Request.Params != nil {
		t.Errorf("Params = %s, want nil", p.Messages[0].Request.Params)
	}
}

func TestDecode_Batch(t *testing.T) {
	input := `[
		{"jsonrpc":"2.0","method":"sum","params":[1,2,4],"id":"1"},
		{"jsonrpc":"2.0","method":"notify_hello","params":[7]},
		{"foo":"boo"},
		1
	]`

	p, err := Decode([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Batch {
		t.Error("expected batch")
	}
	if len(p.Messages) != 4 {
		t.Fatalf("len(Messages) = %d, want 4", len(p.Messages))
	}
	if p.Messages[0].Request == nil || p.Messages[0].Request.Method != "sum" {
		t.Errorf("element 0 = %+v, want sum request", p.Messages[0])
	}
	if !p.Messages[1].Notification || p.Messages[1].Request == nil {
		t.Errorf("element 1 = %+v, want notification", p.Messages[1])
	}
	if p.Messages[2].Err == nil || p.Messages[2].Notification {
		t.Errorf("element 2 = %+v, want invalid request", p.Messages[2])
	}
	if p.Messages[3].Err == nil || string(p.Messages[3].ID) != "null" {
		t.Errorf("element 3 = %+v, want invalid request with null id", p.Messages[3])
	}
}
