package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/textproto"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// Handler processes one raw JSON-RPC payload, single or batch, and returns
// the raw response. A nil response means nothing must be sent back.
type Handler interface {
	Handle(ctx context.Context, payload []byte) []byte
}

// HandlerFunc is an adapter to allow ordinary functions as handlers, such
// as a server's Dispatch method.
type HandlerFunc func(ctx context.Context, payload []byte) []byte

// Handle calls f(ctx, payload).
func (f HandlerFunc) Handle(ctx context.Context, payload []byte) []byte {
	return f(ctx, payload)
}

// Transport defines the communication layer interface.
type Transport interface {
	// Serve starts the transport, blocking until ctx is canceled or an error occurs.
	Serve(ctx context.Context, handler Handler) error

	// Addr returns the transport's address description.
	Addr() string
}

// NotificationSender sends server-initiated notifications on
// bidirectional transports.
type NotificationSender interface {
	SendNotification(method string, params any) error
}

type notificationSenderKey struct{}

// ContextWithNotificationSender returns a context with the notification sender attached.
func ContextWithNotificationSender(ctx context.Context, sender NotificationSender) context.Context {
	return context.WithValue(ctx, notificationSenderKey{}, sender)
}

// NotificationSenderFromContext returns the notification sender of the
// connection the call arrived on, or nil when the transport has none.
func NotificationSenderFromContext(ctx context.Context) NotificationSender {
	sender, _ := ctx.Value(notificationSenderKey{}).(NotificationSender)
	return sender
}

// Notification is a JSON-RPC notification sent by the server.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func encodeNotification(method string, params any) ([]byte, error) {
	n := Notification{JSONRPC: protocol.JSONRPCVersion, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		n.Params = data
	}
	return json.Marshal(n)
}

// headerMeta copies the first value of every header into request metadata
// under its canonical name.
func headerMeta(h http.Header) protocol.RequestMeta {
	meta := make(protocol.RequestMeta, len(h))
	for key, values := range h {
		if len(values) > 0 {
			meta[textproto.CanonicalMIMEHeaderKey(key)] = values[0]
		}
	}
	return meta
}
