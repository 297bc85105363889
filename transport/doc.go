// Package transport carries raw JSON-RPC payloads between clients and a
// dispatcher. Transports know nothing about methods or parameters; they
// hand every payload to a Handler and write back whatever bytes it returns.
//
// # Stdio Transport
//
// The stdio transport reads one payload per line from stdin and writes one
// response per line to stdout. Lines are handled in order:
//
//	t := transport.NewStdio()
//	err := t.Serve(ctx, transport.HandlerFunc(srv.Dispatch))
//
// # HTTP Transport
//
// The HTTP transport accepts payloads as POST bodies:
//
//	t := transport.NewHTTP(":8080",
//	    transport.WithPath("/rpc"),
//	    transport.WithDefaultCORS(),
//	)
//	err := t.Serve(ctx, transport.HandlerFunc(srv.Dispatch))
//
// Endpoints:
//   - POST /rpc: JSON-RPC payloads, 204 when nothing is returned
//   - GET /health: health check, 503 while draining
//
// Request headers are exposed to middleware as protocol.RequestMeta.
//
// # WebSocket Transport
//
// The WebSocket transport treats every message as a payload and handles
// messages on one connection concurrently. Handlers can push notifications
// with NotificationSenderFromContext.
package transport
