// Package protocol defines the JSON-RPC 2.0 message types, error codes and
// payload decoding used by the openrpc engine.
//
// Most users should use the higher-level openrpc or server packages instead.
//
// # Messages
//
// A Request with no id (or a null id) is a notification. A Response carries
// exactly one of result or error and always serializes an id, which is null
// when the originating request could not be identified:
//
//	resp := protocol.NewResponse(req.ID, 4)
//	// {"jsonrpc":"2.0","id":1,"result":4}
//
// # Decoding
//
// Decode turns raw bytes into a Payload. Malformed JSON and empty batches are
// reported as a payload-level *Error; every other problem is attached to the
// offending element so the remaining elements of a batch can still be served:
//
//	p, perr := protocol.Decode(data)
//	if perr != nil {
//	    // answer with protocol.NewErrorResponse(nil, perr)
//	}
//	for _, m := range p.Messages {
//	    if m.Err != nil && !m.Notification {
//	        // answer with protocol.NewErrorResponse(m.ID, m.Err)
//	    }
//	}
//
// # Error Codes
//
//	CodeParseError     = -32700  // Invalid JSON
//	CodeInvalidRequest = -32600  // Invalid Request object
//	CodeMethodNotFound = -32601  // Method not found
//	CodeInvalidParams  = -32602  // Invalid method parameters
//	CodeInternalError  = -32603  // Internal error
//	CodePermission     = -32099  // Permission error
//	CodeServerError    = -32000  // Default for errors returned by methods
//
// *Error implements error and compares by code with errors.Is.
package protocol
