package protocol

import (
	"bytes"
	"encoding/json"
)

// Message is one classified element of an incoming payload.
// Exactly one of Request or Err is set.
type Message struct {
	Request *Request

	// Err is set when the element is not a valid request object.
	Err *Error
	// ID is the id to answer an invalid element with (null when unknown).
	ID json.RawMessage
	// Notification reports whether the element carried no id.
	Notification bool
}

// Payload is a decoded JSON-RPC payload.
type Payload struct {
	Batch    bool
	Messages []Message
}

// Decode parses raw bytes into a payload. A nil *Error means the payload was
// well-formed JSON of a usable shape; individual elements may still be invalid.
// A non-nil *Error must be answered with a single error response with a null id.
func Decode(data []byte) (*Payload, *Error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return nil, NewParseError(MsgParseError)
	}

	if data[0] != '[' {
		return &Payload{Messages: []Message{classify(data)}}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, NewParseError(MsgParseError)
	}
	if len(elems) == 0 {
		return nil, NewInvalidRequest(MsgInvalidRequest).WithData("empty batch")
	}

	p := &Payload{Batch: true, Messages: make([]Message, len(elems))}
	for i, raw := range elems {
		p.Messages[i] = classify(raw)
	}
	return p, nil
}

// Reasons attached as data to Invalid Request errors.
const (
	reasonObject  = "request must be an object"
	reasonVersion = `jsonrpc must be exactly "2.0"`
	reasonMethod  = "method must be a non-empty string"
	reasonID      = "id must be a string or number"
	reasonParams  = "params must be an array or an object"
)

// ClassifyRequest checks a request that was built in code rather than
// decoded, applying the same rules as Decode.
func ClassifyRequest(req *Request) Message {
	if req == nil {
		return invalid(nullID, false, reasonObject)
	}
	notification := req.IsNotification()
	if notification && req.Method == "" {
		return invalid(nullID, false, reasonMethod)
	}
	id := req.ID
	if notification {
		id = nil
	} else if !validID(id) {
		return invalid(nullID, false, reasonID)
	}

	switch {
	case req.JSONRPC != JSONRPCVersion:
		return invalid(id, notification, reasonVersion)
	case req.Method == "":
		return invalid(id, notification, reasonMethod)
	}

	params := bytes.TrimSpace(req.Params)
	if bytes.Equal(params, nullID) {
		params = nil
	}
	if len(params) > 0 && params[0] != '[' && params[0] != '{' {
		return invalid(id, notification, reasonParams)
	}

	c := *req
	c.ID = id
	c.Params = params
	return Message{Request: &c, ID: id, Notification: notification}
}

func classify(raw json.RawMessage) Message {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return invalid(nullID, false, reasonObject)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return invalid(nullID, false, reasonObject)
	}

	id, hasID := fields["id"]
	_, hasMethod := fields["method"]
	notification := !hasID || bytes.Equal(id, nullID)
	if notification && !hasMethod {
		// Without a method the element cannot be told apart from garbage.
		return invalid(nullID, false, reasonMethod)
	}
	if notification {
		id = nil
	} else if !validID(id) {
		return invalid(nullID, false, reasonID)
	}

	var version string
	if v, ok := fields["jsonrpc"]; !ok || json.Unmarshal(v, &version) != nil || version != JSONRPCVersion {
		return invalid(id, notification, reasonVersion)
	}

	var method string
	if m, ok := fields["method"]; !ok || json.Unmarshal(m, &method) != nil || method == "" {
		return invalid(id, notification, reasonMethod)
	}

	params := fields["params"]
	if bytes.Equal(params, nullID) {
		params = nil
	}
	if len(params) > 0 && params[0] != '[' && params[0] != '{' {
		return invalid(id, notification, reasonParams)
	}

	return Message{
		Request: &Request{
			JSONRPC: version,
			ID:      id,
			Method:  method,
			Params:  params,
		},
		ID:           id,
		Notification: notification,
	}
}

func invalid(id json.RawMessage, notification bool, reason string) Message {
	if len(id) == 0 {
		id = nullID
	}
	return Message{
		Err:          NewInvalidRequest(MsgInvalidRequest).WithData(reason),
		ID:           id,
		Notification: notification,
	}
}

func validID(id json.RawMessage) bool {
	if len(id) == 0 {
		return false
	}
	switch c := id[0]; {
	case c == '"':
		return true
	case c == '-' || (c >= '0' && c <= '9'):
		return true
	}
	return false
}
