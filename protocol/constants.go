package protocol

// OpenRPCVersion is the OpenRPC document version produced by discovery.
const OpenRPCVersion = "1.2.6"

// MethodDiscover is the reserved OpenRPC service discovery method.
const MethodDiscover = "rpc.discover"

// Standard error messages.
const (
	MsgParseError     = "Parse error"
	MsgInvalidRequest = "Invalid Request"
	MsgMethodNotFound = "Method not found"
	MsgInvalidParams  = "Invalid params"
	MsgInternalError  = "Internal error"
	MsgServerError    = "Server error"
)
