// Package mcppool implements the remote tool client pool: pooled, reusable
// HTTP JSON-RPC sessions to one or more tool-server endpoints, with request
// dispatch, error classification, and the proxy/direct tool-naming policy.
package mcppool

import (
	"context"
	"encoding/json"
)

// Caller invokes a single remote tool call, or lists a tool-server's
// catalog, over a session. Implemented by the HTTP JSON-RPC transport; a
// distinct implementation is substituted in tests.
type Caller interface {
	CallTool(ctx context.Context, req CallRequest) (CallResponse, error)
	// ListTools returns the tool-server's advertised catalog (the
	// protocol's "tools/list" call), used for remote tool discovery.
	ListTools(ctx context.Context) ([]ToolInfo, error)
}

// ToolInfo is one entry of a tool-server's advertised catalog.
type ToolInfo struct {
	Name        string
	Description string
	// InputSchema is the tool's JSON Schema document, as raw JSON.
	InputSchema json.RawMessage
}

// CallRequest is one tool-server call. Tool is the effective, already
// namespaced tool name (see NamingPolicy); the pool applies the naming rule
// before constructing this.
type CallRequest struct {
	Tool    string
	Payload json.RawMessage
}

// CallResponse is the normalized tool-server result.
type CallResponse struct {
	// Result is the JSON payload returned by the tool server.
	Result json.RawMessage
	// Structured carries the result as JSON for callers that want the parsed
	// form rather than the rendered string: the text content itself when the
	// server marked it as application/json, otherwise the same JSON as Result.
	Structured json.RawMessage
}

// ErrorKind classifies a RemoteError for the activity layer's retry policy.
type ErrorKind int

const (
	// Transport covers connect/network failures. Retriable.
	Transport ErrorKind = iota
	// Protocol covers tool-server protocol errors: unknown tool, bad
	// arguments. Not retriable.
	Protocol
	// Timeout covers a call that did not complete in time. Retriable.
	Timeout
)

func (k ErrorKind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// RemoteError is the classified failure returned by a remote tool call.
// Retriable is advisory; the surrounding activity layer decides its actual
// retry policy from it (§4.3).
type RemoteError struct {
	Kind      ErrorKind
	Retriable bool
	Message   string
	// RepairHint is set for Protocol errors caused by bad arguments; it is a
	// deterministic prompt fragment the reasoner can act on next iteration
	// (see repair.go).
	RepairHint string
	Cause      error
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Kind.String() + " error"
}

func (e *RemoteError) Unwrap() error { return e.Cause }
