// Package transport provides JSON-RPC 2.0 clients for remote proxies.
//
// Two clients are available:
//
//   - HTTPClient posts one request per call to an HTTP endpoint
//   - WebSocketClient multiplexes calls over a single WebSocket connection
//
// Both satisfy adapter.Client. Network and protocol failures are reported as
// *TransportError; errors returned by the remote service are reported as
// *Error so callers can inspect the JSON-RPC error code.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the JSON-RPC protocol version
const Version = "2.0"

// JSON-RPC 2.0 error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

var (
	ErrInvalidVersion = errors.New("jsonrpc: version must be 2.0")
	ErrMissingMethod  = errors.New("jsonrpc: missing method field")
	ErrClosed         = errors.New("jsonrpc: client closed")
)

// Request is a JSON-RPC 2.0 request. Params holds either an object of
// named parameters or an array of positional ones.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response is a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Error is a JSON-RPC 2.0 error object
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError creates an error object
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsNotification reports whether the request carries no id
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Validate checks the protocol version and method
func (r *Request) Validate() error {
	if r.JSONRPC != Version {
		return ErrInvalidVersion
	}
	if r.Method == "" {
		return ErrMissingMethod
	}
	return nil
}

// NewRequest builds a request with JSON-encoded params and id
func NewRequest(method string, params any, id any) (*Request, error) {
	req := &Request{
		JSONRPC: Version,
		Method:  method,
	}

	if params != nil {
		p, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = p
	}

	idBytes, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("failed to encode id: %w", err)
	}
	req.ID = idBytes

	return req, nil
}

// NewResult builds a success response for id
func NewResult(id json.RawMessage, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &Response{JSONRPC: Version, Result: raw, ID: normalizeID(id)}, nil
}

// NewErrorResponse builds an error response for id
func NewErrorResponse(id json.RawMessage, rpcErr *Error) *Response {
	return &Response{JSONRPC: Version, Error: rpcErr, ID: normalizeID(id)}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// TransportError reports a failure to deliver a call or read its response
type TransportError struct {
	Method string
	Op     string
	Err    error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Method, e.Err)
}

// Unwrap returns the underlying cause
func (e *TransportError) Unwrap() error {
	return e.Err
}

// result converts a response into the value returned to adapters
func (r *Response) result() (any, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	if len(r.Result) == 0 || string(r.Result) == "null" {
		return nil, nil
	}
	return r.Result, nil
}
