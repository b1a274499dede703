// Package protocol implements the JSON-RPC 2.0 wire format the MCP
// dispatcher speaks: parsing raw bytes into an RPCMessage, and encoding
// results/errors/notifications back into bytes.
//
// https://modelcontextprotocol.info/specification/draft/basic/lifecycle/
// Flow:
//
//	Host connects, sends 'initialize' with its protocolVersion and clientInfo.
//	We respond with our protocolVersion, capabilities and serverInfo.
//	Host sends the 'notifications/initialized' notification (no response).
//	Host sends 'tools/list' (and maybe 'resources/list', 'prompts/list').
//	Host then issues 'tools/call' / 'resources/read' / 'prompts/get' as needed.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mcpkit/mcp/pkg/protoerr"
)

// JsonRpcVersion is the only acceptable value of the "jsonrpc" field.
const JsonRpcVersion = "2.0"

// ProtocolVersion is the MCP protocol version this server advertises.
const ProtocolVersion = "2024-11-05"

// Message method name constants, case-sensitive per spec.
const (
	MethodInitialize            = "initialize"
	MethodInitialized           = "initialized"
	MethodPing                  = "ping"
	MethodToolsList             = "tools/list"
	MethodToolsCall             = "tools/call"
	MethodResourcesList         = "resources/list"
	MethodResourcesRead         = "resources/read"
	MethodResourceTemplatesList = "resources/templates/list"
	MethodPromptsList           = "prompts/list"
	MethodPromptsGet            = "prompts/get"
	NotificationInitialized     = "notifications/initialized"
	NotificationCancelled       = "notifications/cancelled"
	NotificationProgress        = "notifications/progress"
)

// JsonRpcRequest is the raw wire shape of a JSON-RPC 2.0 request or
// notification.
type JsonRpcRequest struct {
	JsonRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// JsonRpcResponse is the raw wire shape of a JSON-RPC 2.0 response.
type JsonRpcResponse struct {
	JsonRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JsonRpcError   `json:"error,omitempty"`
	ID      any             `json:"id"`
}

// JsonRpcError is the error object embedded in an error response.
type JsonRpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *JsonRpcError) Error() string {
	return fmt.Sprintf("jsonrpc error: code=%d message=%s", e.Code, e.Message)
}

// RPCMessage is the parsed, codec-level representation of one incoming
// frame: a Request if HasID is true, a Notification otherwise.
type RPCMessage struct {
	Method string
	Params json.RawMessage
	ID     any
	HasID  bool
}

// IsNotification reports whether the message carries no id and
// therefore expects no response.
func (m *RPCMessage) IsNotification() bool {
	return !m.HasID
}

// rawMessage mirrors JsonRpcRequest but keeps id/method/params as raw
// JSON so we can distinguish "id omitted" from "id is null" precisely
// and reject non-object params.
type rawMessage struct {
	JsonRPC string          `json:"jsonrpc"`
	Method  json.RawMessage `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// Parse decodes one JSON-RPC 2.0 frame. It returns a *protoerr.Error
// with CodeParseError on malformed JSON, or CodeInvalidRequest on a
// structural violation (wrong/missing jsonrpc, missing/non-string
// method, or a params value that is neither an object nor omitted).
func Parse(data []byte) (*RPCMessage, error) {
	var raw rawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, protoerr.ParseError("Parse error: %s", err.Error())
	}

	if raw.JsonRPC != JsonRpcVersion {
		return nil, protoerr.InvalidRequest("invalid or missing jsonrpc version: %q", raw.JsonRPC)
	}

	var method string
	if len(raw.Method) == 0 {
		return nil, protoerr.InvalidRequest("missing method")
	}
	if err := json.Unmarshal(raw.Method, &method); err != nil {
		return nil, protoerr.InvalidRequest("method must be a string")
	}

	params := raw.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	} else {
		trimmed := bytes.TrimSpace(params)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, protoerr.InvalidRequest("params must be an object when present")
		}
	}

	msg := &RPCMessage{Method: method, Params: params}
	if raw.ID != nil {
		msg.HasID = true
		if err := json.Unmarshal(raw.ID, &msg.ID); err != nil {
			return nil, protoerr.InvalidRequest("invalid id")
		}
	}
	return msg, nil
}

// EncodeResult encodes a successful JSON-RPC response.
func EncodeResult(id any, result any) ([]byte, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	resp := JsonRpcResponse{JsonRPC: JsonRpcVersion, ID: id, Result: resultJSON}
	return marshalNoEscape(resp)
}

// EncodeError encodes a JSON-RPC error response. id may be nil when
// the original request's id could not be determined (a parse failure).
func EncodeError(id any, code int, message string, data any) ([]byte, error) {
	resp := JsonRpcResponse{
		JsonRPC: JsonRpcVersion,
		ID:      id,
		Error:   &JsonRpcError{Code: code, Message: message, Data: data},
	}
	return marshalNoEscape(resp)
}

// EncodeNotification encodes an outbound notification (no id).
func EncodeNotification(method string, params any) ([]byte, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req := JsonRpcRequest{JsonRPC: JsonRpcVersion, Method: method, Params: paramsJSON}
	return marshalNoEscape(req)
}

// marshalNoEscape marshals v without HTML-escaping (so slashes in
// URIs and text content round-trip unchanged), matching the "slashes
// are not escaped" requirement of the wire format.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseJsonRpcRequest is kept for callers that want the raw wire
// struct instead of the codec-level RPCMessage (e.g. logging the full
// inbound request verbatim for debugging).
func ParseJsonRpcRequest(data []byte) (*JsonRpcRequest, error) {
	var req JsonRpcRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.JsonRPC != JsonRpcVersion {
		return nil, fmt.Errorf("invalid JSON-RPC version: %s", req.JsonRPC)
	}
	return &req, nil
}
