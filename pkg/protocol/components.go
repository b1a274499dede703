package protocol

import (
	"encoding/base64"
	"encoding/json"

	"github.com/mcpkit/mcp/pkg/schema"
)

// CallContext is the per-invocation object the dispatcher builds for
// every request and threads into any callable that declares a
// schema.Context parameter. It is created fresh per request and never
// shared or reused across requests.
type CallContext struct {
	RequestID string
	ClientID  string
	Logger    Logger
	// State is transient per-call storage a handler can use to pass
	// data to itself across its own helper calls; it is never read by
	// the dispatcher.
	State map[string]any
}

// Logger is the minimal logging surface CallContext exposes to
// callables, satisfied by *internal/logger.Logger without this
// package importing it (avoiding an import cycle: logger is
// dependency-free and internal/ while protocol is a public package).
type Logger interface {
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// Tool is a registered callable component. Params is the ordered
// declared parameter list the InputSchema was built from; the
// dispatcher binds client arguments against it (defaults, nullable
// fallback, string coercion). A Tool constructed without Params is
// bound against the wire schema's required list alone.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema schema.InputSchema `json:"inputSchema"`
	Params      []schema.Param     `json:"-"`
	Tags        []string           `json:"-"`
	Timeout     int                `json:"-"`
}

// ToolHandler executes a tool call. args has already been bound
// against the tool's declared parameter list (defaults applied,
// missing-required checked) by the dispatcher.
type ToolHandler func(args map[string]any, ctx *CallContext) (any, error)

// Resource is a registered, URI-addressed, exact-match datum.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceHandler reads a resource's content on demand.
type ResourceHandler func() (any, error)

// ResourceTemplate is a URI pattern with {var} placeholders, matched
// only when no exact Resource matches.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplateHandler reads a resource-template-backed resource
// given the variables captured from the matched concrete URI.
type ResourceTemplateHandler func(params map[string]string) (any, error)

// PromptArgument describes one prompt parameter as advertised to the
// client in prompts/list.
type PromptArgument struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Prompt is a named generator that produces a conversation message list.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptHandler generates the prompt's content for a set of arguments.
// It may return a single Message, a []Message, or a PromptGeneration.
type PromptHandler func(args map[string]string) (any, error)

// PromptGeneration is the richest shape a PromptHandler may return:
// a message list plus an optional override of the prompt's description.
type PromptGeneration struct {
	Messages    []Message
	Description string
}

// Message is one entry of a prompt generation or a tool conversation.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a tagged content variant: text or an inline image.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// TextBlock builds a text ContentBlock.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ImageBlock builds a base64-inline image ContentBlock.
func ImageBlock(base64Data, mimeType string) ContentBlock {
	return ContentBlock{Type: "image", Data: base64Data, MimeType: mimeType}
}

// ToolResult is the richest shape a ToolHandler may return directly;
// anything else returned is normalized into one by IntoToolResult.
type ToolResult struct {
	Content           []ContentBlock `json:"content"`
	IsError           bool           `json:"isError,omitempty"`
	StructuredContent any            `json:"structuredContent,omitempty"`
	Meta              any            `json:"_meta,omitempty"`
}

// IntoToolResult normalizes any shape a tool callable may return into
// a wire ToolResult. A returned error is turned into the handler-level
// {isError:true} shape, never a protocol error: tool execution
// failures are isolated from protocol failures.
func IntoToolResult(v any, callErr error) ToolResult {
	if callErr != nil {
		return ToolResult{
			Content: []ContentBlock{TextBlock(callErr.Error())},
			IsError: true,
		}
	}
	switch val := v.(type) {
	case ToolResult:
		return val
	case *ToolResult:
		return *val
	case string:
		return ToolResult{Content: []ContentBlock{TextBlock(val)}}
	case []ContentBlock:
		return ToolResult{Content: val}
	case ContentBlock:
		return ToolResult{Content: []ContentBlock{val}}
	case nil:
		return ToolResult{Content: []ContentBlock{TextBlock("")}}
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ToolResult{
				Content: []ContentBlock{TextBlock(err.Error())},
				IsError: true,
			}
		}
		return ToolResult{Content: []ContentBlock{TextBlock(string(b))}}
	}
}

// ResourceContentEnvelope is the {contents:[...]} wrapper resources/read
// returns.
type ResourceContentEnvelope struct {
	Contents []ResourceContent `json:"contents"`
}

// ResourceContent is one entry of a resources/read response: a
// resource's content is either inline text or base64-encoded binary.
type ResourceContent struct {
	URI      string `json:"uri"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// IntoResourceContent normalizes a resource read's return value into
// the wire {uri, text|blob, mimeType?} shape: string content becomes
// text, structured content is JSON-serialized into text, and []byte
// becomes a base64 blob.
func IntoResourceContent(uri, mimeType string, v any) (ResourceContent, error) {
	switch val := v.(type) {
	case string:
		return ResourceContent{URI: uri, Text: val, MimeType: mimeType}, nil
	case []byte:
		return ResourceContent{URI: uri, Blob: base64.StdEncoding.EncodeToString(val), MimeType: mimeType}, nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ResourceContent{}, err
		}
		return ResourceContent{URI: uri, Text: string(b), MimeType: mimeType}, nil
	}
}
