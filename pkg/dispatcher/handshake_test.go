package dispatcher

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcp/pkg/auth"
	"github.com/mcpkit/mcp/pkg/protocol"
	"github.com/mcpkit/mcp/pkg/registry"
	"github.com/mcpkit/mcp/pkg/schema"
)

func TestDispatcherInitializeAdvertisesCapabilities(t *testing.T) {
	reg := registry.New()
	err := reg.AddTool(protocol.Tool{Name: "echo", InputSchema: schema.NewBuilder().Build()},
		func(args map[string]any, ctx *protocol.CallContext) (any, error) { return "", nil }, nil)
	require.NoError(t, err)

	d := New(reg, nil, nil, ServerInfo{Name: "Test", Version: "1.0.0"})
	resp := d.Handle(rawRequest(1, "initialize", map[string]any{}), auth.NewAuthRequest())

	var out struct {
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.Equal(t, "2024-11-05", out.Result["protocolVersion"])
	assert.Equal(t, map[string]any{"tools": map[string]any{}}, out.Result["capabilities"])
	assert.Equal(t, map[string]any{"name": "Test", "version": "1.0.0"}, out.Result["serverInfo"])
}

func TestDispatcherPing(t *testing.T) {
	d := New(newTestRegistry(t), nil, nil, ServerInfo{Name: "test", Version: "0.0.1"})
	resp := d.Handle(rawRequest(1, "ping", map[string]any{}), auth.NewAuthRequest())

	var out struct {
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.Equal(t, map[string]any{"pong": true}, out.Result)
}

func TestDispatcherInitializedRequestReturnsEmptyObject(t *testing.T) {
	d := New(newTestRegistry(t), nil, nil, ServerInfo{Name: "test", Version: "0.0.1"})
	resp := d.Handle(rawRequest(1, "initialized", map[string]any{}), auth.NewAuthRequest())

	var out struct {
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.Empty(t, out.Result)
}

func TestDispatcherToolErrorIsHandlerLevelNotProtocol(t *testing.T) {
	reg := registry.New()
	err := reg.AddTool(protocol.Tool{Name: "boom", InputSchema: schema.NewBuilder().Build()},
		func(args map[string]any, ctx *protocol.CallContext) (any, error) {
			return nil, errors.New("kaboom")
		}, nil)
	require.NoError(t, err)

	d := New(reg, nil, nil, ServerInfo{Name: "test", Version: "0.0.1"})
	mustInitialize(t, d)

	resp := d.Handle(rawRequest(2, "tools/call", map[string]any{"name": "boom", "arguments": map[string]any{}}), auth.NewAuthRequest())
	var out struct {
		Result protocol.ToolResult `json:"result"`
		Error  *json.RawMessage    `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.Nil(t, out.Error)
	assert.True(t, out.Result.IsError)
	require.Len(t, out.Result.Content, 1)
	assert.Equal(t, "kaboom", out.Result.Content[0].Text)
}

func TestDispatcherParseErrorEnvelopeHasNullID(t *testing.T) {
	d := New(newTestRegistry(t), nil, nil, ServerInfo{Name: "test", Version: "0.0.1"})
	resp := d.Handle([]byte("not json"), auth.NewAuthRequest())

	var out struct {
		ID    any `json:"id"`
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.Nil(t, out.ID)
	assert.Equal(t, -32700, out.Error.Code)
}

func TestDispatcherAppliesParamDefaults(t *testing.T) {
	reg := registry.New()
	b := schema.NewBuilder().Param("format", schema.TypeString, schema.Default("iso"))
	err := reg.AddTool(protocol.Tool{Name: "clock", InputSchema: b.Build(), Params: b.Params()},
		func(args map[string]any, ctx *protocol.CallContext) (any, error) {
			return args["format"], nil
		}, nil)
	require.NoError(t, err)

	d := New(reg, nil, nil, ServerInfo{Name: "test", Version: "0.0.1"})
	mustInitialize(t, d)

	resp := d.Handle(rawRequest(2, "tools/call", map[string]any{"name": "clock", "arguments": map[string]any{}}), auth.NewAuthRequest())
	var out struct {
		Result protocol.ToolResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp, &out))
	require.Len(t, out.Result.Content, 1)
	assert.Equal(t, "iso", out.Result.Content[0].Text)
}

func TestDispatcherCoercesStringArgumentsToDeclaredType(t *testing.T) {
	reg := registry.New()
	b := schema.NewBuilder().Param("count", schema.TypeInteger)
	err := reg.AddTool(protocol.Tool{Name: "typed", InputSchema: b.Build(), Params: b.Params()},
		func(args map[string]any, ctx *protocol.CallContext) (any, error) {
			n, ok := args["count"].(int64)
			require.True(t, ok, "count should arrive as int64, got %T", args["count"])
			return map[string]any{"count": n}, nil
		}, nil)
	require.NoError(t, err)

	d := New(reg, nil, nil, ServerInfo{Name: "test", Version: "0.0.1"})
	mustInitialize(t, d)

	resp := d.Handle(rawRequest(2, "tools/call", map[string]any{
		"name": "typed", "arguments": map[string]any{"count": "42"},
	}), auth.NewAuthRequest())
	var out struct {
		Result protocol.ToolResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.False(t, out.Result.IsError)
	assert.JSONEq(t, `{"count":42}`, out.Result.Content[0].Text)
}

func TestDispatcherUnknownMethodIsMethodNotFound(t *testing.T) {
	d := New(newTestRegistry(t), nil, nil, ServerInfo{Name: "test", Version: "0.0.1"})
	mustInitialize(t, d)

	resp := d.Handle(rawRequest(2, "tools/uninstall", map[string]any{}), auth.NewAuthRequest())
	var out struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.Equal(t, -32601, out.Error.Code)
}

func TestDispatcherPromptsGetDeniedByPredicate(t *testing.T) {
	reg := registry.New()
	err := reg.AddPrompt(protocol.Prompt{Name: "secret"},
		func(args map[string]string) (any, error) {
			return protocol.Message{Role: "user", Content: []protocol.ContentBlock{protocol.TextBlock("shh")}}, nil
		},
		func(authCtx auth.AuthorizationContext) bool { return authCtx.User.HasLevel(10) })
	require.NoError(t, err)

	provider := auth.ProviderFunc(func(req *auth.AuthRequest) auth.AuthResult {
		return auth.Success(auth.NewUser("u1", 100), "")
	})
	d := New(reg, provider, nil, ServerInfo{Name: "test", Version: "0.0.1"})
	mustInitialize(t, d)

	resp := d.Handle(rawRequest(2, "prompts/get", map[string]any{"name": "secret", "arguments": map[string]any{}}), auth.NewAuthRequest())
	var out struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp, &out))
	assert.Equal(t, -32003, out.Error.Code)
}
