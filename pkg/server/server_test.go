package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exampleResources "github.com/mcpkit/mcp/examples/resources"
	"github.com/mcpkit/mcp/pkg/auth"
	"github.com/mcpkit/mcp/pkg/protocol"
	"github.com/mcpkit/mcp/pkg/schema"
	"github.com/mcpkit/mcp/pkg/transport"
)

// scriptedTransport feeds a fixed list of frames through the handler
// and records every response, standing in for a live connection.
type scriptedTransport struct {
	frames    [][]byte
	responses [][]byte
}

func (t *scriptedTransport) Serve(handler transport.Handler) error {
	for _, frame := range t.frames {
		if resp := handler(frame, auth.NewAuthRequest()); resp != nil {
			t.responses = append(t.responses, resp)
		}
	}
	return nil
}

func frame(id int, method string, params any) []byte {
	p, _ := json.Marshal(params)
	b, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": id, "method": method, "params": json.RawMessage(p),
	})
	return b
}

func TestServerEndToEndHandshakeCallAndTemplateRead(t *testing.T) {
	st := &scriptedTransport{frames: [][]byte{
		frame(1, "initialize", map[string]any{}),
		frame(2, "tools/call", map[string]any{"name": "echo", "arguments": map[string]any{"text": "hi"}}),
		frame(3, "resources/read", map[string]any{"uri": "users://42"}),
	}}

	srv := New("Test", "1.0.0", st)

	b := schema.NewBuilder().Param("text", schema.TypeString)
	require.NoError(t, srv.RegisterTool(
		protocol.Tool{Name: "echo", InputSchema: b.Build(), Params: b.Params()},
		func(args map[string]any, ctx *protocol.CallContext) (any, error) {
			return args["text"], nil
		}, nil))

	userTmpl, userHandler := exampleResources.UserByID()
	require.NoError(t, srv.RegisterResourceTemplate(userTmpl, userHandler, nil))

	require.NoError(t, srv.Serve())
	require.Len(t, st.responses, 3)

	var initOut struct {
		Result struct {
			ProtocolVersion string         `json:"protocolVersion"`
			Capabilities    map[string]any `json:"capabilities"`
			ServerInfo      struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(st.responses[0], &initOut))
	assert.Equal(t, "2024-11-05", initOut.Result.ProtocolVersion)
	assert.Equal(t, map[string]any{"tools": map[string]any{}, "resources": map[string]any{}}, initOut.Result.Capabilities)
	assert.Equal(t, "Test", initOut.Result.ServerInfo.Name)

	var callOut struct {
		Result protocol.ToolResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(st.responses[1], &callOut))
	require.Len(t, callOut.Result.Content, 1)
	assert.Equal(t, "hi", callOut.Result.Content[0].Text)

	var readOut struct {
		Result protocol.ResourceContentEnvelope `json:"result"`
	}
	require.NoError(t, json.Unmarshal(st.responses[2], &readOut))
	require.Len(t, readOut.Result.Contents, 1)
	assert.Equal(t, "users://42", readOut.Result.Contents[0].URI)
	assert.JSONEq(t, `{"id":42,"name":"User 42"}`, readOut.Result.Contents[0].Text)
}

func TestServerDiscoveryAndCallAgreeOnPredicate(t *testing.T) {
	st := &scriptedTransport{frames: [][]byte{
		frame(1, "initialize", map[string]any{}),
		frame(2, "tools/list", map[string]any{}),
		frame(3, "tools/call", map[string]any{"name": "admin_tool", "arguments": map[string]any{}}),
	}}

	srv := New("Test", "1.0.0", st).WithProvider(auth.ProviderFunc(func(req *auth.AuthRequest) auth.AuthResult {
		return auth.Success(auth.NewUser("guest", 100), "")
	}))

	adminOnly := func(authCtx auth.AuthorizationContext) bool { return authCtx.User.HasLevel(50) }
	require.NoError(t, srv.RegisterTool(protocol.Tool{Name: "echo", InputSchema: schema.NewBuilder().Build()},
		func(args map[string]any, ctx *protocol.CallContext) (any, error) { return "ok", nil }, nil))
	require.NoError(t, srv.RegisterTool(protocol.Tool{Name: "admin_tool", InputSchema: schema.NewBuilder().Build()},
		func(args map[string]any, ctx *protocol.CallContext) (any, error) { return "ok", nil }, adminOnly))

	require.NoError(t, srv.Serve())
	require.Len(t, st.responses, 3)

	var listOut struct {
		Result struct {
			Tools []protocol.Tool `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(st.responses[1], &listOut))
	require.Len(t, listOut.Result.Tools, 1)
	assert.Equal(t, "echo", listOut.Result.Tools[0].Name)

	var callOut struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(st.responses[2], &callOut))
	assert.Equal(t, -32003, callOut.Error.Code)
}
