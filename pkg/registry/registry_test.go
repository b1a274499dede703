package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcp/pkg/auth"
	"github.com/mcpkit/mcp/pkg/protocol"
	"github.com/mcpkit/mcp/pkg/schema"
	"github.com/mcpkit/mcp/pkg/uritemplate"
)

func echoHandler(args map[string]any, ctx *protocol.CallContext) (any, error) {
	return args, nil
}

func newFilteredRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New()
	require.NoError(t, r.AddTool(protocol.Tool{Name: "echo", InputSchema: schema.NewBuilder().Build()}, echoHandler, nil))
	require.NoError(t, r.AddTool(protocol.Tool{Name: "admin_tool", InputSchema: schema.NewBuilder().Build()}, echoHandler,
		func(authCtx auth.AuthorizationContext) bool { return authCtx.User.HasLevel(50) }))
	return r
}

func TestGetToolsFiltersByPredicate(t *testing.T) {
	r := newFilteredRegistry(t)

	privileged := r.GetTools(auth.NewUser("root", 10), "", false)
	require.Len(t, privileged, 2)

	unprivileged := r.GetTools(auth.NewUser("guest", 100), "", false)
	require.Len(t, unprivileged, 1)
	assert.Equal(t, "echo", unprivileged[0].Name)
}

func TestGetToolsHidesPredicateBearingFromAbsentUser(t *testing.T) {
	r := newFilteredRegistry(t)

	tools := r.GetTools(nil, "", false)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
}

func TestGetToolsShowsEverythingWhenNoAuthConfigured(t *testing.T) {
	r := newFilteredRegistry(t)

	tools := r.GetTools(nil, "", true)
	assert.Len(t, tools, 2)
}

func TestAddToolReplacesByName(t *testing.T) {
	r := New()
	require.NoError(t, r.AddTool(protocol.Tool{Name: "echo", Description: "first"}, echoHandler, nil))
	require.NoError(t, r.AddTool(protocol.Tool{Name: "echo", Description: "second"}, echoHandler, nil))

	tools := r.GetTools(nil, "", true)
	require.Len(t, tools, 1)
	assert.Equal(t, "second", tools[0].Description)
}

func TestAddToolRejectsEmptyName(t *testing.T) {
	r := New()
	assert.Error(t, r.AddTool(protocol.Tool{}, echoHandler, nil))
}

func TestMatchResourceTemplateFirstRegisteredWins(t *testing.T) {
	r := New()
	require.NoError(t, r.AddResourceTemplate(protocol.ResourceTemplate{URITemplate: "files://{path*}", Name: "greedy"},
		func(params map[string]string) (any, error) { return "greedy", nil }, nil))
	require.NoError(t, r.AddResourceTemplate(protocol.ResourceTemplate{URITemplate: "files://{name}", Name: "narrow"},
		func(params map[string]string) (any, error) { return "narrow", nil }, nil))

	tmpl, handler, _, params, ok := r.MatchResourceTemplate("files://a", uritemplate.Match)
	require.True(t, ok)
	assert.Equal(t, "greedy", tmpl.Name)
	assert.Equal(t, "a", params["path"])

	v, err := handler(params)
	require.NoError(t, err)
	assert.Equal(t, "greedy", v)
}

func TestGetResourcesAndPromptsFilterByPredicate(t *testing.T) {
	r := New()
	require.NoError(t, r.AddResource(protocol.Resource{URI: "docs://open", Name: "open"},
		func() (any, error) { return "", nil }, nil))
	require.NoError(t, r.AddResource(protocol.Resource{URI: "docs://secret", Name: "secret"},
		func() (any, error) { return "", nil },
		func(authCtx auth.AuthorizationContext) bool { return false }))
	require.NoError(t, r.AddPrompt(protocol.Prompt{Name: "open"},
		func(args map[string]string) (any, error) { return nil, nil }, nil))
	require.NoError(t, r.AddPrompt(protocol.Prompt{Name: "secret"},
		func(args map[string]string) (any, error) { return nil, nil },
		func(authCtx auth.AuthorizationContext) bool { return false }))

	user := auth.NewUser("u1", 100)
	resources := r.GetResources(user, "", false)
	require.Len(t, resources, 1)
	assert.Equal(t, "docs://open", resources[0].URI)

	prompts := r.GetPrompts(user, "", false)
	require.Len(t, prompts, 1)
	assert.Equal(t, "open", prompts[0].Name)
}

func TestCounts(t *testing.T) {
	r := New()
	require.NoError(t, r.AddTool(protocol.Tool{Name: "echo"}, echoHandler, nil))
	require.NoError(t, r.AddResource(protocol.Resource{URI: "docs://x", Name: "x"},
		func() (any, error) { return "", nil }, nil))
	require.NoError(t, r.AddResourceTemplate(protocol.ResourceTemplate{URITemplate: "users://{id}", Name: "u"},
		func(params map[string]string) (any, error) { return "", nil }, nil))

	tools, resources, prompts := r.Counts()
	assert.Equal(t, 1, tools)
	assert.Equal(t, 2, resources)
	assert.Equal(t, 0, prompts)
}
