package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcp/pkg/protocol"
)

func TestStorePutGetList(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	tmpl := &Template{
		ID:      "greet",
		Name:    "Greet",
		Content: "Hello {{name}}",
		Arguments: map[string]TemplateArgument{
			"name": {Required: true},
		},
	}
	require.NoError(t, store.Put(tmpl))

	got, err := store.Get("greet")
	require.NoError(t, err)
	assert.Equal(t, "Hello {{name}}", got.Content)

	all, err := store.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestStoreRejectsPathTraversalID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("../etc/passwd")
	assert.Error(t, err)
}

func TestTemplateToComponentRendersPlaceholders(t *testing.T) {
	tmpl := Template{
		ID:      "greet",
		Content: "Hello {{name}}, welcome to {{place}}",
		Arguments: map[string]TemplateArgument{
			"name":  {Required: true},
			"place": {Required: false},
		},
	}
	prompt, handler := tmpl.ToComponent()
	assert.Equal(t, "greet", prompt.Name)
	assert.Len(t, prompt.Arguments, 2)

	result, err := handler(map[string]string{"name": "Ada", "place": "Go"})
	require.NoError(t, err)

	gen := result.(protocol.PromptGeneration)
	require.Len(t, gen.Messages, 1)
	assert.Equal(t, "Hello Ada, welcome to Go", gen.Messages[0].Content[0].Text)
}
