// Package prompts is a filesystem-backed store of prompt templates,
// each a block of text with {{variable}} placeholders that gets
// rendered into a protocol.PromptHandler at load time.
package prompts

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcpkit/mcp/internal/logger"
	"github.com/mcpkit/mcp/pkg/protocol"
)

// Template is one stored prompt definition: a name, an argument list,
// and Content text containing {{name}} placeholders for each argument.
type Template struct {
	ID          string                      `json:"id"`
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	Content     string                      `json:"content"`
	Tags        []string                    `json:"tags,omitempty"`
	Arguments   map[string]TemplateArgument `json:"arguments"`
}

// TemplateArgument describes one {{placeholder}} in a Template's content.
type TemplateArgument struct {
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Store manages a directory of JSON-encoded Templates.
type Store struct {
	baseDir string
}

// NewStore opens (creating if needed) a store rooted at baseDir. An
// empty baseDir defaults to ~/.mcp/prompts.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		baseDir = filepath.Join(home, ".mcp", "prompts")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("prompts: create store dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) pathFor(id string) (string, error) {
	if strings.Contains(id, "..") || strings.ContainsAny(id, "/\\") {
		return "", fmt.Errorf("prompts: invalid template id %q", id)
	}
	return filepath.Join(s.baseDir, id+".json"), nil
}

// Get reads a single template by id.
func (s *Store) Get(id string) (*Template, error) {
	path, err := s.pathFor(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("prompts: template %q not found", id)
		}
		return nil, err
	}
	var tmpl Template
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("prompts: parse template %q: %w", id, err)
	}
	return &tmpl, nil
}

// Put writes a template to the store.
func (s *Store) Put(tmpl *Template) error {
	if tmpl.ID == "" {
		return fmt.Errorf("prompts: template id must not be empty")
	}
	path, err := s.pathFor(tmpl.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(tmpl, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// List returns every template currently in the store.
func (s *Store) List() ([]Template, error) {
	var out []Template
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		id := strings.TrimSuffix(d.Name(), ".json")
		tmpl, err := s.Get(id)
		if err != nil {
			logger.Warn("prompts: skipping unreadable template", id, err)
			return nil
		}
		out = append(out, *tmpl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SeedDefaults writes each of a small set of example templates whose
// id is not already in the store, giving a new deployment something to
// list.
func (s *Store) SeedDefaults() {
	defaults := []*Template{
		{
			ID:          "code-review",
			Name:        "Code Review",
			Description: "Review code for best practices, bugs, and improvements",
			Content:     "Review the following {{language}} code for best practices, bugs, and performance issues:\n\n```{{language}}\n{{code}}\n```",
			Tags:        []string{"development", "review"},
			Arguments: map[string]TemplateArgument{
				"language": {Description: "Programming language", Required: true},
				"code":     {Description: "The code to review", Required: true},
			},
		},
		{
			ID:          "explain-concept",
			Name:        "Explain Technical Concept",
			Description: "Explain a technical concept in simple terms",
			Content:     "Explain {{concept}} in terms a {{audience}} would understand, covering what it is, why it matters, and a concrete example.",
			Tags:        []string{"education"},
			Arguments: map[string]TemplateArgument{
				"concept":  {Description: "The concept to explain", Required: true},
				"audience": {Description: "Target audience", Required: false},
			},
		},
	}
	for _, tmpl := range defaults {
		if _, err := s.Get(tmpl.ID); err != nil {
			if putErr := s.Put(tmpl); putErr != nil {
				logger.Warn("prompts: failed to seed default template", tmpl.ID, putErr)
			}
		}
	}
}

// ToComponent converts a stored Template into the registry-ready
// (protocol.Prompt, protocol.PromptHandler) pair: the handler
// substitutes every {{name}} occurrence in Content with the supplied
// argument, in argument-declaration order, so missing optional
// arguments collapse to an empty string rather than erroring.
func (tmpl Template) ToComponent() (protocol.Prompt, protocol.PromptHandler) {
	args := make([]protocol.PromptArgument, 0, len(tmpl.Arguments))
	for name, a := range tmpl.Arguments {
		args = append(args, protocol.PromptArgument{Name: name, Required: a.Required, Description: a.Description})
	}

	prompt := protocol.Prompt{Name: tmpl.ID, Description: tmpl.Description, Arguments: args}

	handler := func(values map[string]string) (any, error) {
		rendered := tmpl.Content
		for name := range tmpl.Arguments {
			rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", values[name])
		}
		return protocol.PromptGeneration{
			Description: tmpl.Description,
			Messages: []protocol.Message{
				{Role: "user", Content: []protocol.ContentBlock{protocol.TextBlock(rendered)}},
			},
		}, nil
	}
	return prompt, handler
}
