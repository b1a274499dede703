// Package registry is the process-lifetime store of named tools,
// URI-keyed resources, URI-template resources, and named prompts, each
// with an optional per-component authorization predicate.
package registry

import (
	"fmt"
	"sync"

	"github.com/mcpkit/mcp/internal/logger"
	"github.com/mcpkit/mcp/pkg/auth"
	"github.com/mcpkit/mcp/pkg/protocol"
)

type toolEntry struct {
	tool      protocol.Tool
	handler   protocol.ToolHandler
	predicate auth.Predicate
}

type resourceEntry struct {
	resource  protocol.Resource
	handler   protocol.ResourceHandler
	predicate auth.Predicate
}

type templateEntry struct {
	template  protocol.ResourceTemplate
	handler   protocol.ResourceTemplateHandler
	predicate auth.Predicate
}

type promptEntry struct {
	prompt    protocol.Prompt
	handler   protocol.PromptHandler
	predicate auth.Predicate
}

// Registry holds every registered component for the life of the
// process. It is populated at server construction time and is
// read-only thereafter — addX methods are still synchronized so a
// host application may register components lazily from more than one
// goroutine during startup, but concurrent registration is not
// required for correctness once the server starts serving.
type Registry struct {
	mu sync.RWMutex

	tools       []*toolEntry
	toolsByName map[string]*toolEntry

	resources      []*resourceEntry
	resourcesByURI map[string]*resourceEntry

	templates []*templateEntry

	prompts       []*promptEntry
	promptsByName map[string]*promptEntry
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		toolsByName:    map[string]*toolEntry{},
		resourcesByURI: map[string]*resourceEntry{},
		promptsByName:  map[string]*promptEntry{},
	}
}

// AddTool registers a tool under its unique name. Re-registering the
// same name replaces the previous entry, keeping registration
// idempotent by name.
func (r *Registry) AddTool(tool protocol.Tool, handler protocol.ToolHandler, predicate auth.Predicate) error {
	if tool.Name == "" {
		return fmt.Errorf("registry: tool name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &toolEntry{tool: tool, handler: handler, predicate: predicate}
	if existing, ok := r.toolsByName[tool.Name]; ok {
		*existing = *entry
		return nil
	}
	r.toolsByName[tool.Name] = entry
	r.tools = append(r.tools, entry)
	logger.Info("registry: added tool", tool.Name)
	return nil
}

// AddResource registers an exact-match resource under its unique URI.
func (r *Registry) AddResource(resource protocol.Resource, handler protocol.ResourceHandler, predicate auth.Predicate) error {
	if resource.URI == "" {
		return fmt.Errorf("registry: resource uri must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &resourceEntry{resource: resource, handler: handler, predicate: predicate}
	if existing, ok := r.resourcesByURI[resource.URI]; ok {
		*existing = *entry
		return nil
	}
	r.resourcesByURI[resource.URI] = entry
	r.resources = append(r.resources, entry)
	logger.Info("registry: added resource", resource.URI)
	return nil
}

// AddResourceTemplate registers a parameterized URI template. Templates
// are matched, in registration order, only when no exact Resource
// matches.
func (r *Registry) AddResourceTemplate(tmpl protocol.ResourceTemplate, handler protocol.ResourceTemplateHandler, predicate auth.Predicate) error {
	if tmpl.URITemplate == "" {
		return fmt.Errorf("registry: resource template uri must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.templates {
		if e.template.URITemplate == tmpl.URITemplate {
			e.template, e.handler, e.predicate = tmpl, handler, predicate
			return nil
		}
	}
	r.templates = append(r.templates, &templateEntry{template: tmpl, handler: handler, predicate: predicate})
	logger.Info("registry: added resource template", tmpl.URITemplate)
	return nil
}

// AddPrompt registers a named prompt generator.
func (r *Registry) AddPrompt(prompt protocol.Prompt, handler protocol.PromptHandler, predicate auth.Predicate) error {
	if prompt.Name == "" {
		return fmt.Errorf("registry: prompt name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &promptEntry{prompt: prompt, handler: handler, predicate: predicate}
	if existing, ok := r.promptsByName[prompt.Name]; ok {
		*existing = *entry
		return nil
	}
	r.promptsByName[prompt.Name] = entry
	r.prompts = append(r.prompts, entry)
	logger.Info("registry: added prompt", prompt.Name)
	return nil
}

// visible reports whether a component is visible to authCtx: visible
// when either no predicate is registered, or the predicate evaluates
// true. When authCtx.User is nil and the component has a predicate,
// the framework hides it rather than letting an absent user fall
// through a predicate that assumes one exists.
func visible(predicate auth.Predicate, authCtx auth.AuthorizationContext, userPresent bool) bool {
	if predicate == nil {
		return true
	}
	if !userPresent {
		return false
	}
	return predicate(authCtx)
}

// GetTools returns every tool visible to the given user (nil user
// with noAuthConfigured=true means no auth is configured at all, so
// every predicate-free and predicate-bearing tool is visible).
func (r *Registry) GetTools(user *auth.AuthenticatedUser, workspace string, noAuthConfigured bool) []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		ctx := auth.AuthorizationContext{
			User: user, ComponentType: auth.ComponentTool, ComponentName: e.tool.Name,
			Action: auth.ActionCall, Workspace: workspace,
		}
		if e.predicate == nil || noAuthConfigured || visible(e.predicate, ctx, user != nil) {
			out = append(out, e.tool)
		}
	}
	return out
}

// LookupTool returns a registered tool by name along with its
// visibility gate, without filtering — the dispatcher's tools/call
// handler needs to distinguish "not found" from "found but denied".
func (r *Registry) LookupTool(name string) (protocol.Tool, protocol.ToolHandler, auth.Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.toolsByName[name]
	if !ok {
		return protocol.Tool{}, nil, nil, false
	}
	return e.tool, e.handler, e.predicate, true
}

// GetResources returns every exact-match resource visible to user.
func (r *Registry) GetResources(user *auth.AuthenticatedUser, workspace string, noAuthConfigured bool) []protocol.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Resource, 0, len(r.resources))
	for _, e := range r.resources {
		ctx := auth.AuthorizationContext{
			User: user, ComponentType: auth.ComponentResource, ComponentName: e.resource.URI,
			Action: auth.ActionRead, Workspace: workspace,
		}
		if e.predicate == nil || noAuthConfigured || visible(e.predicate, ctx, user != nil) {
			out = append(out, e.resource)
		}
	}
	return out
}

// LookupResource returns a registered resource by exact URI.
func (r *Registry) LookupResource(uri string) (protocol.Resource, protocol.ResourceHandler, auth.Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.resourcesByURI[uri]
	if !ok {
		return protocol.Resource{}, nil, nil, false
	}
	return e.resource, e.handler, e.predicate, true
}

// GetResourceTemplates returns every resource template visible to user.
func (r *Registry) GetResourceTemplates(user *auth.AuthenticatedUser, workspace string, noAuthConfigured bool) []protocol.ResourceTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.ResourceTemplate, 0, len(r.templates))
	for _, e := range r.templates {
		ctx := auth.AuthorizationContext{
			User: user, ComponentType: auth.ComponentResource, ComponentName: e.template.URITemplate,
			Action: auth.ActionRead, Workspace: workspace,
		}
		if e.predicate == nil || noAuthConfigured || visible(e.predicate, ctx, user != nil) {
			out = append(out, e.template)
		}
	}
	return out
}

// MatchResourceTemplate iterates registered templates in registration
// order and returns the first whose pattern matches uri.
func (r *Registry) MatchResourceTemplate(uri string, matchFn func(uri, tmpl string) (map[string]string, bool)) (protocol.ResourceTemplate, protocol.ResourceTemplateHandler, auth.Predicate, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.templates {
		if params, ok := matchFn(uri, e.template.URITemplate); ok {
			return e.template, e.handler, e.predicate, params, true
		}
	}
	return protocol.ResourceTemplate{}, nil, nil, nil, false
}

// GetPrompts returns every prompt visible to user.
func (r *Registry) GetPrompts(user *auth.AuthenticatedUser, workspace string, noAuthConfigured bool) []protocol.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Prompt, 0, len(r.prompts))
	for _, e := range r.prompts {
		ctx := auth.AuthorizationContext{
			User: user, ComponentType: auth.ComponentPrompt, ComponentName: e.prompt.Name,
			Action: auth.ActionGet, Workspace: workspace,
		}
		if e.predicate == nil || noAuthConfigured || visible(e.predicate, ctx, user != nil) {
			out = append(out, e.prompt)
		}
	}
	return out
}

// LookupPrompt returns a registered prompt by name.
func (r *Registry) LookupPrompt(name string) (protocol.Prompt, protocol.PromptHandler, auth.Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.promptsByName[name]
	if !ok {
		return protocol.Prompt{}, nil, nil, false
	}
	return e.prompt, e.handler, e.predicate, true
}

// Counts reports how many of each category are registered, used by
// the dispatcher's initialize handler to decide which capability keys
// to advertise.
func (r *Registry) Counts() (tools, resources, prompts int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools), len(r.resources) + len(r.templates), len(r.prompts)
}
