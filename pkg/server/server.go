// Package server wires a Registry, an auth.Provider, a middleware.Chain
// and a transport.Transport together into a runnable MCP server. It is
// a thin composition layer: a host application builds one with New,
// registers its tools/resources/prompts, then calls Serve.
package server

import (
	"github.com/mcpkit/mcp/internal/logger"
	"github.com/mcpkit/mcp/pkg/auth"
	"github.com/mcpkit/mcp/pkg/dispatcher"
	"github.com/mcpkit/mcp/pkg/middleware"
	"github.com/mcpkit/mcp/pkg/protocol"
	"github.com/mcpkit/mcp/pkg/registry"
	"github.com/mcpkit/mcp/pkg/transport"
)

// Server composes the pieces a host application needs to run an MCP
// endpoint: a component Registry, an auth Provider, a middleware Chain
// and whichever Transport it was built with.
type Server struct {
	Info     dispatcher.ServerInfo
	Registry *registry.Registry
	Chain    *middleware.Chain
	Provider auth.Provider

	transport    transport.Transport
	authRequired bool
}

// New creates a Server with an empty Registry and Chain. Name and
// version are reported to clients during initialize.
func New(name, version string, t transport.Transport) *Server {
	return &Server{
		Info:      dispatcher.ServerInfo{Name: name, Version: version},
		Registry:  registry.New(),
		Chain:     middleware.NewChain(),
		transport: t,
	}
}

// WithProvider installs the auth.Provider consulted for every
// non-public method. A nil provider means no authentication is
// configured: requests carry no authenticated user and every component,
// predicate-bearing or not, is visible and callable.
func (s *Server) WithProvider(p auth.Provider) *Server {
	s.Provider = p
	return s
}

// RequireAuth controls whether an Unauthenticated caller (no
// credentials presented at all) is rejected outright or let through to
// predicate-free components. Defaults to false.
func (s *Server) RequireAuth(required bool) *Server {
	s.authRequired = required
	return s
}

// Use appends a middleware to the chain.
func (s *Server) Use(m middleware.Middleware) *Server {
	s.Chain.Use(m)
	return s
}

// RegisterTool adds a tool to the registry, optionally gated by a
// predicate evaluated against the caller's AuthorizationContext.
func (s *Server) RegisterTool(tool protocol.Tool, handler protocol.ToolHandler, predicate auth.Predicate) error {
	logger.Info("server: registering tool", tool.Name)
	return s.Registry.AddTool(tool, handler, predicate)
}

// RegisterResource adds a fixed-URI resource to the registry.
func (s *Server) RegisterResource(resource protocol.Resource, handler protocol.ResourceHandler, predicate auth.Predicate) error {
	logger.Info("server: registering resource", resource.URI)
	return s.Registry.AddResource(resource, handler, predicate)
}

// RegisterResourceTemplate adds a parameterized resource template to
// the registry.
func (s *Server) RegisterResourceTemplate(tmpl protocol.ResourceTemplate, handler protocol.ResourceTemplateHandler, predicate auth.Predicate) error {
	logger.Info("server: registering resource template", tmpl.URITemplate)
	return s.Registry.AddResourceTemplate(tmpl, handler, predicate)
}

// RegisterPrompt adds a prompt to the registry.
func (s *Server) RegisterPrompt(prompt protocol.Prompt, handler protocol.PromptHandler, predicate auth.Predicate) error {
	logger.Info("server: registering prompt", prompt.Name)
	return s.Registry.AddPrompt(prompt, handler, predicate)
}

// Serve builds the Dispatcher from the currently-registered components
// and runs the transport's Serve loop. It blocks until the transport
// returns, which for stdio happens on EOF and for the HTTP/SSE
// listeners happens on a fatal listen error.
func (s *Server) Serve() error {
	tools, resourceCount, promptCount := s.Registry.Counts()
	logger.Info("server: starting", s.Info.Name, s.Info.Version,
		"tools", tools, "resources", resourceCount, "prompts", promptCount)

	d := dispatcher.New(s.Registry, s.Provider, s.Chain, s.Info)
	d.RequireAuth(s.authRequired)
	return s.transport.Serve(d.Handle)
}
