// Package middleware is the chainable middleware layer that wraps
// every dispatcher method call. Each registered Middleware may supply
// a method-specific hook (onCallTool, onListTools, ...) and a
// universal onRequest hook; both are optional, so a logging
// middleware need only implement onRequest while an authorization
// middleware can target tools/call alone.
package middleware

import (
	"time"

	"github.com/mcpkit/mcp/pkg/auth"
	"github.com/mcpkit/mcp/pkg/protocol"
)

// AuthRequestAttribute is the key the dispatcher stores the incoming
// auth.AuthRequest under, so an authentication-extracting middleware
// can read raw credentials without the dispatcher needing to know
// which middleware (if any) wants them.
const AuthRequestAttribute = "authRequest"

// NextFunc continues the chain (or, for the innermost link, invokes
// the dispatcher's terminal handler).
type NextFunc func() (any, error)

// HookFunc is the signature every middleware hook implements: it
// receives the shared MiddlewareContext and the method's raw params,
// and decides whether to call next, short-circuit with its own
// result, or return an error that aborts the whole chain.
type HookFunc func(ctx *MiddlewareContext, params any, next NextFunc) (any, error)

// MiddlewareContext is threaded through every hook in a chain
// invocation. Attributes is a free-form bag a hook can use to pass
// data to hooks further down the chain (e.g. an auth middleware
// stashing a rate-limit bucket key for a logging middleware to read).
//
// WithUser and WithWorkspace return a copy with the field replaced
// rather than mutating in place, so a hook earlier in the chain never
// sees a later hook's changes reflected back into its own ctx
// variable — only what flows forward through next() is affected.
type MiddlewareContext struct {
	Message    *protocol.RPCMessage
	Method     string
	Timestamp  time.Time
	User       *auth.AuthenticatedUser
	Workspace  string
	Attributes map[string]any
}

// NewContext builds an empty MiddlewareContext for the given message.
func NewContext(msg *protocol.RPCMessage) *MiddlewareContext {
	return &MiddlewareContext{Message: msg, Method: msg.Method, Timestamp: time.Now(), Attributes: map[string]any{}}
}

// WithUser returns a shallow copy of ctx with User replaced.
func (c *MiddlewareContext) WithUser(u *auth.AuthenticatedUser) *MiddlewareContext {
	cp := *c
	cp.User = u
	return &cp
}

// WithWorkspace returns a shallow copy of ctx with Workspace replaced.
func (c *MiddlewareContext) WithWorkspace(ws string) *MiddlewareContext {
	cp := *c
	cp.Workspace = ws
	return &cp
}

// Set stores a value under key, visible to every hook invoked after
// this one in the current chain traversal.
func (c *MiddlewareContext) Set(key string, value any) {
	c.Attributes[key] = value
}

// Get reads a value previously stored with Set.
func (c *MiddlewareContext) Get(key string) (any, bool) {
	v, ok := c.Attributes[key]
	return v, ok
}

// Middleware is one named link in the chain. Every hook field is
// optional; a nil hook is simply skipped when building the chain for
// a given method.
type Middleware struct {
	Name string

	OnInitialize    HookFunc
	OnCallTool      HookFunc
	OnListTools     HookFunc
	OnReadResource  HookFunc
	OnListResources HookFunc
	OnGetPrompt     HookFunc
	OnListPrompts   HookFunc
	OnRequest       HookFunc
}

// methodHook returns the method-specific hook a Middleware declares
// for the given JSON-RPC method name, if any.
func (m Middleware) methodHook(method string) HookFunc {
	switch method {
	case "initialize":
		return m.OnInitialize
	case "tools/call":
		return m.OnCallTool
	case "tools/list":
		return m.OnListTools
	case "resources/read":
		return m.OnReadResource
	case "resources/list", "resources/templates/list":
		return m.OnListResources
	case "prompts/get":
		return m.OnGetPrompt
	case "prompts/list":
		return m.OnListPrompts
	default:
		return nil
	}
}

// Chain is an ordered list of Middleware, applied in registration
// order: the first-registered middleware is the outermost wrapper,
// so it observes the request first and the response last.
type Chain struct {
	middlewares []Middleware
}

// NewChain builds an empty Chain.
func NewChain() *Chain {
	return &Chain{}
}

// Use appends a middleware to the end of the chain.
func (c *Chain) Use(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Invoke runs ctx.Method through the chain and finally through
// terminal, which is the dispatcher's own handler for that method.
//
// Wrapping happens in two phases. First the method-specific hooks
// (e.g. every registered OnCallTool) are wrapped around terminal, in
// reverse registration order, so that after wrapping the
// first-registered method hook is outermost of that inner layer.
// Second, the universal onRequest hooks are wrapped around the result
// of phase one, also in reverse registration order. The net effect:
// for any given method, execution order is
// onRequest[0] -> onRequest[1] -> ... -> methodHook[0] -> methodHook[1] -> ... -> terminal
// and each hook may short-circuit by not calling next.
func (c *Chain) Invoke(ctx *MiddlewareContext, params any, terminal NextFunc) (any, error) {
	next := terminal
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		hook := c.middlewares[i].methodHook(ctx.Method)
		if hook == nil {
			continue
		}
		bound := next
		h := hook
		next = func() (any, error) { return h(ctx, params, bound) }
	}
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		hook := c.middlewares[i].OnRequest
		if hook == nil {
			continue
		}
		bound := next
		h := hook
		next = func() (any, error) { return h(ctx, params, bound) }
	}
	return next()
}
