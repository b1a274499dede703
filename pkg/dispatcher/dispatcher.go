// Package dispatcher is the JSON-RPC request dispatch engine: it
// tracks the initialize/initialized lifecycle, authenticates and
// authorizes each call against the registry and middleware chain, and
// routes every terminal method to its handler. It never performs
// transport I/O itself — a Transport hands it raw bytes and gets raw
// bytes (or nothing, for a notification) back.
package dispatcher

import (
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/mcpkit/mcp/internal/logger"
	"github.com/mcpkit/mcp/pkg/auth"
	"github.com/mcpkit/mcp/pkg/middleware"
	"github.com/mcpkit/mcp/pkg/protocol"
	"github.com/mcpkit/mcp/pkg/protoerr"
	"github.com/mcpkit/mcp/pkg/registry"
	"github.com/mcpkit/mcp/pkg/schema"
	"github.com/mcpkit/mcp/pkg/uritemplate"
)

// lifecycleState is the dispatcher's Uninitialized -> Initialized
// state machine. Every method other than the pre-init whitelist is
// rejected until the client completes the initialize handshake.
type lifecycleState int32

const (
	stateUninitialized lifecycleState = iota
	stateInitialized
)

// preInitWhitelist is the set of methods a client may call before
// completing initialize/initialized: the handshake methods themselves,
// plus the four list-discovery methods so a client can introspect the
// capability surface before committing to initialize.
var preInitWhitelist = map[string]bool{
	"initialize":               true,
	"initialized":              true,
	"ping":                     true,
	"tools/list":               true,
	"resources/list":           true,
	"resources/templates/list": true,
	"prompts/list":             true,
}

// publicMethods never require authentication even once initialized.
var publicMethods = map[string]bool{
	"initialize":              true,
	"initialized":             true,
	"notifications/cancelled": true,
	"notifications/progress":  true,
	"ping":                    true,
}

// ServerInfo describes this server to the client during initialize.
type ServerInfo struct {
	Name    string
	Version string
}

// Dispatcher wires a Registry, an optional auth.Provider, and a
// middleware.Chain into the single entry point a Transport calls for
// every inbound message.
type Dispatcher struct {
	registry     *registry.Registry
	provider     auth.Provider
	chain        *middleware.Chain
	info         ServerInfo
	state        atomic.Int32
	requestSeq   atomic.Uint64
	authRequired bool
}

// New builds a Dispatcher. provider may be nil, meaning no
// authentication is configured at all: every component (predicate or
// not) is then visible and callable.
func New(reg *registry.Registry, provider auth.Provider, chain *middleware.Chain, info ServerInfo) *Dispatcher {
	if chain == nil {
		chain = middleware.NewChain()
	}
	d := &Dispatcher{registry: reg, provider: provider, chain: chain, info: info}
	d.state.Store(int32(stateUninitialized))
	return d
}

// RequireAuth marks authentication as mandatory: a provider result of
// Unauthenticated (no credentials presented, as opposed to Failed)
// becomes an Unauthorized error instead of proceeding with no user
// attached. With this unset (the default), an Unauthenticated result
// lets predicate-free components through anonymously.
func (d *Dispatcher) RequireAuth(required bool) *Dispatcher {
	d.authRequired = required
	return d
}

// Handle processes one raw JSON-RPC message and returns the bytes to
// write back, or nil for a notification (no response is ever sent).
// authReq carries whatever credentials the transport could extract;
// stdio transports pass an empty auth.NewAuthRequest().
func (d *Dispatcher) Handle(raw []byte, authReq *auth.AuthRequest) []byte {
	msg, err := protocol.Parse(raw)
	if err != nil {
		return d.errorEnvelope(nil, err)
	}

	if msg.IsNotification() {
		d.handleNotification(msg)
		return nil
	}

	result, callErr := d.dispatch(msg, authReq)
	if callErr != nil {
		return d.errorEnvelope(msg.ID, callErr)
	}
	out, err := protocol.EncodeResult(msg.ID, result)
	if err != nil {
		return d.errorEnvelope(msg.ID, protoerr.InternalError("marshal result: %v", err))
	}
	return out
}

func (d *Dispatcher) errorEnvelope(id any, err error) []byte {
	pe, ok := protoerr.As(err)
	if !ok {
		pe = protoerr.InternalError("%v", err)
	}
	out, encErr := protocol.EncodeError(id, pe.Code, pe.Message, pe.Data)
	if encErr != nil {
		logger.Error("dispatcher: failed to encode error response:", encErr)
		return nil
	}
	return out
}

func (d *Dispatcher) handleNotification(msg *protocol.RPCMessage) {
	switch msg.Method {
	case protocol.NotificationInitialized:
		logger.Info("dispatcher: client acknowledged initialized")
	case protocol.NotificationCancelled:
		logger.Info("dispatcher: client cancelled a request:", string(msg.Params))
	case protocol.NotificationProgress:
		logger.Info("dispatcher: progress notification:", string(msg.Params))
	default:
		logger.Warn("dispatcher: unhandled notification:", msg.Method)
	}
}

// dispatch runs the full pipeline for a request-with-id message:
// auth, lifecycle gate, middleware chain, terminal handler, state
// transition.
func (d *Dispatcher) dispatch(msg *protocol.RPCMessage, authReq *auth.AuthRequest) (any, error) {
	method := msg.Method

	var user *auth.AuthenticatedUser
	var workspace string
	noAuthConfigured := d.provider == nil

	if !publicMethods[method] && d.provider != nil {
		result := d.provider.Authenticate(authReq)
		switch result.Kind {
		case auth.ResultSuccess:
			user, workspace = result.User, result.Workspace
		case auth.ResultFailed:
			return nil, protoerr.Unauthorized("authentication failed: %s", result.Reason)
		case auth.ResultUnauthenticated:
			if d.authRequired {
				return nil, protoerr.Unauthorized("authentication required")
			}
		}
	}

	if lifecycleState(d.state.Load()) == stateUninitialized && !preInitWhitelist[method] {
		return nil, protoerr.InvalidRequest("Server not initialized")
	}

	mctx := middleware.NewContext(msg)
	mctx.User, mctx.Workspace = user, workspace
	mctx.Set(middleware.AuthRequestAttribute, authReq)

	return d.chain.Invoke(mctx, msg.Params, func() (any, error) {
		return d.terminal(method, msg.Params, mctx, user, workspace, noAuthConfigured)
	})
}

func (d *Dispatcher) terminal(method string, params json.RawMessage, mctx *middleware.MiddlewareContext, user *auth.AuthenticatedUser, workspace string, noAuthConfigured bool) (any, error) {
	switch method {
	case protocol.MethodInitialize:
		return d.handleInitialize(params)
	case protocol.MethodInitialized:
		return map[string]any{}, nil
	case protocol.MethodPing:
		return map[string]any{"pong": true}, nil
	case protocol.MethodToolsList:
		return d.handleToolsList(user, workspace, noAuthConfigured), nil
	case protocol.MethodToolsCall:
		return d.handleToolsCall(params, user, workspace, noAuthConfigured)
	case protocol.MethodResourcesList:
		return d.handleResourcesList(user, workspace, noAuthConfigured), nil
	case protocol.MethodResourceTemplatesList:
		return d.handleResourceTemplatesList(user, workspace, noAuthConfigured), nil
	case protocol.MethodResourcesRead:
		return d.handleResourcesRead(params, user, workspace, noAuthConfigured)
	case protocol.MethodPromptsList:
		return d.handlePromptsList(user, workspace, noAuthConfigured), nil
	case protocol.MethodPromptsGet:
		return d.handlePromptsGet(params, user, workspace, noAuthConfigured)
	default:
		return nil, protoerr.MethodNotFound("unknown method %q", method)
	}
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

type serverInfoWire struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfoWire `json:"serverInfo"`
}

func (d *Dispatcher) handleInitialize(params json.RawMessage) (any, error) {
	var p initializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err == nil && p.ProtocolVersion != "" {
			logger.Debug("dispatcher: client requested protocol version", p.ProtocolVersion)
		}
	}

	tools, resources, prompts := d.registry.Counts()
	capabilities := map[string]any{}
	if tools > 0 {
		capabilities["tools"] = map[string]any{}
	}
	if resources > 0 {
		capabilities["resources"] = map[string]any{}
	}
	if prompts > 0 {
		capabilities["prompts"] = map[string]any{}
	}

	d.state.Store(int32(stateInitialized))
	logger.Info("dispatcher: initialized, advertising", tools, "tools", resources, "resources", prompts, "prompts")

	return initializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    capabilities,
		ServerInfo:      serverInfoWire{Name: d.info.Name, Version: d.info.Version},
	}, nil
}

func (d *Dispatcher) handleToolsList(user *auth.AuthenticatedUser, workspace string, noAuth bool) any {
	return map[string]any{"tools": d.registry.GetTools(user, workspace, noAuth)}
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (d *Dispatcher) handleToolsCall(raw json.RawMessage, user *auth.AuthenticatedUser, workspace string, noAuth bool) (any, error) {
	var p toolCallParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, protoerr.InvalidParams("invalid tools/call params: %v", err)
	}
	if p.Name == "" {
		return nil, protoerr.InvalidParams("tool name is required")
	}
	tool, handler, predicate, ok := d.registry.LookupTool(p.Name)
	if !ok {
		return nil, protoerr.NotFound("unknown tool %q", p.Name)
	}

	authCtx := auth.AuthorizationContext{
		User: user, ComponentType: auth.ComponentTool, ComponentName: p.Name,
		Action: auth.ActionCall, Arguments: p.Arguments, Workspace: workspace,
	}
	if !noAuth && predicate != nil {
		if user == nil || !predicate(authCtx) {
			return nil, protoerr.Forbidden("not authorized to call tool %q", p.Name)
		}
	}
	if !noAuth && user.HasAnyScopes() {
		if !user.HasScope("tools:" + p.Name) {
			return nil, protoerr.Forbidden("missing scope for tool %q", p.Name)
		}
	}

	args, err := bindArguments(tool, p.Arguments)
	if err != nil {
		return nil, err
	}

	ctx := &protocol.CallContext{
		RequestID: strconv.FormatUint(d.requestSeq.Add(1), 10),
		ClientID:  idOrEmpty(user),
		Logger:    logger.Default(),
		State:     map[string]any{},
	}

	result, callErr := handler(args, ctx)
	return protocol.IntoToolResult(result, callErr), nil
}

func (d *Dispatcher) handleResourcesList(user *auth.AuthenticatedUser, workspace string, noAuth bool) any {
	return map[string]any{"resources": d.registry.GetResources(user, workspace, noAuth)}
}

func (d *Dispatcher) handleResourceTemplatesList(user *auth.AuthenticatedUser, workspace string, noAuth bool) any {
	return map[string]any{"resourceTemplates": d.registry.GetResourceTemplates(user, workspace, noAuth)}
}

type resourcesReadParams struct {
	URI string `json:"uri"`
}

func (d *Dispatcher) handleResourcesRead(raw json.RawMessage, user *auth.AuthenticatedUser, workspace string, noAuth bool) (any, error) {
	var p resourcesReadParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, protoerr.InvalidParams("invalid resources/read params: %v", err)
	}
	if p.URI == "" {
		return nil, protoerr.InvalidParams("resource uri is required")
	}

	if resource, handler, predicate, ok := d.registry.LookupResource(p.URI); ok {
		if err := d.gateResource(user, workspace, noAuth, predicate, resource.URI, nil); err != nil {
			return nil, err
		}
		v, err := handler()
		if err != nil {
			return nil, protoerr.InternalError("resource read failed: %v", err)
		}
		content, err := protocol.IntoResourceContent(resource.URI, resource.MimeType, v)
		if err != nil {
			return nil, protoerr.InternalError("resource content encode failed: %v", err)
		}
		return protocol.ResourceContentEnvelope{Contents: []protocol.ResourceContent{content}}, nil
	}

	tmpl, handler, predicate, params, ok := d.registry.MatchResourceTemplate(p.URI, uritemplate.Match)
	if !ok {
		return nil, protoerr.NotFound("unknown resource %q", p.URI)
	}
	if err := d.gateResource(user, workspace, noAuth, predicate, tmpl.URITemplate, params); err != nil {
		return nil, err
	}
	v, err := handler(params)
	if err != nil {
		return nil, protoerr.InternalError("resource template read failed: %v", err)
	}
	content, err := protocol.IntoResourceContent(p.URI, tmpl.MimeType, v)
	if err != nil {
		return nil, protoerr.InternalError("resource content encode failed: %v", err)
	}
	return protocol.ResourceContentEnvelope{Contents: []protocol.ResourceContent{content}}, nil
}

func (d *Dispatcher) gateResource(user *auth.AuthenticatedUser, workspace string, noAuth bool, predicate auth.Predicate, name string, params map[string]string) error {
	if noAuth || predicate == nil {
		return nil
	}
	args := make(map[string]any, len(params))
	for k, v := range params {
		args[k] = v
	}
	authCtx := auth.AuthorizationContext{
		User: user, ComponentType: auth.ComponentResource, ComponentName: name,
		Action: auth.ActionRead, Arguments: args, Workspace: workspace,
	}
	if user == nil || !predicate(authCtx) {
		return protoerr.Forbidden("not authorized to read resource %q", name)
	}
	return nil
}

func (d *Dispatcher) handlePromptsList(user *auth.AuthenticatedUser, workspace string, noAuth bool) any {
	return map[string]any{"prompts": d.registry.GetPrompts(user, workspace, noAuth)}
}

type promptsGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

func (d *Dispatcher) handlePromptsGet(raw json.RawMessage, user *auth.AuthenticatedUser, workspace string, noAuth bool) (any, error) {
	var p promptsGetParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, protoerr.InvalidParams("invalid prompts/get params: %v", err)
	}
	if p.Name == "" {
		return nil, protoerr.InvalidParams("prompt name is required")
	}
	prompt, handler, predicate, ok := d.registry.LookupPrompt(p.Name)
	if !ok {
		return nil, protoerr.NotFound("unknown prompt %q", p.Name)
	}
	if !noAuth && predicate != nil {
		args := make(map[string]any, len(p.Arguments))
		for k, v := range p.Arguments {
			args[k] = v
		}
		authCtx := auth.AuthorizationContext{
			User: user, ComponentType: auth.ComponentPrompt, ComponentName: p.Name,
			Action: auth.ActionGet, Arguments: args, Workspace: workspace,
		}
		if user == nil || !predicate(authCtx) {
			return nil, protoerr.Forbidden("not authorized to get prompt %q", p.Name)
		}
	}
	for _, arg := range prompt.Arguments {
		if arg.Required {
			if _, ok := p.Arguments[arg.Name]; !ok {
				return nil, protoerr.InvalidParams("missing required argument %q for prompt %q", arg.Name, p.Name)
			}
		}
	}
	v, err := handler(p.Arguments)
	if err != nil {
		return nil, protoerr.InternalError("prompt generation failed: %v", err)
	}
	switch g := v.(type) {
	case protocol.PromptGeneration:
		desc := g.Description
		if desc == "" {
			desc = prompt.Description
		}
		return map[string]any{"description": desc, "messages": g.Messages}, nil
	case []protocol.Message:
		return map[string]any{"description": prompt.Description, "messages": g}, nil
	case protocol.Message:
		return map[string]any{"description": prompt.Description, "messages": []protocol.Message{g}}, nil
	default:
		return nil, protoerr.InternalError("prompt %q returned an unsupported shape", p.Name)
	}
}

// bindArguments validates and binds raw client arguments against a
// tool's declared parameter list, in declaration order: a matching key
// is taken (coercing string-sourced values to a declared
// numeric/boolean type, which is how URI-template variables arrive),
// an omitted parameter falls back to its default, a nullable one to
// null, a required one fails the call, and an optional one (no default,
// not nullable) is left out of the bound arguments. Context params
// never bind here — the dispatcher injects the CallContext separately.
// Tools registered without a Param list are checked against the wire
// schema's required names alone.
func bindArguments(tool protocol.Tool, raw map[string]any) (map[string]any, error) {
	if raw == nil {
		raw = map[string]any{}
	}
	if len(tool.Params) == 0 {
		for _, req := range tool.InputSchema.Required {
			if _, ok := raw[req]; !ok {
				return nil, protoerr.InvalidParams("Missing required argument %q", req)
			}
		}
		return raw, nil
	}

	out := make(map[string]any, len(tool.Params))
	for _, p := range tool.Params {
		if p.IsContext {
			continue
		}
		if v, ok := raw[p.Name]; ok {
			out[p.Name] = coerceArgument(p, v)
			continue
		}
		switch {
		case p.HasDefault:
			out[p.Name] = p.Default
		case p.Nullable:
			out[p.Name] = nil
		case p.Required:
			return nil, protoerr.InvalidParams("Missing required argument %q", p.Name)
		}
	}
	return out, nil
}

// coerceArgument converts a string-valued argument to the parameter's
// declared numeric or boolean type when possible, leaving everything
// else untouched.
func coerceArgument(p schema.Param, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch p.Type {
	case schema.TypeInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case schema.TypeNumber:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case schema.TypeBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return v
}

// idOrEmpty safely reads a possibly-nil user's id.
func idOrEmpty(u *auth.AuthenticatedUser) string {
	if u == nil {
		return ""
	}
	return u.ID
}
