// Package auth is the framework's auth layer: a transport-agnostic
// credential facade, a pluggable AuthProvider contract, and the
// scope/level algebra the dispatcher's scope gate and registry
// predicates consult.
//
// The concrete providers that validate a token against a real store
// (a database, a JWT signing key) are deliberately kept out of this
// package. Two sample implementations live under examples/auth/ so the
// dependency graph and tests still exercise real I/O paths.
package auth

import "strings"

// AuthenticatedUser is the identity a successful AuthProvider call
// produces.
type AuthenticatedUser struct {
	ID        string
	Name      string
	Email     string
	Level     int
	Scopes    map[string]struct{}
	Workspace string
	Extra     map[string]any
}

// NewUser builds an AuthenticatedUser with the given scopes collapsed
// into a set.
func NewUser(id string, level int, scopes ...string) *AuthenticatedUser {
	u := &AuthenticatedUser{ID: id, Level: level, Scopes: map[string]struct{}{}}
	for _, s := range scopes {
		u.Scopes[s] = struct{}{}
	}
	return u
}

// HasScope implements the scope algebra: the user holds `required`
// when their scopes contain "*:*", contain `required` verbatim, or —
// for a "cat:action" required scope — contain "cat:*".
func (u *AuthenticatedUser) HasScope(required string) bool {
	if u == nil {
		return false
	}
	if _, ok := u.Scopes["*:*"]; ok {
		return true
	}
	if _, ok := u.Scopes[required]; ok {
		return true
	}
	if cat, _, ok := strings.Cut(required, ":"); ok {
		if _, ok := u.Scopes[cat+":*"]; ok {
			return true
		}
	}
	return false
}

// HasLevel reports whether the user's privilege level is at least as
// strong as required — lower numbers are more privileged, so this is
// user.Level <= required.
func (u *AuthenticatedUser) HasLevel(required int) bool {
	if u == nil {
		return false
	}
	return u.Level <= required
}

// HasAnyScopes reports whether the user was issued any scopes at all.
// The dispatcher's tools/call scope gate is skipped entirely when this
// is false, so deployments that rely solely on per-component
// predicates never need to issue scopes.
func (u *AuthenticatedUser) HasAnyScopes() bool {
	return u != nil && len(u.Scopes) > 0
}

// AuthRequest is a normalized, transport-agnostic facade over
// wherever a transport found credentials: headers, query string, raw
// body, or an opaque transport-specific extra value (e.g. the stored
// credentials of an SSE session).
type AuthRequest struct {
	Headers map[string]string
	Query   map[string]string
	Body    []byte
	Extra   map[string]any
}

// NewAuthRequest builds an empty AuthRequest, the value delivered to
// the dispatcher whenever a transport has no real credential source
// (e.g. every message on a subprocess-pipe transport).
func NewAuthRequest() *AuthRequest {
	return &AuthRequest{Headers: map[string]string{}, Query: map[string]string{}}
}

// Header looks up a normalized (lowercased) header name.
func (r *AuthRequest) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers[strings.ToLower(name)]
}

// GetBearerToken extracts the token from an "authorization" header
// whose value begins (case-insensitively) with "bearer ".
func (r *AuthRequest) GetBearerToken() string {
	v := r.Header("authorization")
	if v == "" {
		return ""
	}
	const prefix = "bearer "
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(v[len(prefix):])
}

// GetAPIToken returns the value of the "x-api-token" header.
func (r *AuthRequest) GetAPIToken() string {
	return r.Header("x-api-token")
}

// GetQueryToken returns the named query parameter, defaulting to "key".
func (r *AuthRequest) GetQueryToken(param ...string) string {
	name := "key"
	if len(param) > 0 && param[0] != "" {
		name = param[0]
	}
	if r == nil || r.Query == nil {
		return ""
	}
	return r.Query[name]
}

// GetToken returns the first non-empty of (apiToken, bearerToken,
// queryToken), in that precedence order.
func (r *AuthRequest) GetToken() string {
	if v := r.GetAPIToken(); v != "" {
		return v
	}
	if v := r.GetBearerToken(); v != "" {
		return v
	}
	return r.GetQueryToken()
}

// ResultKind tags the variant an AuthResult holds.
type ResultKind int

const (
	ResultUnauthenticated ResultKind = iota
	ResultSuccess
	ResultFailed
)

// AuthResult is the tagged {Success|Failed|Unauthenticated} variant an
// AuthProvider call produces.
type AuthResult struct {
	Kind      ResultKind
	User      *AuthenticatedUser
	Workspace string
	Reason    string
}

// Success builds a successful AuthResult.
func Success(user *AuthenticatedUser, workspace string) AuthResult {
	return AuthResult{Kind: ResultSuccess, User: user, Workspace: workspace}
}

// Failed builds a denied AuthResult carrying a human-readable reason.
func Failed(reason string) AuthResult {
	return AuthResult{Kind: ResultFailed, Reason: reason}
}

// Unauthenticated builds the "no credentials presented" AuthResult.
func Unauthenticated() AuthResult {
	return AuthResult{Kind: ResultUnauthenticated}
}

// Component is the category of a registered component an
// AuthorizationContext refers to.
type Component string

const (
	ComponentTool     Component = "tool"
	ComponentResource Component = "resource"
	ComponentPrompt   Component = "prompt"
)

// Action is the operation being attempted against a component.
type Action string

const (
	ActionCall Action = "call"
	ActionRead Action = "read"
	ActionGet  Action = "get"
)

// AuthorizationContext is passed to a component's registered
// predicate to decide visibility/invocation.
type AuthorizationContext struct {
	User          *AuthenticatedUser
	ComponentType Component
	ComponentName string
	Action        Action
	Arguments     map[string]any
	Workspace     string
}

// Predicate is a pure boolean function gating visibility and
// invocation of a single registered component.
type Predicate func(AuthorizationContext) bool

// Provider authenticates an AuthRequest into an AuthResult. Providers
// may perform I/O (a database lookup, a JWT signature check).
type Provider interface {
	Authenticate(req *AuthRequest) AuthResult
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(req *AuthRequest) AuthResult

func (f ProviderFunc) Authenticate(req *AuthRequest) AuthResult {
	return f(req)
}
