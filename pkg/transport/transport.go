// Package transport carries the three transport contracts described
// by the framework: a subprocess-pipe (stdio) transport, a
// request/response HTTP transport, and a streaming SSE transport. All
// three talk to a Handler, which is exactly the shape
// *dispatcher.Dispatcher.Handle already has — transport packages never
// import dispatcher directly, to keep the dependency pointing the
// other way (dispatcher has no notion of transports).
package transport

import "github.com/mcpkit/mcp/pkg/auth"

// Handler processes one raw JSON-RPC frame and returns the bytes to
// write back, or nil for a notification. Implemented by
// *dispatcher.Dispatcher.
type Handler func(raw []byte, authReq *auth.AuthRequest) []byte

// Transport starts serving a Handler until the underlying channel
// closes or ctx-like cancellation (transport specific) stops it.
type Transport interface {
	Serve(handler Handler) error
}
