package transport

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcpkit/mcp/internal/logger"
	"github.com/mcpkit/mcp/pkg/auth"
	"github.com/mcpkit/mcp/pkg/protocol"
	"github.com/mcpkit/mcp/pkg/protoerr"
)

// HTTPTransport serves a single request/response style endpoint: one
// POST per JSON-RPC call, credentials taken from the request's
// headers and query string.
type HTTPTransport struct {
	Addr string
	Path string
}

// NewHTTPTransport builds a request/response transport listening on
// addr. An empty path defaults to "/mcp".
func NewHTTPTransport(addr, path string) *HTTPTransport {
	if path == "" {
		path = "/mcp"
	}
	return &HTTPTransport{Addr: addr, Path: path}
}

// Serve blocks, running an HTTP server until it errors.
func (t *HTTPTransport) Serve(handler Handler) error {
	router := mux.NewRouter()

	mcpHandler := func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			writeCORSHeaders(w)
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodPost:
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		writeCORSHeaders(w)
		body, err := io.ReadAll(r.Body)
		if err != nil || len(body) == 0 {
			writeErrorEnvelope(w, http.StatusBadRequest, protoerr.CodeInvalidRequest, "empty request body")
			return
		}

		resp := handler(body, authRequestFromHTTP(r, body))
		w.Header().Set("Content-Type", "application/json")
		if resp == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(resp)
	}

	router.HandleFunc(t.Path, mcpHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc(t.Path+"/", mcpHandler).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	logger.Info("http transport: listening on", t.Addr, "path", t.Path)
	return http.ListenAndServe(t.Addr, router)
}

// writeErrorEnvelope writes a transport-level failure (one that never
// reached the dispatcher, e.g. an empty body) as a JSON-RPC error
// envelope with id null, at the given HTTP status. Envelope errors the
// dispatcher itself produces (parse failures, protocol errors) always
// return 200 per the MCP convention; this path is only for failures
// before the dispatcher gets a chance to run.
func writeErrorEnvelope(w http.ResponseWriter, status, code int, message string) {
	body, err := protocol.EncodeError(nil, code, message, nil)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err == nil {
		w.Write(body)
	}
}

func writeCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Token")
}

// authRequestFromHTTP builds an auth.AuthRequest from a standard HTTP
// request's headers and query string.
func authRequestFromHTTP(r *http.Request, body []byte) *auth.AuthRequest {
	req := auth.NewAuthRequest()
	for name := range r.Header {
		req.Headers[normalizeHeaderName(name)] = r.Header.Get(name)
	}
	for name := range r.URL.Query() {
		req.Query[name] = r.URL.Query().Get(name)
	}
	req.Body = body
	return req
}

func normalizeHeaderName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
