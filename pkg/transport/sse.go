package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mcpkit/mcp/internal/logger"
	"github.com/mcpkit/mcp/pkg/auth"
	"github.com/mcpkit/mcp/pkg/protocol"
	"github.com/mcpkit/mcp/pkg/protoerr"
)

// sseSession is one open GET /sse stream: the flusher used to push
// events, and the credentials captured when the stream was opened (so
// every POST /message on this session reuses them without asking the
// client to re-authenticate per message).
type sseSession struct {
	flusher http.Flusher
	writer  http.ResponseWriter
	authReq *auth.AuthRequest
	done    chan struct{}
}

// SSETransport serves the streaming variant: GET /sse opens a
// long-lived event stream and hands back a session id via an
// "endpoint" event; the client then POSTs every JSON-RPC call to
// /message?sessionId=<id> and gets the dispatcher's response back
// directly as that POST's body — the SSE stream itself only ever
// carries the endpoint announcement and periodic pings.
type SSETransport struct {
	Addr      string
	SSEPath   string
	MsgPath   string
	PingEvery time.Duration

	mu       sync.Mutex
	sessions map[string]*sseSession
}

// NewSSETransport builds an SSE transport listening on addr.
func NewSSETransport(addr string) *SSETransport {
	return &SSETransport{
		Addr:      addr,
		SSEPath:   "/sse",
		MsgPath:   "/message",
		PingEvery: 15 * time.Second,
		sessions:  map[string]*sseSession{},
	}
}

// Serve blocks, running the SSE HTTP server until it errors.
func (t *SSETransport) Serve(handler Handler) error {
	router := mux.NewRouter()

	router.HandleFunc(t.SSEPath, t.handleSSE).Methods(http.MethodGet)
	router.HandleFunc(t.MsgPath, func(w http.ResponseWriter, r *http.Request) {
		t.handleMessage(w, r, handler)
	}).Methods(http.MethodPost)

	logger.Info("sse transport: listening on", t.Addr)
	return http.ListenAndServe(t.Addr, router)
}

func (t *SSETransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sessionID := uuid.NewString()
	session := &sseSession{
		flusher: flusher,
		writer:  w,
		authReq: authRequestFromHTTP(r, nil),
		done:    make(chan struct{}),
	}

	t.mu.Lock()
	t.sessions[sessionID] = session
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.sessions, sessionID)
		t.mu.Unlock()
	}()

	endpointURI := fmt.Sprintf("http://%s%s?sessionId=%s", r.Host, t.MsgPath, sessionID)
	writeSSEEvent(w, "endpoint", map[string]string{"uri": endpointURI})
	flusher.Flush()

	ticker := time.NewTicker(t.PingEvery)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.done:
			return
		case <-ticker.C:
			writeSSEEvent(w, "ping", map[string]int64{"time": time.Now().Unix()})
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w io.Writer, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func (t *SSETransport) handleMessage(w http.ResponseWriter, r *http.Request, handler Handler) {
	sessionID := r.URL.Query().Get("sessionId")
	t.mu.Lock()
	session, ok := t.sessions[sessionID]
	t.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		resp, encErr := protocol.EncodeError(nil, protoerr.CodeInvalidRequest, "empty request body", nil)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		if encErr == nil {
			w.Write(resp)
		}
		return
	}

	resp := handler(body, session.authReq)
	w.Header().Set("Content-Type", "application/json")
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(resp)
}
