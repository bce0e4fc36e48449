// Package viewer serves the browser-facing side of the map server:
// the embedded MapLibre viewer page, a JSON snapshot endpoint, and the
// /events live stream that pushes every committed map mutation to
// connected viewers.
package viewer

import (
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"

	"github.com/boettiger-lab/mcp-map-server/internal/mapstate"
	"github.com/boettiger-lab/mcp-map-server/internal/session"
	"github.com/boettiger-lab/mcp-map-server/pkg/logging"
)

// SessionCookie associates a browser with a map session across page
// loads when no explicit session query parameter is given.
const SessionCookie = "mcp_map_session"

//go:embed client.html
var clientHTML []byte

// Server handles the viewer HTTP routes against a session store.
type Server struct {
	sessions session.Store
}

// New creates a viewer server.
func New(sessions session.Store) *Server {
	return &Server{sessions: sessions}
}

// RegisterRoutes mounts the viewer endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/api/map-state", s.handleMapState)
}

// sessionKey resolves the session for a viewer request: explicit
// ?session= parameter, then the session cookie, then a freshly
// generated key. Generated keys are handed back via cookie so the
// same browser lands on the same session next time.
func (s *Server) sessionKey(w http.ResponseWriter, r *http.Request) string {
	if key := r.URL.Query().Get("session"); key != "" {
		return key
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:  SessionCookie,
		Value: key,
		Path:  "/",
	})
	return key
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(clientHTML)
}

func (s *Server) handleMapState(w http.ResponseWriter, r *http.Request) {
	key := s.sessionKey(w, r)
	snapshot := s.sessions.Get(key).Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		logging.Error("Viewer", err, "Failed to encode map state for session %q", key)
	}
}

// handleEvents is the live stream: one SSE connection per viewer. The
// first event is the current snapshot; every committed mutation after
// that arrives as its own event, in commit order, until the viewer
// disconnects. The stream never carries error frames; a failure simply
// ends it.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	key := s.sessionKey(w, r)
	sess := s.sessions.Get(key)

	sub := sess.Subscribe()
	defer sess.Unsubscribe(sub)

	conn, err := sse.Upgrade(w, r)
	if err != nil {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	logging.Debug("Viewer", "Viewer connected to session %q", key)
	defer logging.Debug("Viewer", "Viewer disconnected from session %q", key)

	if err := sendSnapshot(conn, sess.Snapshot()); err != nil {
		return
	}

	ctx := r.Context()
	for {
		snapshot, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if err := sendSnapshot(conn, snapshot); err != nil {
			return
		}
	}
}

func sendSnapshot(conn *sse.Session, snapshot *mapstate.Document) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	msg := &sse.Message{}
	msg.AppendData(string(payload))
	if err := conn.Send(msg); err != nil {
		return err
	}
	return conn.Flush()
}
