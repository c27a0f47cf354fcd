// Package bridge serves the sync engine to thin clients over a
// WebSocket. Each connection gets its own filter state, engine and
// fetch coordinator; the client only renders frames and reports
// location changes and field edits.
package bridge

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/movapages/angular-url-form-sync/pkg/fetch"
	"github.com/movapages/angular-url-form-sync/pkg/filter"
	"github.com/movapages/angular-url-form-sync/pkg/urlsync"
)

// Server accepts sync sessions over WebSocket.
type Server struct {
	registry *filter.Registry
	fetcher  fetch.Fetcher[any]
	logger   *slog.Logger
	upgrader websocket.Upgrader

	engineOpts []urlsync.Option
	fetchOpts  []fetch.Option

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger. Default slog.Default().
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithEngineOptions passes options to every session's engine.
func WithEngineOptions(opts ...urlsync.Option) ServerOption {
	return func(s *Server) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithFetchOptions passes options to every session's coordinator.
func WithFetchOptions(opts ...fetch.Option) ServerOption {
	return func(s *Server) { s.fetchOpts = append(s.fetchOpts, opts...) }
}

// WithCheckOrigin sets the WebSocket origin check. Default allows any
// origin, which suits a same-binary demo; set a real check in
// production.
func WithCheckOrigin(fn func(r *http.Request) bool) ServerOption {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// NewServer creates a bridge server for the given field registry and
// fetcher.
func NewServer(registry *filter.Registry, fetcher fetch.Fetcher[any], opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		fetcher:  fetcher,
		logger:   slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mount registers the bridge routes on a chi router.
func (s *Server) Mount(r chi.Router) {
	r.Get("/sync", s.handleWS)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess, err := s.newSession(conn)
	if err != nil {
		s.logger.Error("session setup failed", "error", err)
		conn.Close()
		return
	}

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	n := len(s.sessions)
	s.mu.Unlock()
	s.logger.Info("session opened", "remote", conn.RemoteAddr().String(), "active", n)

	go sess.run()
}

func (s *Server) dropSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	n := len(s.sessions)
	s.mu.Unlock()
	s.logger.Info("session closed", "active", n)
}

// SessionCount reports the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close tears down every live session.
func (s *Server) Close() {
	s.mu.Lock()
	live := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()
	for _, sess := range live {
		sess.close()
	}
}
