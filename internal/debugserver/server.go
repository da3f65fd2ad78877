// Package debugserver implements the Agent's optional loopback-bound
// operator console: an unauthenticated /health, and a bearer-token-gated
// /status and /ws live event stream.
package debugserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Status is the point-in-time snapshot served on /status.
type Status struct {
	Version       string    `json:"version"`
	ActiveMTPs    []string  `json:"active_mtps"`
	LastBootTime  time.Time `json:"last_boot_time"`
	LastHeartbeat time.Time `json:"last_heartbeat,omitempty"`

	Healthy           bool              `json:"healthy"`
	MessagesProcessed int64             `json:"messages_processed"`
	ErrorCount        int64             `json:"error_count"`
	LastError         string            `json:"last_error,omitempty"`
	Components        map[string]string `json:"components,omitempty"`
}

// StatusProvider supplies the live Status snapshot; cmd/usp-agent wires
// this to the supervisor/engine.
type StatusProvider interface {
	Status() Status
}

// Config configures Server. A zero Port disables the console entirely
// (the caller should not construct a Server at all in that case; Port is
// here only for Addr()'s convenience).
type Config struct {
	Port   int
	Auth   *AuthService
	Status StatusProvider
	Hub    *Hub
	Logger zerolog.Logger
}

// Server is the debug console's HTTP/WS listener, always bound to
// 127.0.0.1 — this is operator tooling for the box itself, never exposed
// to the network.
type Server struct {
	addr     string
	auth     *AuthService
	status   StatusProvider
	hub      *Hub
	logger   zerolog.Logger
	server   *http.Server
	upgrader websocket.Upgrader
}

func New(cfg Config) *Server {
	return &Server{
		addr:   fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		auth:   cfg.Auth,
		status: cfg.Status,
		hub:    cfg.Hub,
		logger: cfg.Logger.With().Str("component", "debugserver").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start serves until ctx is cancelled. It returns once the listener has
// shut down.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := s.auth.Login(req.Password)
	if err != nil {
		s.sendError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.sendError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := s.auth.ValidateToken(token); err != nil {
			s.sendError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" || s.auth.ValidateToken(token) != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to upgrade debug websocket")
		return
	}
	defer conn.Close()

	ch := s.hub.Register()
	defer s.hub.Unregister(ch)

	for data := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
