package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CookieName is the cookie issued by POST /login.
const CookieName = "sid"

// SessionHeader is the request header carrying the session cookie value.
const SessionHeader = "session"

// Server serves descriptions from a library over HTTP.
type Server struct {
	Library        ports.DescriptionLoader
	Tokens         ports.SessionStore
	RequireSession bool

	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithRequireSession makes /ui/* answer 401 without a session and 403 for unknown ones.
func WithRequireSession(required bool) Option {
	return func(s *Server) {
		s.RequireSession = required
	}
}

// WithTokenStore keeps issued tokens in store. Records are keyed by token and
// carry the user name in their Token field.
func WithTokenStore(store ports.SessionStore) Option {
	return func(s *Server) {
		s.Tokens = store
	}
}

// WithGatherer sets the registry exposed at /metrics (default: the global one).
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for a description library.
func NewHandler(lib ports.DescriptionLoader, opts ...Option) http.Handler {
	s := &Server{
		Library:  lib,
		Tokens:   memory.NewStore(),
		logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Post("/login", s.Login)
	r.Get("/events", s.SubscribeEvents)
	r.Group(func(r chi.Router) {
		if s.RequireSession {
			r.Use(s.requireSession)
		}
		r.Get("/ui", s.ListDescriptions)
		r.Get("/ui/*", s.GetDescription)
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// envelope is the {"status":"OK","data":...} shape the network client unwraps.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// GetDescription handles GET /ui/{path}. The extension is optional.
func (s *Server) GetDescription(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "*")
	id := strings.TrimSuffix(raw, path.Ext(raw))
	if id == "" {
		http.Error(w, "missing description path", http.StatusBadRequest)
		return
	}

	desc, err := s.Library.Load(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrDescriptionNotFound):
		s.writeJSON(w, http.StatusNotFound, envelope{Status: "ERROR", Message: err.Error()})
		return
	case err != nil:
		s.logger.Error("load description failed", "id", id, "err", err)
		s.writeJSON(w, http.StatusInternalServerError, envelope{Status: "ERROR", Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: "OK", Data: desc})
}

// ListDescriptions handles GET /ui.
func (s *Server) ListDescriptions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Library.List(r.Context())
	if err != nil {
		s.logger.Error("list descriptions failed", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, envelope{Status: "ERROR", Message: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Status: "OK", Data: ids})
}

// Login handles POST /login and issues a session cookie.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	user := r.PostForm.Get("user")
	if user == "" {
		s.writeJSON(w, http.StatusUnauthorized, envelope{Status: "ERROR", Message: "missing user"})
		return
	}

	token, err := newToken()
	if err != nil {
		s.logger.Error("token generation failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := s.Tokens.Put(r.Context(), domain.SessionRecord{Host: token, Token: user, UpdatedAt: time.Now()}); err != nil {
		s.logger.Error("token store failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("session issued", "user", user)
	w.Header().Set("Set-Cookie", fmt.Sprintf("%s=%s; Path=/; HttpOnly", CookieName, token))
	s.writeJSON(w, http.StatusOK, envelope{Status: "OK", Data: map[string]string{"user": user}})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value := r.Header.Get(SessionHeader)
		if value == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(value, CookieName+"=")
		if _, err := s.Tokens.Get(r.Context(), token); err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) {
				s.logger.Error("token lookup failed", "err", err)
			}
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SubscribeEvents handles GET /events: a server-sent stream of changed description ids.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	watchable, ok := s.Library.(ports.Watchable)
	if !ok {
		http.Error(w, "library does not support watching", http.StatusNotImplemented)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	events, err := watchable.Watch(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf("Watch error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", id)
			flusher.Flush()
		}
	}
}
