// Package server is the web front end: one page with three mutually
// exclusive panels (conversation form, clarification form, results), the
// form actions behind them, and the operational endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guidepostlabs/guidepost/internal/conversation"
	"github.com/guidepostlabs/guidepost/internal/logging"
	"github.com/guidepostlabs/guidepost/internal/session"
)

// sessionCookie names the browser cookie carrying the session ID.
const sessionCookie = "guidepost_session"

// Server serves the advice page and its form actions.
type Server struct {
	controller *conversation.Controller
	sessions   *session.Manager
	logger     *slog.Logger
	metrics    http.Handler
	view       *view
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request-handling logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler sets the handler served at /metrics. Defaults to the
// global Prometheus registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New creates the web front end around a controller and a session manager.
func New(controller *conversation.Controller, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		controller: controller,
		sessions:   sessions,
		logger:     logging.NewNop(),
		metrics:    promhttp.Handler(),
		view:       newView(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleIndex)
	r.Post("/advise", s.handleAdvise)
	r.Post("/clarify", s.handleClarify)
	r.Post("/reset", s.handleReset)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	return r
}

// sessionID returns the browser's session ID, or a fresh one when the
// cookie is absent or carries something that never came from us. Cookie
// values become store keys, so anything that is not a UUID is discarded.
func (s *Server) sessionID(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	return uuid.NewString()
}

// withSession runs one form action against the browser's session while
// holding its lock, saves the result, and renders the produced page. The
// lock spans the whole read-modify-write, so two tabs posting the same
// session cannot lose each other's updates.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, action func(context.Context, *conversation.Session) conversation.Notice) {
	id := s.sessionID(r)

	var sess *conversation.Session
	var notice conversation.Notice

	err := s.sessions.WithLock(r.Context(), id, func(ctx context.Context) error {
		var err error
		sess, err = s.sessions.Store().Load(ctx, id)
		switch {
		case errors.Is(err, conversation.ErrSessionNotFound):
			sess = conversation.NewSession()
		case err != nil:
			return err
		}

		notice = action(ctx, sess)
		return s.sessions.Store().Save(ctx, id, sess)
	})
	if err != nil {
		s.logger.Error("failed to update session", "error", err)
		http.Error(w, "failed to update session", http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, id)
	s.render(w, sess, notice)
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
