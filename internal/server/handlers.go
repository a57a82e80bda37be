package server

import (
	"context"
	"net/http"

	"github.com/guidepostlabs/guidepost/internal/conversation"
)

// handleIndex renders the panel for the session's current step, starting a
// session on first visit.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(r)

	sess, err := s.sessions.LoadOrStart(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load session", "error", err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, id)
	s.render(w, sess, conversation.Notice{})
}

// handleAdvise is the submit action of the conversation form.
func (s *Server) handleAdvise(w http.ResponseWriter, r *http.Request) {
	input := r.FormValue("conversation")
	s.withSession(w, r, func(ctx context.Context, sess *conversation.Session) conversation.Notice {
		return s.controller.Submit(ctx, sess, input)
	})
}

// handleClarify is the submit action of the clarification form.
func (s *Server) handleClarify(w http.ResponseWriter, r *http.Request) {
	input := r.FormValue("response")
	s.withSession(w, r, func(ctx context.Context, sess *conversation.Session) conversation.Notice {
		return s.controller.Submit(ctx, sess, input)
	})
}

// handleReset backs both "Start Over" and "Start New Analysis".
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *conversation.Session) conversation.Notice {
		s.controller.Reset(sess)
		return conversation.Notice{}
	})
}

// render blocks until the page is written; the response the user sees
// always reflects the advice call's outcome.
func (s *Server) render(w http.ResponseWriter, sess *conversation.Session, notice conversation.Notice) {
	if err := s.view.render(w, buildPage(sess, notice)); err != nil {
		s.logger.Error("failed to render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
