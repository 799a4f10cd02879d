package v1

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// If the underlying store implements ReadyChecker, call it with a short timeout
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	if rc, ok := any(s.store).(ReadyChecker); ok {
		if err := rc.Ready(ctx); err != nil {
			s.log.Warn("store not ready", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// GET /v1/me returns the caller's identity claims.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	toJSON(w, http.StatusOK, meResponse{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, LastSignIn: u.LastSignIn})
}
