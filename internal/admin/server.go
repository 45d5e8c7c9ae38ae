// Package admin exposes the connector's local control surface: a manual
// sync trigger, a status snapshot and a liveness probe.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pumpsync/internal/errs"
	"pumpsync/internal/syncer"
)

// Syncer is the orchestrator surface the admin API drives.
type Syncer interface {
	SyncNow(ctx context.Context) error
	Status() syncer.Status
}

// Server wires the orchestrator into HTTP handlers.
type Server struct {
	sync Syncer
	log  *zap.Logger
}

// New constructs an admin server with an injected orchestrator.
func New(sync Syncer, log *zap.Logger) *Server {
	return &Server{sync: sync, log: log}
}

// Router builds the admin mux with logging and panic recovery.
func (s *Server) Router() *chi.Mux {
	mux := chi.NewMux()
	mux.Use(Recover(s.log), Logging(s.log))

	mux.Get("/healthz", s.health)
	mux.Route("/v1", func(r chi.Router) {
		r.Post("/sync", s.trigger)
		r.Get("/status", s.status)
	})
	return mux
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// trigger runs a sync cycle synchronously; a concurrent scheduled cycle
// is joined rather than duplicated.
func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.SyncNow(r.Context()); err != nil {
		switch {
		case errors.Is(err, errs.ErrBadCredentials):
			writeError(w, http.StatusUnauthorized, err)
		case errors.Is(err, errs.ErrTransport),
			errors.Is(err, errs.ErrSubmission):
			writeError(w, http.StatusBadGateway, err)
		case errors.Is(err, errs.ErrDecryption):
			writeError(w, http.StatusUnprocessableEntity, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, s.sync.Status())
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
