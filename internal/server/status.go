// Package server exposes a small HTTP status surface for long-running
// enumerations: liveness plus the live run-state counters. It is off unless
// a listen address is configured.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/3leaps/fastls/pkg/runstate"
)

// StatusServer serves /healthz and /status while a run is in flight.
type StatusServer struct {
	srv   *http.Server
	state *runstate.State
	runID string
	start time.Time
	log   *zap.Logger
}

// statusResponse is the /status payload.
type statusResponse struct {
	RunID           string  `json:"run_id"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	Cancelled       bool    `json:"cancelled"`
	Outstanding     int64   `json:"outstanding_tasks"`
	ObjectsListed   int64   `json:"objects_listed"`
	ObjectsFiltered int64   `json:"objects_filtered"`
	ObjectsEmitted  int64   `json:"objects_emitted"`
	RangesSkipped   int64   `json:"ranges_skipped"`
}

// New creates a status server bound to addr.
func New(addr, runID string, state *runstate.State, log *zap.Logger) *StatusServer {
	s := &StatusServer{
		state: state,
		runID: runID,
		start: time.Now(),
		log:   log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves in the background. Listen errors are logged, not fatal: the
// status endpoint is an observability aid, never a reason to kill a run.
func (s *StatusServer) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Warn("status server stopped", zap.Error(err))
		}
	}()
	s.log.Info("status server listening", zap.String("addr", s.srv.Addr))
}

// Shutdown stops the server, waiting briefly for in-flight requests.
func (s *StatusServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Snap()
	resp := statusResponse{
		RunID:           s.runID,
		UptimeSeconds:   time.Since(s.start).Seconds(),
		Cancelled:       snap.Cancelled,
		Outstanding:     snap.Outstanding,
		ObjectsListed:   snap.ObjectsListed,
		ObjectsFiltered: snap.ObjectsFiltered,
		ObjectsEmitted:  snap.ObjectsEmitted,
		RangesSkipped:   snap.RangesSkipped,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Debug("status encode failed", zap.Error(err))
	}
}
