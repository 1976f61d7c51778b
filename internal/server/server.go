/*
Copyright 2025 The replend Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package server exposes the orchestrator over HTTP: a turn endpoint per
// session, a session inspection endpoint, health, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apiv1 "github.com/replenlab/replend/api/v1"
	"github.com/replenlab/replend/internal/config"
	"github.com/replenlab/replend/internal/logging"
	"github.com/replenlab/replend/internal/orchestrator"
)

// maxTurnBody bounds the request body of a turn.
const maxTurnBody = 1 << 16

// Server serves the replend HTTP API.
type Server struct {
	orch   *orchestrator.Orchestrator
	cfg    config.ServerConfig
	logger logr.Logger
	http   *http.Server
}

// New creates a Server around an orchestrator.
func New(orch *orchestrator.Orchestrator, cfg config.ServerConfig, logger logr.Logger) *Server {
	s := &Server{orch: orch, cfg: cfg, logger: logger}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Routes builds the router. Exposed for httptest.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions/{sessionID}/turns", s.handleTurn)
		r.Get("/sessions/{sessionID}", s.handleGetSession)
		r.Delete("/sessions/{sessionID}", s.handleCloseSession)
	})
	return r
}

// Run serves until the context is canceled, then shuts down gracefully.
// It also runs the session expiry sweep.
func (s *Server) Run(ctx context.Context) error {
	go s.expiryLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(shutCtx)
}

// expiryLoop sweeps idle sessions once a minute.
func (s *Server) expiryLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if dropped := s.orch.Sessions().ExpireIdle(now); dropped > 0 {
				s.logger.V(1).Info("expired idle sessions", "count", dropped)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTurn runs one conversation turn. The path sessionID "new" allocates
// a fresh session.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "new" {
		sessionID = ""
	}

	var req apiv1.TurnRequest
	body := http.MaxBytesReader(w, r.Body, maxTurnBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiv1.ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, apiv1.ErrorResponse{Error: "text must not be empty"})
		return
	}

	ctx := logging.IntoContext(r.Context(), s.logger.WithValues("requestID", middleware.GetReqID(r.Context())))
	resp, err := s.orch.HandleTurn(ctx, sessionID, req.Text)
	if err != nil {
		s.logger.Error(err, "turn handling failed", "session", sessionID)
		writeJSON(w, http.StatusInternalServerError, apiv1.ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, toWireTurn(resp))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, ok := s.orch.Sessions().Get(sessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiv1.ErrorResponse{Error: "session not found"})
		return
	}
	summary := sess.Summary()
	writeJSON(w, http.StatusOK, apiv1.SessionResponse{
		SessionID:      summary.ID,
		State:          string(summary.State),
		Turns:          summary.Turns,
		HasActiveModel: summary.HasActiveModel,
		Scenarios:      summary.Scenarios,
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, ok := s.orch.Sessions().Get(sessionID); !ok {
		writeJSON(w, http.StatusNotFound, apiv1.ErrorResponse{Error: "session not found"})
		return
	}
	s.orch.Sessions().Close(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// toWireTurn converts an orchestrator response to the wire shape.
func toWireTurn(resp *orchestrator.Response) apiv1.TurnResponse {
	out := apiv1.TurnResponse{
		SessionID: resp.SessionID,
		Intent:    resp.Intent,
		State:     string(resp.State),
		Message:   resp.Message,
		Solution:  resp.Solution,
	}
	for _, st := range resp.Trace {
		out.Trace = append(out.Trace, string(st))
	}
	if resp.Frame != nil {
		if raw, err := json.Marshal(resp.Frame); err == nil {
			out.Frame = raw
		}
	}
	if resp.Render != nil {
		out.ChartPath = resp.Render.FilePath
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
