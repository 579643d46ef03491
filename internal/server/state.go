package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"remote-browser-env/internal/config"
	"remote-browser-env/internal/ports"
	"remote-browser-env/pkg/logg"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// StateServer reports environment health and session telemetry. It mirrors
// the endpoints orchestration platforms poll while a run is live.
type StateServer struct {
	session ports.BrowserSession
	logger  *zap.Logger
	httpSrv *http.Server
}

type StateParams struct {
	fx.In

	Config  *config.Config
	Session ports.BrowserSession
	Logger  *zap.Logger
}

func NewStateServer(params StateParams) *StateServer {
	s := &StateServer{
		session: params.Session,
		logger:  params.Logger.With(zap.String(logg.Layer, "StateServer")),
	}

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", params.Config.ServerConfig.StatePort),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *StateServer) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Get("/telemetry", s.handleTelemetry)
	r.Get("/cdp_url", s.handleCDPURL)
	r.Post("/initialize", s.handleInitialize)
	r.Post("/shutdown", s.handleShutdown)

	return r
}

func (s *StateServer) Start() error {
	s.logger.Info("State server listening", zap.String("addr", s.httpSrv.Addr))

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("State server stopped", zap.Error(err))
		}
	}()

	return nil
}

func (s *StateServer) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *StateServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *StateServer) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"browser_ready": s.session.Ready(),
		"url":           s.session.CurrentURL(),
	})
}

func (s *StateServer) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.session.Telemetry())
}

func (s *StateServer) handleCDPURL(w http.ResponseWriter, r *http.Request) {
	t := s.session.Telemetry()
	if t.CDPURL == "" {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "browser session not initialized",
		})

		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"cdp_url": t.CDPURL})
}

// handleInitialize eagerly creates the browser session instead of waiting for
// the first task.
func (s *StateServer) handleInitialize(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Acquire(r.Context()); err != nil {
		respondError(w, err)

		return
	}

	respondJSON(w, http.StatusOK, s.session.Telemetry())
}

func (s *StateServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Close(r.Context()); err != nil {
		respondError(w, err)

		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "shutdown"})
}
