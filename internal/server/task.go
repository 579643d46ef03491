package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"remote-browser-env/internal/config"
	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/scenario"
	"remote-browser-env/internal/tools"
	"remote-browser-env/pkg/apperr"
	"remote-browser-env/pkg/logg"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TaskServer is the agent-facing API: list tools, start a task, drive the
// browser, complete and collect the score.
type TaskServer struct {
	runner   *scenario.Runner
	registry *tools.Registry
	logger   *zap.Logger
	httpSrv  *http.Server
}

type TaskParams struct {
	fx.In

	Config   *config.Config
	Runner   *scenario.Runner
	Registry *tools.Registry
	Logger   *zap.Logger
}

func NewTaskServer(params TaskParams) *TaskServer {
	s := &TaskServer{
		runner:   params.Runner,
		registry: params.Registry,
		logger:   params.Logger.With(zap.String(logg.Layer, "TaskServer")),
	}

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", params.Config.ServerConfig.TaskPort),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *TaskServer) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/tools", s.handleListTools)
	r.Post("/tasks", s.handleCreateTask)
	r.Route("/tasks/{taskID}", func(r chi.Router) {
		r.Get("/", s.handleGetTask)
		r.Post("/tools/{tool}", s.handleToolCall)
		r.Post("/complete", s.handleComplete)
	})

	return r
}

func (s *TaskServer) Start() error {
	s.logger.Info("Task server listening", zap.String("addr", s.httpSrv.Addr))

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Task server stopped", zap.Error(err))
		}
	}()

	return nil
}

func (s *TaskServer) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *TaskServer) handleListTools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"tools": s.registry.List()})
}

func (s *TaskServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	const op = "handleCreateTask"

	var req entity.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.InvalidReqError(op, "body", err))

		return
	}

	task, err := s.runner.CreateTask(r.Context(), req)
	if err != nil {
		respondError(w, err)

		return
	}

	respondJSON(w, http.StatusCreated, task)
}

func (s *TaskServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		respondError(w, err)

		return
	}

	task, err := s.runner.Task(id)
	if err != nil {
		respondError(w, err)

		return
	}

	respondJSON(w, http.StatusOK, task)
}

func (s *TaskServer) handleToolCall(w http.ResponseWriter, r *http.Request) {
	const op = "handleToolCall"

	id, err := taskID(r)
	if err != nil {
		respondError(w, err)

		return
	}

	if err := s.runner.EnsureInProgress(id); err != nil {
		respondError(w, err)

		return
	}

	var args map[string]any
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			respondError(w, apperr.InvalidReqError(op, "body", err))

			return
		}
	}

	result, err := s.registry.Execute(r.Context(), chi.URLParam(r, "tool"), args)
	if err != nil {
		respondError(w, err)

		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *TaskServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	const op = "handleComplete"

	id, err := taskID(r)
	if err != nil {
		respondError(w, err)

		return
	}

	var body struct {
		Answer string `json:"answer"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, apperr.InvalidReqError(op, "body", err))

			return
		}
	}

	task, err := s.runner.CompleteTask(r.Context(), id, body.Answer)
	if err != nil {
		respondError(w, err)

		return
	}

	respondJSON(w, http.StatusOK, task)
}

func taskID(r *http.Request) (uuid.UUID, error) {
	const op = "taskID"

	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		return uuid.Nil, apperr.InvalidReqError(op, "taskID", err)
	}

	return id, nil
}
