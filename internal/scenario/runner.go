package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/ports"
	"remote-browser-env/internal/sheets"
	"remote-browser-env/pkg/apperr"
	"remote-browser-env/pkg/logg"
	"remote-browser-env/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	runnerName   = "TaskRunner"
	runnerTracer = "scenario.runner"
)

// Runner drives tasks through created → setup → in_progress → evaluated →
// done. At most one task is active at a time; state never moves backwards and
// a task is evaluated at most once.
type Runner struct {
	registry *Registry
	env      *Env
	logger   *zap.Logger
	tracer   trace.Tracer

	mu        sync.Mutex
	tasks     map[uuid.UUID]*entity.Task
	instances map[uuid.UUID]Instance
	active    *entity.Task
}

type RunnerParams struct {
	fx.In

	Registry *Registry
	Session  ports.BrowserSession
	Sheets   *sheets.Service
	Logger   *zap.Logger
}

func NewRunner(params RunnerParams) *Runner {
	return &Runner{
		registry: params.Registry,
		env: &Env{
			Session: params.Session,
			Sheets:  params.Sheets,
		},
		logger:    params.Logger.With(zap.String(logg.Layer, runnerName)),
		tracer:    otel.Tracer(runnerTracer),
		tasks:     make(map[uuid.UUID]*entity.Task),
		instances: make(map[uuid.UUID]Instance),
	}
}

// CreateTask instantiates and sets up a task. Invalid definitions still
// produce a task record, finished immediately with a failed result; only a
// conflicting active task is an error to the caller.
func (r *Runner) CreateTask(ctx context.Context, req entity.TaskRequest) (task *entity.Task, err error) {
	const op = "CreateTask"
	logger := r.logger.With(zap.String(logg.Operation, op), zap.String(logg.Scenario, req.Scenario))

	ctx, step := tracing.StartSpan(ctx, r.tracer, logger, op,
		attribute.String("scenario", req.Scenario))
	defer func() {
		step.End(err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, apperr.Wrap(op, apperr.CodeTaskConflict,
			fmt.Errorf("task %s is still active", r.active.ID),
			map[string]any{
				apperr.MetaReason: "task_in_progress",
				apperr.MetaTaskID: r.active.ID.String(),
			})
	}

	task = &entity.Task{
		ID:        uuid.New(),
		Env:       req.Env.Name,
		Scenario:  req.Scenario,
		Args:      req.Args,
		Status:    entity.TaskStatusCreated,
		CreatedAt: time.Now(),
	}
	r.tasks[task.ID] = task

	if req.Env.Name == "" {
		r.finish(task, entity.FailedResult("invalid_arguments", map[string]any{"field": "env.name"}))

		return task, nil
	}

	handler, herr := r.registry.Get(req.Scenario)
	if herr != nil {
		logger.Warn("Unknown scenario", zap.Error(herr))
		r.finish(task, entity.FailedResult("unknown_scenario", map[string]any{"scenario": req.Scenario}))

		return task, nil
	}

	instance, ierr := handler.NewInstance(req.Args)
	if ierr != nil {
		logger.Warn("Invalid task arguments", zap.Error(ierr))
		r.finish(task, entity.FailedResult("invalid_arguments", map[string]any{
			"error": ierr.Error(),
		}))

		return task, nil
	}

	task.Status = entity.TaskStatusSetup
	task.Prompt = instance.Prompt()
	r.instances[task.ID] = instance

	step.AddEvent("running setup")

	if serr := r.env.Session.Acquire(ctx); serr != nil {
		logger.Error("Session acquire failed", zap.Error(serr))
		r.finish(task, entity.FailedResult("browser_unavailable", map[string]any{
			"error": serr.Error(),
		}))

		return task, nil
	}

	// Clearing after Acquire keeps any first-boot navigation the session
	// performed out of the task's click count.
	r.env.Session.History().Clear()

	if serr := instance.Setup(ctx, r.env); serr != nil {
		logger.Error("Scenario setup failed", zap.Error(serr))
		r.finish(task, entity.FailedResult("setup_failed", map[string]any{
			"error": serr.Error(),
		}))

		return task, nil
	}

	task.Status = entity.TaskStatusInProgress
	r.active = task
	logger.Info("Task started", zap.String(logg.TaskID, task.ID.String()))

	return task, nil
}

func (r *Runner) Task(id uuid.UUID) (*entity.Task, error) {
	const op = "Task"

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, apperr.NotFoundError(op, fmt.Errorf("task %s not found", id))
	}

	return task, nil
}

// EnsureInProgress guards tool calls: only the active, in-progress task may
// drive the browser.
func (r *Runner) EnsureInProgress(id uuid.UUID) error {
	const op = "EnsureInProgress"

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return apperr.NotFoundError(op, fmt.Errorf("task %s not found", id))
	}

	if task.Status != entity.TaskStatusInProgress {
		return apperr.Wrap(op, apperr.CodeTaskConflict,
			fmt.Errorf("task %s is %s", id, task.Status),
			map[string]any{
				apperr.MetaReason: "task_not_in_progress",
				apperr.MetaTaskID: id.String(),
			})
	}

	return nil
}

// CompleteTask evaluates the task against the current browser state.
// Completing an already finished task returns the recorded result unchanged.
func (r *Runner) CompleteTask(ctx context.Context, id uuid.UUID, answer string) (task *entity.Task, err error) {
	const op = "CompleteTask"
	logger := r.logger.With(zap.String(logg.Operation, op), zap.String(logg.TaskID, id.String()))

	ctx, step := tracing.StartSpan(ctx, r.tracer, logger, op,
		attribute.String("task_id", id.String()))
	defer func() {
		step.End(err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, apperr.NotFoundError(op, fmt.Errorf("task %s not found", id))
	}

	if task.Status == entity.TaskStatusDone || task.Status == entity.TaskStatusEvaluated {
		return task, nil
	}

	if task.Status != entity.TaskStatusInProgress {
		return nil, apperr.Wrap(op, apperr.CodeTaskConflict,
			fmt.Errorf("task %s is %s", id, task.Status),
			map[string]any{apperr.MetaReason: "task_not_in_progress"})
	}

	instance, ok := r.instances[id]
	if !ok {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeInternal, "instance_missing")
	}

	step.AddEvent("evaluating")

	result := instance.Evaluate(ctx, r.env, answer)
	if result == nil {
		result = entity.FailedResult("no_result", nil)
	}

	now := time.Now()
	task.Status = entity.TaskStatusEvaluated
	task.EvaluatedAt = &now
	task.Result = result

	r.finish(task, result)
	logger.Info("Task evaluated",
		zap.Float64("reward", result.Reward),
		zap.Bool("success", result.Success))

	return task, nil
}

// ActiveTask returns the in-progress task, if any.
func (r *Runner) ActiveTask() *entity.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.active
}

// finish moves a task to done and releases the active slot. Caller holds the
// lock.
func (r *Runner) finish(task *entity.Task, result *entity.EvaluationResult) {
	if task.Result == nil {
		task.Result = result
	}

	task.Status = entity.TaskStatusDone
	delete(r.instances, task.ID)

	if r.active != nil && r.active.ID == task.ID {
		r.active = nil
	}
}
