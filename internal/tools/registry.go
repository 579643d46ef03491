package tools

import (
	"context"
	"fmt"
	"time"

	"remote-browser-env/internal/config"
	"remote-browser-env/internal/ports"
	"remote-browser-env/pkg/apperr"
	"remote-browser-env/pkg/logg"
	"remote-browser-env/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	registryName   = "ToolRegistry"
	registryTracer = "tools.registry"
)

// Registry holds the fixed tool set and dispatches calls against the shared
// browser session with a per-call timeout.
type Registry struct {
	session ports.BrowserSession
	logger  *zap.Logger
	tracer  trace.Tracer
	timeout time.Duration

	byName map[string]Tool
	order  []string
}

type Params struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Session ports.BrowserSession
}

func NewRegistry(params Params) *Registry {
	r := &Registry{
		session: params.Session,
		logger:  params.Logger.With(zap.String(logg.Layer, registryName)),
		tracer:  otel.Tracer(registryTracer),
		timeout: time.Duration(params.Config.BrowserConfig.DefaultTimeout) * time.Millisecond,
		byName:  make(map[string]Tool),
	}

	for _, t := range all() {
		r.byName[t.Name] = t
		r.order = append(r.order, t.Name)
	}

	return r
}

// List returns the tools in registration order for the /tools endpoint.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}

	return out
}

func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result *Result, err error) {
	const op = "Execute"
	logger := r.logger.With(zap.String(logg.Operation, op), zap.String(logg.Tool, name))

	ctx, step := tracing.StartSpan(ctx, r.tracer, logger, op,
		attribute.String("tool", name))
	defer func() {
		step.End(err)
	}()

	tool, ok := r.byName[name]
	if !ok {
		return nil, apperr.NotFoundError(op, fmt.Errorf("unknown tool %q", name))
	}

	if !r.session.Ready() {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if args == nil {
		args = map[string]any{}
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err = tool.handler(callCtx, r.session, args)
	if err != nil {
		logger.Warn("Tool call failed", zap.Error(err))

		return nil, err
	}

	logger.Debug("Tool call completed")

	return result, nil
}
