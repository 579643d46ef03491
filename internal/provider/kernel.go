package provider

import (
	"context"
	"fmt"
	"net/http"

	"remote-browser-env/internal/config"
	"remote-browser-env/internal/ports"
	"remote-browser-env/pkg/apperr"
	"remote-browser-env/pkg/logg"
	"remote-browser-env/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const kernelTracer = "provider.kernel"

type kernelLauncher struct {
	baseURL    string
	opts       LaunchOptions
	rest       *restClient
	logger     *zap.Logger
	tracer     trace.Tracer
	instanceID string
}

func newKernel(cfg *config.ProviderConfig, opts LaunchOptions, client *http.Client, logger *zap.Logger) (ports.SessionLauncher, error) {
	return &kernelLauncher{
		baseURL: cfg.KernelBaseURL,
		opts:    opts,
		rest: &restClient{
			httpClient: client,
			headers:    map[string]string{"Authorization": "Bearer " + cfg.KernelAPIKey},
			provider:   ProviderKernel,
		},
		logger: logger.With(zap.String(logg.Layer, "KernelLauncher")),
		tracer: otel.Tracer(kernelTracer),
	}, nil
}

func (l *kernelLauncher) Name() string {
	return ProviderKernel
}

type kernelBrowserRequest struct {
	Headless       bool         `json:"headless"`
	TimeoutSeconds int          `json:"timeout_seconds,omitempty"`
	Viewport       kernelWindow `json:"viewport"`
}

type kernelWindow struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type kernelBrowserResponse struct {
	SessionID      string `json:"session_id"`
	CDPWSURL       string `json:"cdp_ws_url"`
	BrowserLiveURL string `json:"browser_live_view_url"`
}

func (l *kernelLauncher) Launch(ctx context.Context) (sess *ports.RemoteSession, err error) {
	const op = "Launch"
	logger := l.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, l.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	reqBody := kernelBrowserRequest{
		Headless: true,
		Viewport: kernelWindow{Width: l.opts.Width, Height: l.opts.Height},
	}

	if l.opts.MaxDuration > 0 {
		reqBody.TimeoutSeconds = l.opts.MaxDuration / 1000
	}

	step.AddEvent("creating browser")

	var created kernelBrowserResponse
	if err = l.rest.doJSON(ctx, http.MethodPost, l.baseURL+"/browsers", reqBody, &created); err != nil {
		return nil, err
	}

	if created.SessionID == "" || created.CDPWSURL == "" {
		return nil, apperr.Wrap(op, apperr.CodeConnection,
			fmt.Errorf("kernel browser response missing session id or CDP URL"),
			map[string]any{
				apperr.MetaReason:   "invalid_session_response",
				apperr.MetaProvider: ProviderKernel,
			})
	}

	l.instanceID = created.SessionID
	logger.Info("Launched Kernel browser", zap.String("instance_id", l.instanceID))

	return &ports.RemoteSession{
		CDPURL:      created.CDPWSURL,
		InstanceID:  l.instanceID,
		LiveViewURL: created.BrowserLiveURL,
	}, nil
}

func (l *kernelLauncher) Terminate(ctx context.Context) (err error) {
	const op = "Terminate"
	logger := l.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, l.tracer, logger, op,
		attribute.String("instance_id", l.instanceID))
	defer func() {
		step.End(err)
	}()

	if l.instanceID == "" {
		return nil
	}

	err = l.rest.doJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/browsers/%s", l.baseURL, l.instanceID), nil, nil)
	if err != nil && !apperr.IsCode(err, apperr.CodeNotFound) {
		logger.Warn("Kernel browser delete failed", zap.Error(err))
	} else {
		logger.Info("Terminated Kernel browser", zap.String("instance_id", l.instanceID))
	}

	l.instanceID = ""

	return nil
}
