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

const hyperbrowserTracer = "provider.hyperbrowser"

type hyperbrowserLauncher struct {
	baseURL    string
	opts       LaunchOptions
	rest       *restClient
	logger     *zap.Logger
	tracer     trace.Tracer
	instanceID string
}

func newHyperbrowser(cfg *config.ProviderConfig, opts LaunchOptions, client *http.Client, logger *zap.Logger) (ports.SessionLauncher, error) {
	return &hyperbrowserLauncher{
		baseURL: cfg.HyperbrowserBaseURL,
		opts:    opts,
		rest: &restClient{
			httpClient: client,
			headers:    map[string]string{"x-api-key": cfg.HyperbrowserAPIKey},
			provider:   ProviderHyperbrowser,
		},
		logger: logger.With(zap.String(logg.Layer, "HyperbrowserLauncher")),
		tracer: otel.Tracer(hyperbrowserTracer),
	}, nil
}

func (l *hyperbrowserLauncher) Name() string {
	return ProviderHyperbrowser
}

type hyperbrowserSessionRequest struct {
	UseProxy     bool               `json:"useProxy,omitempty"`
	ProxyServer  string             `json:"proxyServer,omitempty"`
	ProxyUser    string             `json:"proxyServerUsername,omitempty"`
	ProxyPass    string             `json:"proxyServerPassword,omitempty"`
	ScreenConfig hyperbrowserScreen `json:"screen"`
}

type hyperbrowserScreen struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type hyperbrowserSessionResponse struct {
	ID         string `json:"id"`
	WSEndpoint string `json:"wsEndpoint"`
	LiveURL    string `json:"liveUrl"`
}

func (l *hyperbrowserLauncher) Launch(ctx context.Context) (sess *ports.RemoteSession, err error) {
	const op = "Launch"
	logger := l.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, l.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	reqBody := hyperbrowserSessionRequest{
		ScreenConfig: hyperbrowserScreen{Width: l.opts.Width, Height: l.opts.Height},
	}

	if p := l.opts.Proxy; p != nil {
		if p.Residential {
			reqBody.UseProxy = true
		} else {
			reqBody.ProxyServer = p.Server
			reqBody.ProxyUser = p.Username
			reqBody.ProxyPass = p.Password
		}
	}

	step.AddEvent("creating session")

	var created hyperbrowserSessionResponse
	if err = l.rest.doJSON(ctx, http.MethodPost, l.baseURL+"/api/session", reqBody, &created); err != nil {
		return nil, err
	}

	if created.ID == "" || created.WSEndpoint == "" {
		return nil, apperr.Wrap(op, apperr.CodeConnection,
			fmt.Errorf("hyperbrowser session response missing id or ws endpoint"),
			map[string]any{
				apperr.MetaReason:   "invalid_session_response",
				apperr.MetaProvider: ProviderHyperbrowser,
			})
	}

	l.instanceID = created.ID
	logger.Info("Launched Hyperbrowser session", zap.String("instance_id", l.instanceID))

	return &ports.RemoteSession{
		CDPURL:      created.WSEndpoint,
		InstanceID:  l.instanceID,
		LiveViewURL: created.LiveURL,
	}, nil
}

func (l *hyperbrowserLauncher) Terminate(ctx context.Context) (err error) {
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

	err = l.rest.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/api/session/%s/stop", l.baseURL, l.instanceID), nil, nil)
	if err != nil && !apperr.IsCode(err, apperr.CodeNotFound) {
		logger.Warn("Hyperbrowser session stop failed", zap.Error(err))
	} else {
		logger.Info("Terminated Hyperbrowser session", zap.String("instance_id", l.instanceID))
	}

	l.instanceID = ""

	return nil
}
