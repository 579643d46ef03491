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

const steelTracer = "provider.steel"

type steelLauncher struct {
	// apiKey is kept outside the client because the CDP URL embeds it.
	apiKey  string
	baseURL string
	opts    LaunchOptions
	rest    *restClient
	logger  *zap.Logger
	tracer  trace.Tracer

	instanceID  string
	liveViewURL string
}

func newSteel(cfg *config.ProviderConfig, opts LaunchOptions, client *http.Client, logger *zap.Logger) (ports.SessionLauncher, error) {
	return &steelLauncher{
		apiKey:  cfg.SteelAPIKey,
		baseURL: cfg.SteelBaseURL,
		opts:    opts,
		rest: &restClient{
			httpClient: client,
			headers:    map[string]string{"Steel-Api-Key": cfg.SteelAPIKey},
			provider:   ProviderSteel,
		},
		logger: logger.With(zap.String(logg.Layer, "SteelLauncher")),
		tracer: otel.Tracer(steelTracer),
	}, nil
}

func (l *steelLauncher) Name() string {
	return ProviderSteel
}

type steelSessionRequest struct {
	Timeout    int             `json:"timeout,omitempty"`
	UseProxy   bool            `json:"useProxy,omitempty"`
	ProxyURL   string          `json:"proxyUrl,omitempty"`
	Dimensions steelDimensions `json:"dimensions"`
}

type steelDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type steelSessionResponse struct {
	ID               string `json:"id"`
	DebugURL         string `json:"debugUrl"`
	SessionViewerURL string `json:"sessionViewerUrl"`
}

func (l *steelLauncher) Launch(ctx context.Context) (sess *ports.RemoteSession, err error) {
	const op = "Launch"
	logger := l.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, l.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	reqBody := steelSessionRequest{
		Dimensions: steelDimensions{Width: l.opts.Width, Height: l.opts.Height},
	}

	if l.opts.MaxDuration > 0 {
		reqBody.Timeout = l.opts.MaxDuration
	}

	if p := l.opts.Proxy; p != nil {
		if p.Residential {
			reqBody.UseProxy = true
		} else {
			reqBody.ProxyURL = p.URL()
		}
	}

	step.AddEvent("creating session")

	var created steelSessionResponse
	if err = l.rest.doJSON(ctx, http.MethodPost, l.baseURL+"/v1/sessions", reqBody, &created); err != nil {
		return nil, err
	}

	if created.ID == "" {
		return nil, apperr.Wrap(op, apperr.CodeConnection,
			fmt.Errorf("steel session response missing id"),
			map[string]any{
				apperr.MetaReason:   "invalid_session_response",
				apperr.MetaProvider: ProviderSteel,
			})
	}

	l.instanceID = created.ID
	logger.Info("Launched Steel session", zap.String("instance_id", l.instanceID))

	// Steel does not return the CDP endpoint in the create response; it is
	// derived from the API key and session id.
	cdpURL := fmt.Sprintf("wss://connect.steel.dev?apiKey=%s&sessionId=%s", l.apiKey, l.instanceID)

	switch {
	case created.DebugURL != "":
		l.liveViewURL = created.DebugURL
	case created.SessionViewerURL != "":
		l.liveViewURL = created.SessionViewerURL
	default:
		l.liveViewURL = fmt.Sprintf("https://app.steel.dev/sessions/%s/viewer", l.instanceID)
	}

	return &ports.RemoteSession{
		CDPURL:      cdpURL,
		InstanceID:  l.instanceID,
		LiveViewURL: l.liveViewURL,
	}, nil
}

func (l *steelLauncher) Terminate(ctx context.Context) (err error) {
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

	err = l.rest.doJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/v1/sessions/%s", l.baseURL, l.instanceID), nil, nil)
	if err != nil && !apperr.IsCode(err, apperr.CodeNotFound) {
		logger.Warn("Steel session release failed", zap.Error(err))
	} else {
		logger.Info("Terminated Steel session", zap.String("instance_id", l.instanceID))
	}

	l.instanceID = ""
	l.liveViewURL = ""

	return nil
}
