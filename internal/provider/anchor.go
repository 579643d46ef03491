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

const anchorTracer = "provider.anchorbrowser"

type anchorLauncher struct {
	baseURL    string
	opts       LaunchOptions
	rest       *restClient
	logger     *zap.Logger
	tracer     trace.Tracer
	instanceID string
}

func newAnchor(cfg *config.ProviderConfig, opts LaunchOptions, client *http.Client, logger *zap.Logger) (ports.SessionLauncher, error) {
	return &anchorLauncher{
		baseURL: cfg.AnchorBaseURL,
		opts:    opts,
		rest: &restClient{
			httpClient: client,
			headers:    map[string]string{"anchor-api-key": cfg.AnchorAPIKey},
			provider:   ProviderAnchor,
		},
		logger: logger.With(zap.String(logg.Layer, "AnchorLauncher")),
		tracer: otel.Tracer(anchorTracer),
	}, nil
}

func (l *anchorLauncher) Name() string {
	return ProviderAnchor
}

type anchorSessionRequest struct {
	Session anchorSessionOptions `json:"session"`
	Browser anchorBrowserOptions `json:"browser"`
}

type anchorSessionOptions struct {
	MaxDuration int          `json:"max_duration,omitempty"`
	IdleTimeout int          `json:"idle_timeout,omitempty"`
	Proxy       *anchorProxy `json:"proxy,omitempty"`
}

type anchorProxy struct {
	Type     string `json:"type"`
	Server   string `json:"server,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Active   bool   `json:"active"`
}

type anchorBrowserOptions struct {
	Viewport anchorViewport `json:"viewport"`
	Headless bool           `json:"headless"`
}

type anchorViewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type anchorSessionResponse struct {
	Data struct {
		ID          string `json:"id"`
		CDPURL      string `json:"cdp_url"`
		LiveViewURL string `json:"live_view_url"`
	} `json:"data"`
}

func (l *anchorLauncher) Launch(ctx context.Context) (sess *ports.RemoteSession, err error) {
	const op = "Launch"
	logger := l.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, l.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	reqBody := anchorSessionRequest{
		Session: anchorSessionOptions{
			MaxDuration: l.opts.MaxDuration,
			IdleTimeout: l.opts.IdleTimeout,
		},
		Browser: anchorBrowserOptions{
			Viewport: anchorViewport{Width: l.opts.Width, Height: l.opts.Height},
			Headless: true,
		},
	}

	if p := l.opts.Proxy; p != nil {
		if p.Residential {
			reqBody.Session.Proxy = &anchorProxy{Type: "anchor_residential", Active: true}
		} else {
			reqBody.Session.Proxy = &anchorProxy{
				Type:     "custom",
				Server:   p.Server,
				Username: p.Username,
				Password: p.Password,
				Active:   true,
			}
		}
	}

	step.AddEvent("creating session")

	var created anchorSessionResponse
	if err = l.rest.doJSON(ctx, http.MethodPost, l.baseURL+"/v1/sessions", reqBody, &created); err != nil {
		return nil, err
	}

	if created.Data.ID == "" || created.Data.CDPURL == "" {
		return nil, apperr.Wrap(op, apperr.CodeConnection,
			fmt.Errorf("anchorbrowser session response missing id or CDP URL"),
			map[string]any{
				apperr.MetaReason:   "invalid_session_response",
				apperr.MetaProvider: ProviderAnchor,
			})
	}

	l.instanceID = created.Data.ID
	logger.Info("Launched Anchor session", zap.String("instance_id", l.instanceID))

	return &ports.RemoteSession{
		CDPURL:      created.Data.CDPURL,
		InstanceID:  l.instanceID,
		LiveViewURL: created.Data.LiveViewURL,
	}, nil
}

func (l *anchorLauncher) Terminate(ctx context.Context) (err error) {
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
		logger.Warn("Anchor session release failed", zap.Error(err))
	} else {
		logger.Info("Terminated Anchor session", zap.String("instance_id", l.instanceID))
	}

	l.instanceID = ""

	return nil
}
