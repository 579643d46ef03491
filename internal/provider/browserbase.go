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

const browserbaseTracer = "provider.browserbase"

// Without advanced stealth Browserbase only accepts a fixed set of desktop
// viewports; requests are snapped to the closest one.
var browserbaseViewports = [][2]int{
	{1920, 1080}, {1536, 864}, {1366, 768}, {1280, 720}, {1024, 768},
}

type browserbaseLauncher struct {
	projectID string
	baseURL   string
	opts      LaunchOptions
	rest      *restClient
	logger    *zap.Logger
	tracer    trace.Tracer

	instanceID  string
	liveViewURL string
}

func newBrowserbase(cfg *config.ProviderConfig, opts LaunchOptions, client *http.Client, logger *zap.Logger) (ports.SessionLauncher, error) {
	const op = "provider.newBrowserbase"

	if cfg.BrowserbaseProjectID == "" {
		return nil, apperr.Wrap(op, apperr.CodeConfiguration,
			fmt.Errorf("browserbase requires BROWSERBASE_PROJECT_ID"),
			map[string]any{
				apperr.MetaReason:   "missing_project_id",
				apperr.MetaProvider: ProviderBrowserbase,
				apperr.MetaStage:    apperr.StageProvider,
			})
	}

	return &browserbaseLauncher{
		projectID: cfg.BrowserbaseProjectID,
		baseURL:   cfg.BrowserbaseBaseURL,
		opts:      opts,
		rest: &restClient{
			httpClient: client,
			headers:    map[string]string{"X-BB-API-Key": cfg.BrowserbaseAPIKey},
			provider:   ProviderBrowserbase,
		},
		logger: logger.With(zap.String(logg.Layer, "BrowserbaseLauncher")),
		tracer: otel.Tracer(browserbaseTracer),
	}, nil
}

func (l *browserbaseLauncher) Name() string {
	return ProviderBrowserbase
}

type browserbaseSessionRequest struct {
	ProjectID       string                     `json:"projectId"`
	BrowserSettings browserbaseBrowserSettings `json:"browserSettings"`
	Proxies         []browserbaseProxySetting  `json:"proxies,omitempty"`
}

type browserbaseBrowserSettings struct {
	Viewport browserbaseViewport `json:"viewport"`
}

type browserbaseViewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type browserbaseProxySetting struct {
	Type     string `json:"type"`
	Server   string `json:"server,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type browserbaseSessionResponse struct {
	ID         string `json:"id"`
	ConnectURL string `json:"connectUrl"`
}

type browserbaseDebugResponse struct {
	DebuggerFullscreenURL string `json:"debuggerFullscreenUrl"`
	DebuggerURL           string `json:"debuggerUrl"`
}

func (l *browserbaseLauncher) Launch(ctx context.Context) (sess *ports.RemoteSession, err error) {
	const op = "Launch"
	logger := l.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, l.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	width, height := snapViewport(l.opts.Width, l.opts.Height)
	if width != l.opts.Width || height != l.opts.Height {
		logger.Warn("Requested viewport not supported, using closest",
			zap.Int("requested_width", l.opts.Width),
			zap.Int("requested_height", l.opts.Height),
			zap.Int("width", width),
			zap.Int("height", height))
	}

	reqBody := browserbaseSessionRequest{
		ProjectID: l.projectID,
		BrowserSettings: browserbaseBrowserSettings{
			Viewport: browserbaseViewport{Width: width, Height: height},
		},
	}

	if p := l.opts.Proxy; p != nil {
		if p.Residential {
			reqBody.Proxies = []browserbaseProxySetting{{Type: "browserbase"}}
		} else {
			reqBody.Proxies = []browserbaseProxySetting{{
				Type:     "external",
				Server:   "http://" + p.Server,
				Username: p.Username,
				Password: p.Password,
			}}
		}
	}

	step.AddEvent("creating session")

	var created browserbaseSessionResponse
	if err = l.rest.doJSON(ctx, http.MethodPost, l.baseURL+"/v1/sessions", reqBody, &created); err != nil {
		return nil, err
	}

	if created.ID == "" || created.ConnectURL == "" {
		return nil, apperr.Wrap(op, apperr.CodeConnection,
			fmt.Errorf("browserbase session response missing id or connect URL"),
			map[string]any{
				apperr.MetaReason:   "invalid_session_response",
				apperr.MetaProvider: ProviderBrowserbase,
			})
	}

	l.instanceID = created.ID
	logger.Info("Launched Browserbase session", zap.String("instance_id", l.instanceID))

	// Live view URLs come from the session debug endpoint. Failure here is
	// not fatal; the session is already usable.
	step.AddEvent("fetching live view URL")

	var debug browserbaseDebugResponse
	if derr := l.rest.doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/v1/sessions/%s/debug", l.baseURL, l.instanceID), nil, &debug); derr != nil {
		logger.Warn("Failed to fetch debug URLs", zap.Error(derr))
	} else {
		l.liveViewURL = debug.DebuggerFullscreenURL
	}

	return &ports.RemoteSession{
		CDPURL:      created.ConnectURL,
		InstanceID:  l.instanceID,
		LiveViewURL: l.liveViewURL,
	}, nil
}

func (l *browserbaseLauncher) Terminate(ctx context.Context) (err error) {
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

	// Sessions release automatically on disconnect; REQUEST_RELEASE just
	// hurries that along, so a 404 for an already-ended session is fine.
	body := map[string]string{"status": "REQUEST_RELEASE", "projectId": l.projectID}

	err = l.rest.doJSON(ctx, http.MethodPatch, fmt.Sprintf("%s/v1/sessions/%s", l.baseURL, l.instanceID), body, nil)
	if err != nil && !apperr.IsCode(err, apperr.CodeNotFound) {
		logger.Warn("Browserbase session release failed", zap.Error(err))
	} else {
		logger.Info("Terminated Browserbase session", zap.String("instance_id", l.instanceID))
	}

	l.instanceID = ""
	l.liveViewURL = ""

	return nil
}

func snapViewport(width, height int) (int, int) {
	best := browserbaseViewports[0]
	bestDist := -1

	for _, v := range browserbaseViewports {
		dist := abs(v[0]-width) + abs(v[1]-height)
		if bestDist < 0 || dist < bestDist {
			best = v
			bestDist = dist
		}
	}

	return best[0], best[1]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}

	return n
}
