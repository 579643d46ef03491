package browser

import (
	"context"
	"time"

	"remote-browser-env/internal/config"
	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/ports"
	"remote-browser-env/pkg/apperr"
	"remote-browser-env/pkg/logg"
	"remote-browser-env/pkg/tracing"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionName   = "BrowserSession"
	sessionTracer = "browser.session"
)

// Session owns the single live remote browser session. It is created lazily
// on the first Acquire and reused across tool calls and scenario steps; local
// execution is sequential, so there is never more than one.
type Session struct {
	config   *config.Config
	logger   *zap.Logger
	tracer   trace.Tracer
	launcher ports.SessionLauncher

	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	remote  *ports.RemoteSession
	history entity.History
	ready   bool
}

type Params struct {
	fx.In

	Config   *config.Config
	Logger   *zap.Logger
	Launcher ports.SessionLauncher
}

func NewSession(params Params) *Session {
	return &Session{
		config:   params.Config,
		logger:   params.Logger.With(zap.String(logg.Layer, sessionName)),
		tracer:   otel.Tracer(sessionTracer),
		launcher: params.Launcher,
	}
}

func (s *Session) Ready() bool {
	return s.ready
}

func (s *Session) History() *entity.History {
	return &s.history
}

func (s *Session) Telemetry() entity.Telemetry {
	t := entity.Telemetry{
		Provider:  s.launcher.Name(),
		Status:    "not_initialized",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if s.ready && s.remote != nil {
		t.Status = "running"
		t.LiveURL = s.remote.LiveViewURL
		t.CDPURL = s.remote.CDPURL
		t.InstanceID = s.remote.InstanceID
	}

	return t
}

// Acquire returns the existing live session or creates one through the
// provider. A failure is surfaced to the caller and leaves the session
// unready; the next task may retry.
func (s *Session) Acquire(ctx context.Context) (err error) {
	const op = "Acquire"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if s.ready {
		return nil
	}

	logger.Info("Creating browser session", zap.String(logg.Provider, s.launcher.Name()))
	step.AddEvent("launching provider session")

	remote, err := s.launcher.Launch(ctx)
	if err != nil {
		return err
	}
	s.remote = remote

	step.AddEvent("installing playwright driver")

	if err = playwright.Install(&playwright.RunOptions{SkipInstallBrowsers: true}); err != nil {
		s.teardown(ctx)

		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_install_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	step.AddEvent("starting playwright")

	pw, err := playwright.Run()
	if err != nil {
		s.teardown(ctx)

		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_start_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	s.pw = pw

	step.AddEvent("connecting over CDP")

	browser, err := pw.Chromium.ConnectOverCDP(remote.CDPURL)
	if err != nil {
		s.teardown(ctx)

		return apperr.Wrap(op, apperr.CodeConnection, err, map[string]any{
			apperr.MetaReason:   "cdp_connect_failed",
			apperr.MetaStage:    apperr.StageBrowser,
			apperr.MetaProvider: s.launcher.Name(),
		})
	}
	s.browser = browser

	if err = s.attachPage(); err != nil {
		s.teardown(ctx)

		return err
	}

	s.page.SetDefaultTimeout(float64(s.config.BrowserConfig.DefaultTimeout))
	s.syncViewport(ctx, logger)

	if initial := s.config.BrowserConfig.InitialURL; initial != "" {
		step.AddEvent("navigating to initial URL")

		if err = s.Navigate(ctx, initial); err != nil {
			logger.Warn("Initial navigation failed", zap.Error(err))
			err = nil
		}

		// The landing page is environment plumbing; task histories start
		// with the scenario's own navigation.
		s.history.Clear()
	}

	s.ready = true
	logger.Info("Browser session ready", zap.String("instance_id", remote.InstanceID))

	return nil
}

// attachPage reuses a context and page the remote browser already has, which
// is the normal case when reconnecting over CDP.
func (s *Session) attachPage() error {
	const op = "attachPage"

	contexts := s.browser.Contexts()
	if len(contexts) > 0 {
		s.bctx = contexts[0]
	} else {
		bctx, err := s.browser.NewContext()
		if err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "context_create_failed",
				apperr.MetaStage:  apperr.StageBrowser,
			})
		}
		s.bctx = bctx
	}

	pages := s.bctx.Pages()
	for _, p := range pages {
		if !p.IsClosed() {
			s.page = p

			return nil
		}
	}

	page, err := s.bctx.NewPage()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "page_create_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	s.page = page

	return nil
}

// syncViewport reads the viewport back from the browser and corrects the
// display dimensions when the provider adjusted them; coordinate tools scale
// against these values.
func (s *Session) syncViewport(ctx context.Context, logger *zap.Logger) {
	result, err := s.page.Evaluate(`() => ({width: window.innerWidth, height: window.innerHeight})`)
	if err != nil {
		logger.Warn("Failed to read viewport", zap.Error(err))

		return
	}

	dims, ok := result.(map[string]interface{})
	if !ok {
		return
	}

	width := intFromAny(dims["width"])
	height := intFromAny(dims["height"])
	if width == 0 || height == 0 {
		return
	}

	if width != s.config.BrowserConfig.DisplayWidth || height != s.config.BrowserConfig.DisplayHeight {
		logger.Warn("Viewport differs from requested display size",
			zap.Int("requested_width", s.config.BrowserConfig.DisplayWidth),
			zap.Int("requested_height", s.config.BrowserConfig.DisplayHeight),
			zap.Int("actual_width", width),
			zap.Int("actual_height", height))
	}

	s.applyViewport(width, height)
}

// applyViewport records the real window size. Coordinate tools scale display
// coordinates by these values, so they must always match the live page, not
// the configured ones.
func (s *Session) applyViewport(width, height int) {
	s.config.BrowserConfig.WindowWidth = width
	s.config.BrowserConfig.WindowHeight = height
}

// Reset tears the session down so the next Acquire starts fresh. Used when a
// session drops; between healthy sequential tasks only the history is
// cleared.
func (s *Session) Reset(ctx context.Context) (err error) {
	const op = "Reset"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Resetting browser session")
	s.teardown(ctx)
	s.history.Clear()

	return nil
}

func (s *Session) Close(ctx context.Context) (err error) {
	const op = "Close"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Closing browser session")
	s.teardown(ctx)

	return nil
}

func (s *Session) teardown(ctx context.Context) {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Warn("Failed to close browser connection", zap.Error(err))
		}
		s.browser = nil
		s.bctx = nil
		s.page = nil
	}

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			s.logger.Warn("Failed to stop playwright", zap.Error(err))
		}
		s.pw = nil
	}

	if s.remote != nil {
		if err := s.launcher.Terminate(ctx); err != nil {
			s.logger.Warn("Failed to terminate provider session", zap.Error(err))
		}
		s.remote = nil
	}

	s.ready = false
}

func (s *Session) ensurePage() error {
	const op = "ensurePage"

	if !s.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if s.page != nil && !s.page.IsClosed() {
		return nil
	}

	if s.bctx == nil {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "context_missing")
	}

	for _, p := range s.bctx.Pages() {
		if !p.IsClosed() {
			s.page = p

			return nil
		}
	}

	page, err := s.bctx.NewPage()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_create_failed",
		})
	}
	s.page = page

	return nil
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

var _ ports.BrowserSession = (*Session)(nil)
