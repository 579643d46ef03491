package browser

import (
	"context"
	"strings"

	"remote-browser-env/internal/entity"
	"remote-browser-env/pkg/apperr"
	"remote-browser-env/pkg/logg"
	"remote-browser-env/pkg/tracing"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func (s *Session) CurrentURL() string {
	if s.page == nil || s.page.IsClosed() {
		return ""
	}

	return s.page.URL()
}

func (s *Session) Title(ctx context.Context) (string, error) {
	const op = "Title"

	if err := s.ensurePage(); err != nil {
		return "", err
	}

	title, err := s.page.Title()
	if err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "title_read_failed")
	}

	return title, nil
}

func (s *Session) Navigate(ctx context.Context, url string) (err error) {
	const op = "Navigate"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, tracing.URL(url))
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return err
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	_, err = s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "navigation_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	s.history.RecordNavigation(s.page.URL())
	s.history.RecordAction("navigate", map[string]any{"url": url})

	return nil
}

// Click tries a normal click first and falls back to a forced click, which
// gets past overlay layers on pages that intercept pointer events.
func (s *Session) Click(ctx context.Context, selector string) (err error) {
	const op = "Click"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, tracing.Selector(selector))
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return err
	}

	before := s.page.URL()

	err = s.page.Click(selector)
	if err != nil {
		step.AddEvent("retrying with forced click")

		err = s.page.Click(selector, playwright.PageClickOptions{Force: playwright.Bool(true)})
	}
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "click_failed",
			apperr.MetaStage:    apperr.StageInteraction,
			apperr.MetaSelector: selector,
		})
	}

	s.history.RecordSelector(selector)
	s.history.RecordAction("click", map[string]any{"selector": selector})
	s.recordURLChange(before)

	return nil
}

// ClickAt takes display coordinates and scales them to the actual browser
// window before dispatching the mouse event.
func (s *Session) ClickAt(ctx context.Context, x, y float64) (err error) {
	const op = "ClickAt"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.Float64("x", x), attribute.Float64("y", y))
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return err
	}

	before := s.page.URL()
	px, py := s.scaleToWindow(x, y)

	if err = s.page.Mouse().Click(px, py); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "click_at_failed",
			apperr.MetaStage:  apperr.StageInteraction,
		})
	}

	s.history.RecordAction("click_at", map[string]any{"x": x, "y": y})
	s.recordURLChange(before)

	return nil
}

func (s *Session) Fill(ctx context.Context, selector, value string) (err error) {
	const op = "Fill"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, tracing.Selector(selector))
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return err
	}

	if err = s.page.Fill(selector, value); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "fill_failed",
			apperr.MetaStage:    apperr.StageInteraction,
			apperr.MetaSelector: selector,
		})
	}

	s.history.RecordSelector(selector)
	s.history.RecordAction("fill", map[string]any{"selector": selector, "value": value})

	return nil
}

// TypeText types into whatever element currently has focus.
func (s *Session) TypeText(ctx context.Context, text string, enterAfter bool) (err error) {
	const op = "TypeText"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.Bool("enter_after", enterAfter))
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return err
	}

	before := s.page.URL()

	if err = s.page.Keyboard().Type(text); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "type_failed",
			apperr.MetaStage:  apperr.StageInteraction,
		})
	}

	if enterAfter {
		if err = s.page.Keyboard().Press("Enter"); err != nil {
			return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
				apperr.MetaReason: "enter_failed",
				apperr.MetaStage:  apperr.StageInteraction,
			})
		}
	}

	s.history.RecordAction("type", map[string]any{"text": text, "enter_after": enterAfter})
	s.recordURLChange(before)

	return nil
}

// Press accepts "+"-joined combinations such as "Control+a".
func (s *Session) Press(ctx context.Context, keys string) (err error) {
	const op = "Press"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("keys", keys))
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return err
	}

	before := s.page.URL()

	if err = s.page.Keyboard().Press(keys); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "press_failed",
			apperr.MetaStage:  apperr.StageInteraction,
		})
	}

	s.history.RecordAction("press", map[string]any{"keys": keys})
	s.recordURLChange(before)

	return nil
}

func (s *Session) Scroll(ctx context.Context, deltaX, deltaY int) (err error) {
	const op = "Scroll"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.Int("delta_x", deltaX), attribute.Int("delta_y", deltaY))
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return err
	}

	if err = s.page.Mouse().Wheel(float64(deltaX), float64(deltaY)); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "scroll_failed",
			apperr.MetaStage:  apperr.StageInteraction,
		})
	}

	s.history.RecordAction("scroll", map[string]any{"delta_x": deltaX, "delta_y": deltaY})

	return nil
}

func (s *Session) Screenshot(ctx context.Context) (data []byte, err error) {
	const op = "Screenshot"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return nil, err
	}

	data, err = s.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "screenshot_failed",
			apperr.MetaStage:  apperr.StageScreenshot,
		})
	}

	s.history.RecordAction("screenshot", nil)

	return data, nil
}

func (s *Session) Content(ctx context.Context) (string, error) {
	const op = "Content"

	if err := s.ensurePage(); err != nil {
		return "", err
	}

	content, err := s.page.Content()
	if err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "content_read_failed")
	}

	return content, nil
}

func (s *Session) SetContent(ctx context.Context, html string) error {
	const op = "SetContent"

	if err := s.ensurePage(); err != nil {
		return err
	}

	err := s.page.SetContent(html, playwright.PageSetContentOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "set_content_failed")
	}

	s.history.RecordNavigation(s.page.URL())

	return nil
}

func (s *Session) InputValue(ctx context.Context, selector string) (string, error) {
	const op = "InputValue"

	if err := s.ensurePage(); err != nil {
		return "", err
	}

	value, err := s.page.InputValue(selector)
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "input_value_failed",
			apperr.MetaSelector: selector,
		})
	}

	return value, nil
}

func (s *Session) ElementExists(ctx context.Context, selector string) (bool, error) {
	const op = "ElementExists"

	if err := s.ensurePage(); err != nil {
		return false, err
	}

	count, err := s.page.Locator(selector).Count()
	if err != nil {
		return false, apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "locator_count_failed",
			apperr.MetaSelector: selector,
		})
	}

	return count > 0, nil
}

func (s *Session) WaitForSelector(ctx context.Context, selector string, timeoutMs float64) error {
	const op = "WaitForSelector"

	if err := s.ensurePage(); err != nil {
		return err
	}

	opts := playwright.PageWaitForSelectorOptions{}
	if timeoutMs > 0 {
		opts.Timeout = playwright.Float(timeoutMs)
	}

	if _, err := s.page.WaitForSelector(selector, opts); err != nil {
		return apperr.Wrap(op, apperr.CodeTimeout, err, map[string]any{
			apperr.MetaReason:   "selector_wait_timeout",
			apperr.MetaSelector: selector,
		})
	}

	return nil
}

func (s *Session) Evaluate(ctx context.Context, script string) (any, error) {
	const op = "Evaluate"

	if err := s.ensurePage(); err != nil {
		return nil, err
	}

	result, err := s.page.Evaluate(script)
	if err != nil {
		return nil, apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "evaluate_failed")
	}

	return result, nil
}

func (s *Session) AddCookies(ctx context.Context, cookies []entity.Cookie) (err error) {
	const op = "AddCookies"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.Int("count", len(cookies)))
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return err
	}

	converted := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		pc := playwright.OptionalCookie{
			Name:  c.Name,
			Value: c.Value,
		}
		if c.URL != "" {
			pc.URL = playwright.String(c.URL)
		}
		if c.Domain != "" {
			pc.Domain = playwright.String(c.Domain)
		}
		if c.Path != "" {
			pc.Path = playwright.String(c.Path)
		}
		if c.Expires != 0 {
			pc.Expires = playwright.Float(c.Expires)
		}
		if c.HTTPOnly {
			pc.HttpOnly = playwright.Bool(true)
		}
		if c.Secure {
			pc.Secure = playwright.Bool(true)
		}
		converted = append(converted, pc)
	}

	if err = s.bctx.AddCookies(converted); err != nil {
		return apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "add_cookies_failed")
	}

	return nil
}

func (s *Session) ClearCookies(ctx context.Context) error {
	const op = "ClearCookies"

	if err := s.ensurePage(); err != nil {
		return err
	}

	if err := s.bctx.ClearCookies(); err != nil {
		return apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "clear_cookies_failed")
	}

	return nil
}

func (s *Session) Cookies(ctx context.Context) ([]entity.Cookie, error) {
	const op = "Cookies"

	if err := s.ensurePage(); err != nil {
		return nil, err
	}

	raw, err := s.bctx.Cookies()
	if err != nil {
		return nil, apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "read_cookies_failed")
	}

	cookies := make([]entity.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, entity.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		})
	}

	return cookies, nil
}

// recordURLChange appends a navigation record when an interaction moved the
// page to a different URL. Wiki-speedrun click counting depends on this.
func (s *Session) recordURLChange(before string) {
	after := s.page.URL()
	if after != before {
		s.history.RecordNavigation(after)
	}
}

func (s *Session) scaleToWindow(x, y float64) (float64, float64) {
	cfg := s.config.BrowserConfig
	if cfg.DisplayWidth == 0 || cfg.DisplayHeight == 0 {
		return x, y
	}

	sx := float64(cfg.WindowWidth) / float64(cfg.DisplayWidth)
	sy := float64(cfg.WindowHeight) / float64(cfg.DisplayHeight)
	if sx == 0 || sy == 0 {
		return x, y
	}

	return x * sx, y * sy
}
