package browser

import (
	"context"
	"fmt"
	"time"

	"remote-browser-env/pkg/apperr"
	"remote-browser-env/pkg/logg"
	"remote-browser-env/pkg/tracing"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// GridText copies the whole visible spreadsheet grid through the clipboard
// and returns it as tab-separated text. Google Sheets renders cells on a
// canvas, so select-all-and-copy is the only reliable way to read values.
func (s *Session) GridText(ctx context.Context) (text string, err error) {
	const op = "GridText"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return "", err
	}

	if err = s.bctx.GrantPermissions([]string{"clipboard-read", "clipboard-write"}); err != nil {
		logger.Warn("Clipboard permission grant failed", zap.Error(err))
	}

	// Escape drops any in-cell edit state, the click restores grid focus.
	if err = s.page.Keyboard().Press("Escape"); err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "escape_failed")
	}

	if err = s.page.Click("body"); err != nil {
		logger.Warn("Grid focus click failed", zap.Error(err))
	}

	if err = s.page.Keyboard().Press("Control+a"); err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "select_all_failed")
	}

	if err = s.page.Keyboard().Press("Control+c"); err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "copy_failed")
	}

	time.Sleep(500 * time.Millisecond)

	result, err := s.page.Evaluate(`() => navigator.clipboard.readText()`)
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "clipboard_read_failed",
			apperr.MetaStage:  apperr.StageEvaluation,
		})
	}

	text, ok := result.(string)
	if !ok {
		return "", apperr.Wrap(op, apperr.CodeActionFailed,
			fmt.Errorf("clipboard returned %T", result),
			map[string]any{apperr.MetaReason: "clipboard_not_text"})
	}

	logger.Debug("Copied grid text", zap.Int("bytes", len(text)))

	return text, nil
}

// ActivateSheetTab clicks the named sheet tab if the document has one.
// Returns false without error when the tab does not exist, so callers can
// fall back to the active sheet.
func (s *Session) ActivateSheetTab(ctx context.Context, name string) (found bool, err error) {
	const op = "ActivateSheetTab"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Sheet, name))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("sheet", name))
	defer func() {
		step.End(err)
	}()

	if err = s.ensurePage(); err != nil {
		return false, err
	}

	tab := s.page.Locator(fmt.Sprintf(`span.docs-sheet-tab-name:has-text("%s")`, name))

	count, err := tab.Count()
	if err != nil {
		return false, apperr.WrapWithReason(op, apperr.CodeActionFailed, err, "tab_lookup_failed")
	}
	if count == 0 {
		logger.Debug("Sheet tab not present")

		return false, nil
	}

	if err = tab.First().Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)}); err != nil {
		return false, apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "tab_click_failed",
			apperr.MetaSheet:  name,
		})
	}

	time.Sleep(time.Second)

	return true, nil
}
