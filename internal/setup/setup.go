// Package setup holds the steps scenarios run before the agent takes over.
// Each helper works against the shared browser session and returns an error
// with a reason code on failure; scenario code converts those into failed
// evaluation results.
package setup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/ports"
	"remote-browser-env/pkg/apperr"
)

const (
	sheetOpenAttempts = 3
	sheetGridTimeout  = 15000
	maxXLSXDownload   = 32 << 20
)

func Navigate(ctx context.Context, sess ports.BrowserSession, url string) error {
	const op = "Navigate"

	if url == "" {
		return apperr.InvalidReqError(op, "url", fmt.Errorf("url is required"))
	}

	return sess.Navigate(ctx, url)
}

func SetCookies(ctx context.Context, sess ports.BrowserSession, cookies []entity.Cookie) error {
	const op = "SetCookies"

	for i, c := range cookies {
		if c.Name == "" {
			return apperr.InvalidReqError(op, fmt.Sprintf("cookies[%d].name", i),
				fmt.Errorf("cookie name is required"))
		}
		if c.URL == "" && c.Domain == "" {
			return apperr.InvalidReqError(op, fmt.Sprintf("cookies[%d]", i),
				fmt.Errorf("cookie needs a url or a domain"))
		}
	}

	return sess.AddCookies(ctx, cookies)
}

func ClearCookies(ctx context.Context, sess ports.BrowserSession) error {
	return sess.ClearCookies(ctx)
}

func LoadHTML(ctx context.Context, sess ports.BrowserSession, html string) error {
	const op = "LoadHTML"

	if html == "" {
		return apperr.InvalidReqError(op, "html", fmt.Errorf("html is required"))
	}

	return sess.SetContent(ctx, html)
}

// OpenSheet navigates to a spreadsheet and waits for the grid to render.
// Sheets occasionally serves a "Loading issue" interstitial on first load, so
// the open is retried with a reload in between.
func OpenSheet(ctx context.Context, sess ports.BrowserSession, url string) error {
	const op = "OpenSheet"

	if url == "" {
		return apperr.InvalidReqError(op, "sheet_url", fmt.Errorf("sheet_url is required"))
	}

	var lastErr error
	for attempt := 0; attempt < sheetOpenAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(2 * time.Second)
		}

		if err := sess.Navigate(ctx, url); err != nil {
			lastErr = err

			continue
		}

		if err := sess.WaitForSelector(ctx, ".grid-container", sheetGridTimeout); err != nil {
			lastErr = err

			continue
		}

		content, err := sess.Content(ctx)
		if err == nil && strings.Contains(content, "Loading issue") {
			lastErr = apperr.WrapErrorWithReason(op, apperr.CodeActionFailed, "sheet_loading_issue")

			continue
		}

		return nil
	}

	return apperr.Wrap(op, apperr.CodeActionFailed, lastErr, map[string]any{
		apperr.MetaReason: "sheet_open_failed",
		apperr.MetaStage:  apperr.StageSetup,
		apperr.MetaURL:    url,
	})
}

// FetchXLSX downloads a workbook for the sheet-from-file scenario.
func FetchXLSX(ctx context.Context, fileURL string) ([]byte, error) {
	const op = "FetchXLSX"

	if fileURL == "" {
		return nil, apperr.InvalidReqError(op, "file_url", fmt.Errorf("file_url is required"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, apperr.WrapWithReason(op, apperr.CodeValidation, err, "invalid_file_url")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeConnection, err, map[string]any{
			apperr.MetaReason: "file_download_failed",
			apperr.MetaStage:  apperr.StageSetup,
			apperr.MetaURL:    fileURL,
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperr.Wrap(op, apperr.CodeConnection,
			fmt.Errorf("file download returned %d", resp.StatusCode),
			map[string]any{
				apperr.MetaReason: "file_download_rejected",
				apperr.MetaURL:    fileURL,
			})
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxXLSXDownload))
	if err != nil {
		return nil, apperr.WrapWithReason(op, apperr.CodeConnection, err, "file_read_failed")
	}

	if len(data) == 0 {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeValidation, "file_empty")
	}

	return data, nil
}
