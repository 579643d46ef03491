package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"remote-browser-env/pkg/apperr"
)

// restClient is the minimal JSON-over-HTTP client shared by the vendor
// adapters that only differ in auth headers.
type restClient struct {
	httpClient *http.Client
	headers    map[string]string
	provider   string
}

func (c *restClient) doJSON(ctx context.Context, method, url string, body, out any) error {
	const op = "doJSON"

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperr.WrapWithReason(op, apperr.CodeInternal, err, "marshal_failed")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return apperr.WrapWithReason(op, apperr.CodeInternal, err, "request_create_failed")
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeConnection, err, map[string]any{
			apperr.MetaReason:   "request_failed",
			apperr.MetaProvider: c.provider,
			apperr.MetaURL:      url,
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperr.WrapErrorWithReason(op, apperr.CodeNotFound, "session_not_found")
	}

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return apperr.Wrap(op, apperr.CodeConnection,
			fmt.Errorf("%s returned %d: %s", c.provider, resp.StatusCode, string(payload)),
			map[string]any{
				apperr.MetaReason:   "api_error",
				apperr.MetaProvider: c.provider,
			})
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.WrapWithReason(op, apperr.CodeConnection, err, "decode_failed")
	}

	return nil
}
