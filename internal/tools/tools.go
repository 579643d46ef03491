// Package tools exposes the browser operations an agent may call during a
// task. The registry is static; handlers validate their arguments, act on the
// shared session and return a uniform payload.
package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"remote-browser-env/internal/ports"
	"remote-browser-env/pkg/apperr"
)

// Tool describes one callable operation and its JSON argument schema.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`

	handler func(ctx context.Context, sess ports.BrowserSession, args map[string]any) (*Result, error)
}

// Result is the payload returned for every successful tool call.
type Result struct {
	Output     string `json:"output,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
	URL        string `json:"url,omitempty"`
}

func schema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}

	return s
}

func stringArg(args map[string]any, key string, required bool) (string, error) {
	const op = "stringArg"

	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", apperr.InvalidReqError(op, key, fmt.Errorf("%s is required", key))
		}

		return "", nil
	}

	s, ok := v.(string)
	if !ok {
		return "", apperr.InvalidReqError(op, key, fmt.Errorf("%s must be a string", key))
	}

	if required && s == "" {
		return "", apperr.InvalidReqError(op, key, fmt.Errorf("%s must not be empty", key))
	}

	return s, nil
}

func numberArg(args map[string]any, key string, required bool) (float64, error) {
	const op = "numberArg"

	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return 0, apperr.InvalidReqError(op, key, fmt.Errorf("%s is required", key))
		}

		return 0, nil
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, apperr.InvalidReqError(op, key, err)
		}

		return f, nil
	default:
		return 0, apperr.InvalidReqError(op, key, fmt.Errorf("%s must be a number", key))
	}
}

func boolArg(args map[string]any, key string) (bool, error) {
	const op = "boolArg"

	v, ok := args[key]
	if !ok || v == nil {
		return false, nil
	}

	b, ok := v.(bool)
	if !ok {
		return false, apperr.InvalidReqError(op, key, fmt.Errorf("%s must be a boolean", key))
	}

	return b, nil
}

func withPage(sess ports.BrowserSession, output string) *Result {
	return &Result{Output: output, URL: sess.CurrentURL()}
}

func all() []Tool {
	return []Tool{
		{
			Name:        "navigate",
			Description: "Navigate the browser to a URL.",
			InputSchema: schema([]string{"url"}, map[string]any{
				"url": map[string]any{"type": "string"},
			}),
			handler: func(ctx context.Context, sess ports.BrowserSession, args map[string]any) (*Result, error) {
				url, err := stringArg(args, "url", true)
				if err != nil {
					return nil, err
				}
				if err := sess.Navigate(ctx, url); err != nil {
					return nil, err
				}

				return withPage(sess, "navigated"), nil
			},
		},
		{
			Name:        "click",
			Description: "Click the element matching a CSS selector.",
			InputSchema: schema([]string{"selector"}, map[string]any{
				"selector": map[string]any{"type": "string"},
			}),
			handler: func(ctx context.Context, sess ports.BrowserSession, args map[string]any) (*Result, error) {
				selector, err := stringArg(args, "selector", true)
				if err != nil {
					return nil, err
				}
				if err := sess.Click(ctx, selector); err != nil {
					return nil, err
				}

				return withPage(sess, "clicked"), nil
			},
		},
		{
			Name:        "click_at",
			Description: "Click at display coordinates; scaled to the browser window.",
			InputSchema: schema([]string{"x", "y"}, map[string]any{
				"x": map[string]any{"type": "number"},
				"y": map[string]any{"type": "number"},
			}),
			handler: func(ctx context.Context, sess ports.BrowserSession, args map[string]any) (*Result, error) {
				x, err := numberArg(args, "x", true)
				if err != nil {
					return nil, err
				}
				y, err := numberArg(args, "y", true)
				if err != nil {
					return nil, err
				}
				if err := sess.ClickAt(ctx, x, y); err != nil {
					return nil, err
				}

				return withPage(sess, "clicked"), nil
			},
		},
		{
			Name:        "type",
			Description: "Type text into the focused element, optionally pressing Enter after.",
			InputSchema: schema([]string{"text"}, map[string]any{
				"text":        map[string]any{"type": "string"},
				"enter_after": map[string]any{"type": "boolean"},
			}),
			handler: func(ctx context.Context, sess ports.BrowserSession, args map[string]any) (*Result, error) {
				text, err := stringArg(args, "text", true)
				if err != nil {
					return nil, err
				}
				enter, err := boolArg(args, "enter_after")
				if err != nil {
					return nil, err
				}
				if err := sess.TypeText(ctx, text, enter); err != nil {
					return nil, err
				}

				return withPage(sess, "typed"), nil
			},
		},
		{
			Name:        "press",
			Description: "Press a key or key combination, e.g. Enter or Control+a.",
			InputSchema: schema([]string{"keys"}, map[string]any{
				"keys": map[string]any{"type": "string"},
			}),
			handler: func(ctx context.Context, sess ports.BrowserSession, args map[string]any) (*Result, error) {
				keys, err := stringArg(args, "keys", true)
				if err != nil {
					return nil, err
				}
				if err := sess.Press(ctx, keys); err != nil {
					return nil, err
				}

				return withPage(sess, "pressed"), nil
			},
		},
		{
			Name:        "fill",
			Description: "Fill an input element with a value.",
			InputSchema: schema([]string{"selector", "value"}, map[string]any{
				"selector": map[string]any{"type": "string"},
				"value":    map[string]any{"type": "string"},
			}),
			handler: func(ctx context.Context, sess ports.BrowserSession, args map[string]any) (*Result, error) {
				selector, err := stringArg(args, "selector", true)
				if err != nil {
					return nil, err
				}
				value, err := stringArg(args, "value", false)
				if err != nil {
					return nil, err
				}
				if err := sess.Fill(ctx, selector, value); err != nil {
					return nil, err
				}

				return withPage(sess, "filled"), nil
			},
		},
		{
			Name:        "scroll",
			Description: "Scroll the page by a pixel delta.",
			InputSchema: schema(nil, map[string]any{
				"dx": map[string]any{"type": "number"},
				"dy": map[string]any{"type": "number"},
			}),
			handler: func(ctx context.Context, sess ports.BrowserSession, args map[string]any) (*Result, error) {
				dx, err := numberArg(args, "dx", false)
				if err != nil {
					return nil, err
				}
				dy, err := numberArg(args, "dy", false)
				if err != nil {
					return nil, err
				}
				if err := sess.Scroll(ctx, int(dx), int(dy)); err != nil {
					return nil, err
				}

				return withPage(sess, "scrolled"), nil
			},
		},
		{
			Name:        "screenshot",
			Description: "Capture the current page as a PNG.",
			InputSchema: schema(nil, map[string]any{}),
			handler: func(ctx context.Context, sess ports.BrowserSession, args map[string]any) (*Result, error) {
				data, err := sess.Screenshot(ctx)
				if err != nil {
					return nil, err
				}

				return &Result{
					Screenshot: base64.StdEncoding.EncodeToString(data),
					URL:        sess.CurrentURL(),
				}, nil
			},
		},
		{
			Name:        "page_state",
			Description: "Return the current URL, title and visible interactive elements.",
			InputSchema: schema(nil, map[string]any{}),
			handler: func(ctx context.Context, sess ports.BrowserSession, args map[string]any) (*Result, error) {
				state, err := sess.PageState(ctx)
				if err != nil {
					return nil, err
				}

				payload, err := json.Marshal(state)
				if err != nil {
					return nil, apperr.WrapWithReason("page_state", apperr.CodeInternal, err, "marshal_failed")
				}

				return &Result{Output: string(payload), URL: state.URL}, nil
			},
		},
	}
}
