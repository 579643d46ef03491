package tools

import (
	"context"
	"encoding/json"
	"testing"

	"remote-browser-env/internal/config"
	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/ports"
	"remote-browser-env/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	ports.BrowserSession

	ready   bool
	url     string
	clicked []string
	typed   []string
	filled  map[string]string
	history entity.History
}

func (f *fakeSession) Ready() bool        { return f.ready }
func (f *fakeSession) CurrentURL() string { return f.url }

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.url = url

	return nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)

	return nil
}

func (f *fakeSession) ClickAt(ctx context.Context, x, y float64) error { return nil }

func (f *fakeSession) TypeText(ctx context.Context, text string, enterAfter bool) error {
	f.typed = append(f.typed, text)

	return nil
}

func (f *fakeSession) Press(ctx context.Context, keys string) error { return nil }

func (f *fakeSession) Fill(ctx context.Context, selector, value string) error {
	if f.filled == nil {
		f.filled = map[string]string{}
	}
	f.filled[selector] = value

	return nil
}

func (f *fakeSession) Scroll(ctx context.Context, dx, dy int) error { return nil }

func (f *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png-bytes"), nil
}

func newTestRegistry(sess ports.BrowserSession) *Registry {
	return NewRegistry(Params{
		Config: &config.Config{
			BrowserConfig: &config.BrowserConfig{DefaultTimeout: 30000},
		},
		Logger:  zap.NewNop(),
		Session: sess,
	})
}

func TestListReturnsAllTools(t *testing.T) {
	registry := newTestRegistry(&fakeSession{})

	tools := registry.List()
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}

	assert.Equal(t, []string{
		"navigate", "click", "click_at", "type", "press", "fill", "scroll", "screenshot", "page_state",
	}, names)

	for _, tool := range tools {
		assert.NotEmpty(t, tool.Description, tool.Name)
		require.NotNil(t, tool.InputSchema, tool.Name)
		assert.Equal(t, "object", tool.InputSchema["type"], tool.Name)
	}
}

func TestToolSchemasAreSerializable(t *testing.T) {
	registry := newTestRegistry(&fakeSession{})

	payload, err := json.Marshal(registry.List())
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"input_schema"`)
	assert.NotContains(t, string(payload), `"handler"`)
}

func TestExecuteUnknownTool(t *testing.T) {
	registry := newTestRegistry(&fakeSession{ready: true})

	_, err := registry.Execute(context.Background(), "teleport", nil)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestExecuteRequiresReadySession(t *testing.T) {
	registry := newTestRegistry(&fakeSession{ready: false})

	_, err := registry.Execute(context.Background(), "navigate", map[string]any{"url": "https://example.com"})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeBrowserNotReady))
}

func TestExecuteNavigate(t *testing.T) {
	sess := &fakeSession{ready: true}
	registry := newTestRegistry(sess)

	result, err := registry.Execute(context.Background(), "navigate", map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", result.URL)
	assert.Equal(t, "navigated", result.Output)
}

func TestExecuteValidation(t *testing.T) {
	registry := newTestRegistry(&fakeSession{ready: true})

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"navigate without url", "navigate", nil},
		{"navigate with empty url", "navigate", map[string]any{"url": ""}},
		{"navigate with non-string url", "navigate", map[string]any{"url": 42}},
		{"click without selector", "click", map[string]any{}},
		{"click_at without coordinates", "click_at", map[string]any{"x": 10.0}},
		{"click_at with string coordinate", "click_at", map[string]any{"x": "10", "y": 20.0}},
		{"type without text", "type", map[string]any{}},
		{"type with bad enter_after", "type", map[string]any{"text": "hi", "enter_after": "yes"}},
		{"press without keys", "press", nil},
		{"fill without selector", "fill", map[string]any{"value": "x"}},
		{"scroll with bad delta", "scroll", map[string]any{"dy": []int{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Execute(context.Background(), tt.tool, tt.args)
			require.Error(t, err)
			assert.True(t, apperr.IsCode(err, apperr.CodeValidation), "expected validation error, got %v", err)
		})
	}
}

func TestExecuteScreenshotEncodesBase64(t *testing.T) {
	registry := newTestRegistry(&fakeSession{ready: true, url: "https://example.com"})

	result, err := registry.Execute(context.Background(), "screenshot", nil)
	require.NoError(t, err)
	assert.Equal(t, "cG5nLWJ5dGVz", result.Screenshot)
	assert.Equal(t, "https://example.com", result.URL)
}

func TestExecuteTypeWithEnter(t *testing.T) {
	sess := &fakeSession{ready: true}
	registry := newTestRegistry(sess)

	_, err := registry.Execute(context.Background(), "type", map[string]any{
		"text":        "hello",
		"enter_after": true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, sess.typed)
}

func TestExecuteFillAllowsEmptyValue(t *testing.T) {
	sess := &fakeSession{ready: true}
	registry := newTestRegistry(sess)

	_, err := registry.Execute(context.Background(), "fill", map[string]any{
		"selector": "#name",
		"value":    "",
	})
	require.NoError(t, err)
	assert.Equal(t, "", sess.filled["#name"])
}
