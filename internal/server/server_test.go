package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"remote-browser-env/internal/config"
	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/ports"
	"remote-browser-env/internal/scenario"
	"remote-browser-env/internal/tools"
	"remote-browser-env/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	ports.BrowserSession

	ready bool
	url   string

	history entity.History
}

func (f *fakeSession) Ready() bool        { return f.ready }
func (f *fakeSession) CurrentURL() string { return f.url }

func (f *fakeSession) Acquire(ctx context.Context) error {
	f.ready = true

	return nil
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.ready = false

	return nil
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.url = url
	f.history.RecordNavigation(url)

	return nil
}

func (f *fakeSession) History() *entity.History { return &f.history }

func (f *fakeSession) Telemetry() entity.Telemetry {
	t := entity.Telemetry{Provider: "fake", Status: "not_initialized"}
	if f.ready {
		t.Status = "running"
		t.CDPURL = "wss://fake/cdp"
	}

	return t
}

func newTaskTestServer(t *testing.T, sess ports.BrowserSession) *httptest.Server {
	t.Helper()

	registry, err := scenario.NewRegistry()
	require.NoError(t, err)

	runner := scenario.NewRunner(scenario.RunnerParams{
		Registry: registry,
		Session:  sess,
		Logger:   zap.NewNop(),
	})

	toolRegistry := tools.NewRegistry(tools.Params{
		Config: &config.Config{
			BrowserConfig: &config.BrowserConfig{DefaultTimeout: 30000},
		},
		Logger:  zap.NewNop(),
		Session: sess,
	})

	ts := &TaskServer{
		runner:   runner,
		registry: toolRegistry,
		logger:   zap.NewNop(),
	}

	srv := httptest.NewServer(ts.router())
	t.Cleanup(srv.Close)

	return srv
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))

	return resp, decoded
}

func TestTaskServerListTools(t *testing.T) {
	srv := newTaskTestServer(t, &fakeSession{ready: true})

	resp, err := http.Get(srv.URL + "/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tools []tools.Tool `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Tools, 9)
}

func TestTaskServerCreateAndComplete(t *testing.T) {
	srv := newTaskTestServer(t, &fakeSession{})

	resp, task := postJSON(t, srv.URL+"/tasks",
		`{"env":{"name":"browser"},"scenario":"answer","args":{"url":"https://example.com","prompt":"q","expected":"42"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "in_progress", task["status"])
	require.NotEmpty(t, task["id"])

	resp, done := postJSON(t, fmt.Sprintf("%s/tasks/%s/complete", srv.URL, task["id"]),
		`{"answer":"42"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done", done["status"])

	result := done["result"].(map[string]any)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, 1.0, result["reward"])
}

func TestTaskServerConflictOnSecondTask(t *testing.T) {
	srv := newTaskTestServer(t, &fakeSession{})

	resp, _ := postJSON(t, srv.URL+"/tasks",
		`{"env":{"name":"browser"},"scenario":"answer","args":{"url":"https://example.com","prompt":"q"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := postJSON(t, srv.URL+"/tasks",
		`{"env":{"name":"browser"},"scenario":"answer","args":{"url":"https://example.org","prompt":"q"}}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, apperr.CodeTaskConflict, body["code"])
}

func TestTaskServerInvalidArgsStillCreates(t *testing.T) {
	srv := newTaskTestServer(t, &fakeSession{})

	resp, task := postJSON(t, srv.URL+"/tasks",
		`{"env":{"name":"browser"},"scenario":"answer","args":{"prompt":"no url"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "done", task["status"])

	result := task["result"].(map[string]any)
	assert.Equal(t, false, result["success"])
}

func TestTaskServerToolCallOnFinishedTask(t *testing.T) {
	srv := newTaskTestServer(t, &fakeSession{})

	_, task := postJSON(t, srv.URL+"/tasks",
		`{"env":{"name":"browser"},"scenario":"answer","args":{"prompt":"no url"}}`)

	resp, body := postJSON(t, fmt.Sprintf("%s/tasks/%s/tools/navigate", srv.URL, task["id"]),
		`{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "task_not_in_progress", body["reason"])
}

func TestTaskServerUnknownTask(t *testing.T) {
	srv := newTaskTestServer(t, &fakeSession{})

	resp, err := http.Get(srv.URL + "/tasks/6e4cbf10-0000-4000-8000-000000000000/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/tasks/not-a-uuid/")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestStateServerEndpoints(t *testing.T) {
	sess := &fakeSession{}
	ss := &StateServer{session: sess, logger: zap.NewNop()}

	srv := httptest.NewServer(ss.router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// CDP URL is unavailable before initialize.
	resp, err = http.Get(srv.URL + "/cdp_url")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = postJSON(t, srv.URL+"/initialize", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/cdp_url")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "wss://fake/cdp", body["cdp_url"])

	resp, _ = postJSON(t, srv.URL+"/shutdown", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, sess.ready)
}

func TestRespondErrorStatusMapping(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{apperr.CodeValidation, http.StatusBadRequest},
		{apperr.CodeNotFound, http.StatusNotFound},
		{apperr.CodeTaskConflict, http.StatusConflict},
		{apperr.CodeBrowserNotReady, http.StatusServiceUnavailable},
		{apperr.CodeConnection, http.StatusBadGateway},
		{apperr.CodeTimeout, http.StatusGatewayTimeout},
		{apperr.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, apperr.WrapErrorWithReason("op", tt.code, "some_reason"))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), "some_reason")
		})
	}
}
