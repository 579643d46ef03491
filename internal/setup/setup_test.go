package setup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"remote-browser-env/internal/entity"
	"remote-browser-env/internal/ports"
	"remote-browser-env/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	ports.BrowserSession

	navigated   []string
	content     string
	waitErr     error
	contentSeen int
	cookies     []entity.Cookie
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.navigated = append(f.navigated, url)

	return nil
}

func (f *fakeSession) WaitForSelector(ctx context.Context, selector string, timeoutMs float64) error {
	return f.waitErr
}

func (f *fakeSession) Content(ctx context.Context) (string, error) {
	f.contentSeen++

	return f.content, nil
}

func (f *fakeSession) AddCookies(ctx context.Context, cookies []entity.Cookie) error {
	f.cookies = append(f.cookies, cookies...)

	return nil
}

func TestNavigateRequiresURL(t *testing.T) {
	err := Navigate(context.Background(), &fakeSession{}, "")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestSetCookiesValidation(t *testing.T) {
	sess := &fakeSession{}

	err := SetCookies(context.Background(), sess, []entity.Cookie{{Value: "v", Domain: "example.com"}})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	err = SetCookies(context.Background(), sess, []entity.Cookie{{Name: "session", Value: "v"}})
	require.Error(t, err, "cookie without url or domain")

	err = SetCookies(context.Background(), sess, []entity.Cookie{{Name: "session", Value: "v", Domain: "example.com"}})
	require.NoError(t, err)
	assert.Len(t, sess.cookies, 1)
}

func TestOpenSheetSucceeds(t *testing.T) {
	sess := &fakeSession{content: "<div class=\"grid-container\"></div>"}

	err := OpenSheet(context.Background(), sess, "https://docs.google.com/spreadsheets/d/abc/edit")
	require.NoError(t, err)
	assert.Len(t, sess.navigated, 1)
}

func TestOpenSheetRetriesOnLoadingIssue(t *testing.T) {
	sess := &fakeSession{content: "Loading issue - please reload"}

	err := OpenSheet(context.Background(), sess, "https://docs.google.com/spreadsheets/d/abc/edit")
	require.Error(t, err)
	assert.Equal(t, "sheet_open_failed", apperr.Reason(err))
	assert.Len(t, sess.navigated, sheetOpenAttempts)
}

func TestOpenSheetRequiresURL(t *testing.T) {
	err := OpenSheet(context.Background(), &fakeSession{}, "")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestFetchXLSX(t *testing.T) {
	payload := []byte("workbook-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	data, err := FetchXLSX(context.Background(), srv.URL+"/file.xlsx")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFetchXLSXErrors(t *testing.T) {
	_, err := FetchXLSX(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err = FetchXLSX(context.Background(), srv.URL+"/missing.xlsx")
	require.Error(t, err)
	assert.Equal(t, "file_download_rejected", apperr.Reason(err))

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer empty.Close()

	_, err = FetchXLSX(context.Background(), empty.URL+"/empty.xlsx")
	require.Error(t, err)
	assert.Equal(t, "file_empty", apperr.Reason(err))
}
