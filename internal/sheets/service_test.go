package sheets

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"remote-browser-env/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func testKeyPEM(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	block := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	}

	return string(pem.EncodeToMemory(block))
}

func noopTracer() trace.Tracer {
	return otel.Tracer("test")
}

func testXLSX(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", 15))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	return buf.Bytes()
}

func TestValidateXLSX(t *testing.T) {
	require.NoError(t, validateXLSX(testXLSX(t)))

	err := validateXLSX([]byte("not a workbook"))
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	assert.Equal(t, "invalid_xlsx", apperr.Reason(err))
}

func TestCreateFromXLSX(t *testing.T) {
	var tokenCalls, uploadCalls, permissionCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token":
			tokenCalls++
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.Form.Get("grant_type"))
			assert.NotEmpty(t, r.Form.Get("assertion"))
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "test-token",
				"expires_in":   3600,
			})
		case r.URL.Path == "/upload":
			uploadCalls++
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Contains(t, r.Header.Get("Content-Type"), "multipart/related")
			json.NewEncoder(w).Encode(map[string]string{"id": "file-123"})
		case strings.HasPrefix(r.URL.Path, "/files/file-123/permissions"):
			permissionCalls++
			var perm map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&perm))
			assert.Equal(t, "writer", perm["role"])
			assert.Equal(t, "anyone", perm["type"])
			json.NewEncoder(w).Encode(map[string]string{"id": "perm-1"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	svc := &Service{
		logger:     zap.NewNop(),
		tracer:     noopTracer(),
		httpClient: srv.Client(),
		uploadURL:  srv.URL + "/upload",
		filesURL:   srv.URL + "/files",
		account: &ServiceAccount{
			ClientEmail: "svc@proj.iam.gserviceaccount.com",
			PrivateKey:  testKeyPEM(t),
			TokenURI:    srv.URL + "/token",
		},
	}

	url, err := svc.CreateFromXLSX(context.Background(), testXLSX(t), "Worksheet")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/file-123/edit", url)
	assert.Equal(t, 1, tokenCalls)
	assert.Equal(t, 1, uploadCalls)
	assert.Equal(t, 1, permissionCalls)

	// The token is cached for the next call.
	_, err = svc.CreateFromXLSX(context.Background(), testXLSX(t), "Worksheet")
	require.NoError(t, err)
	assert.Equal(t, 1, tokenCalls)
}

func TestCreateFromXLSXRejectsBadWorkbook(t *testing.T) {
	svc := &Service{logger: zap.NewNop(), tracer: noopTracer()}

	_, err := svc.CreateFromXLSX(context.Background(), []byte("junk"), "Worksheet")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestTokenExchangeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	svc := &Service{
		logger:     zap.NewNop(),
		tracer:     noopTracer(),
		httpClient: srv.Client(),
		account: &ServiceAccount{
			ClientEmail: "svc@proj.iam.gserviceaccount.com",
			PrivateKey:  testKeyPEM(t),
			TokenURI:    srv.URL,
		},
	}

	_, err := svc.token(context.Background())
	require.Error(t, err)
	assert.Equal(t, "token_exchange_rejected", apperr.Reason(err))
}

func TestTokenCacheExpiry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "t", "expires_in": 3600})
	}))
	defer srv.Close()

	svc := &Service{
		logger:     zap.NewNop(),
		tracer:     noopTracer(),
		httpClient: srv.Client(),
		account: &ServiceAccount{
			ClientEmail: "svc@proj.iam.gserviceaccount.com",
			PrivateKey:  testKeyPEM(t),
			TokenURI:    srv.URL,
		},
	}

	_, err := svc.token(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// An expired token triggers a fresh exchange.
	svc.tokenExpiry = time.Now().Add(-time.Minute)
	_, err = svc.token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
