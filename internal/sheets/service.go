package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"remote-browser-env/internal/config"
	"remote-browser-env/pkg/apperr"
	"remote-browser-env/pkg/logg"
	"remote-browser-env/pkg/tracing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	serviceName   = "SheetsService"
	serviceTracer = "sheets.service"

	driveUploadURL = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart&supportsAllDrives=true"
	driveFilesURL  = "https://www.googleapis.com/drive/v3/files"
	driveScope     = "https://www.googleapis.com/auth/drive"

	spreadsheetMIME = "application/vnd.google-apps.spreadsheet"
	xlsxMIME        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	tokenLifetime = time.Hour
)

// Service turns uploaded XLSX files into shared Google Sheets through the
// Drive API. Credentials are resolved lazily so instances that never run a
// sheet scenario do not need GCP configured.
type Service struct {
	config     *config.GCPConfig
	logger     *zap.Logger
	tracer     trace.Tracer
	httpClient *http.Client

	// Drive endpoints; fixed in production, swapped for a test server.
	uploadURL string
	filesURL  string

	account     *ServiceAccount
	accessToken string
	tokenExpiry time.Time
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewService(params Params) *Service {
	return &Service{
		config:     params.Config.GCPConfig,
		logger:     params.Logger.With(zap.String(logg.Layer, serviceName)),
		tracer:     otel.Tracer(serviceTracer),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		uploadURL:  driveUploadURL,
		filesURL:   driveFilesURL,
	}
}

// CreateFromXLSX validates the workbook, uploads it with conversion to the
// native spreadsheet format, opens it to anyone-with-link as writer and
// returns the editable document URL.
func (s *Service) CreateFromXLSX(ctx context.Context, data []byte, title string) (sheetURL string, err error) {
	const op = "CreateFromXLSX"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Sheet, title))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("title", title), attribute.Int("size_bytes", len(data)))
	defer func() {
		step.End(err)
	}()

	if err = validateXLSX(data); err != nil {
		return "", err
	}

	token, err := s.token(ctx)
	if err != nil {
		return "", err
	}

	step.AddEvent("uploading workbook")

	fileID, err := s.upload(ctx, token, data, title)
	if err != nil {
		return "", err
	}

	step.AddEvent("sharing spreadsheet")

	if err = s.shareWithAnyone(ctx, token, fileID); err != nil {
		return "", err
	}

	sheetURL = fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit", fileID)
	logger.Info("Created spreadsheet", zap.String(logg.URL, sheetURL))

	return sheetURL, nil
}

func validateXLSX(data []byte) error {
	const op = "validateXLSX"

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return apperr.Wrap(op, apperr.CodeValidation, err, map[string]any{
			apperr.MetaReason: "invalid_xlsx",
			apperr.MetaStage:  apperr.StageSheets,
		})
	}
	defer f.Close()

	if len(f.GetSheetList()) == 0 {
		return apperr.WrapErrorWithReason(op, apperr.CodeValidation, "workbook_has_no_sheets")
	}

	return nil
}

// token returns a cached access token or exchanges a fresh service-account
// assertion for one.
func (s *Service) token(ctx context.Context) (string, error) {
	const op = "token"

	if s.accessToken != "" && time.Now().Before(s.tokenExpiry.Add(-time.Minute)) {
		return s.accessToken, nil
	}

	if s.account == nil {
		account, err := ResolveCredentials(s.config)
		if err != nil {
			return "", err
		}
		s.account = account
	}

	assertion, err := s.signAssertion()
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.account.TokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "token_request_create_failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeConnection, err, map[string]any{
			apperr.MetaReason: "token_exchange_failed",
			apperr.MetaStage:  apperr.StageSheets,
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return "", apperr.Wrap(op, apperr.CodeConnection,
			fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(payload)),
			map[string]any{
				apperr.MetaReason: "token_exchange_rejected",
				apperr.MetaStage:  apperr.StageSheets,
			})
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeConnection, err, "token_decode_failed")
	}

	if body.AccessToken == "" {
		return "", apperr.WrapErrorWithReason(op, apperr.CodeConnection, "token_missing_in_response")
	}

	s.accessToken = body.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)

	return s.accessToken, nil
}

func (s *Service) signAssertion() (string, error) {
	const op = "signAssertion"

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.account.PrivateKey))
	if err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeConfiguration, err, "private_key_parse_failed")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   s.account.ClientEmail,
		"scope": driveScope,
		"aud":   s.account.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.account.PrivateKeyID != "" {
		token.Header["kid"] = s.account.PrivateKeyID
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "assertion_sign_failed")
	}

	return signed, nil
}

// upload performs a multipart/related upload with server-side conversion from
// XLSX to the native spreadsheet format.
func (s *Service) upload(ctx context.Context, token string, data []byte, title string) (string, error) {
	const op = "upload"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")

	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "multipart_build_failed")
	}

	meta := map[string]string{"name": title, "mimeType": spreadsheetMIME}
	if err = json.NewEncoder(metaPart).Encode(meta); err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "multipart_build_failed")
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", xlsxMIME)

	filePart, err := writer.CreatePart(fileHeader)
	if err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "multipart_build_failed")
	}

	if _, err = filePart.Write(data); err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "multipart_build_failed")
	}

	if err = writer.Close(); err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "multipart_build_failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, &buf)
	if err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeInternal, err, "upload_request_create_failed")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeConnection, err, map[string]any{
			apperr.MetaReason: "upload_failed",
			apperr.MetaStage:  apperr.StageSheets,
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return "", apperr.Wrap(op, apperr.CodeConnection,
			fmt.Errorf("drive upload returned %d: %s", resp.StatusCode, string(payload)),
			map[string]any{
				apperr.MetaReason: "upload_rejected",
				apperr.MetaStage:  apperr.StageSheets,
			})
	}

	var created struct {
		ID string `json:"id"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", apperr.WrapWithReason(op, apperr.CodeConnection, err, "upload_decode_failed")
	}

	if created.ID == "" {
		return "", apperr.WrapErrorWithReason(op, apperr.CodeConnection, "file_id_missing_in_response")
	}

	return created.ID, nil
}

// shareWithAnyone grants anyone-with-link writer access so the agent can edit
// the sheet without signing in.
func (s *Service) shareWithAnyone(ctx context.Context, token, fileID string) error {
	const op = "shareWithAnyone"

	body, err := json.Marshal(map[string]string{"role": "writer", "type": "anyone"})
	if err != nil {
		return apperr.WrapWithReason(op, apperr.CodeInternal, err, "marshal_failed")
	}

	permURL := fmt.Sprintf("%s/%s/permissions?supportsAllDrives=true", s.filesURL, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, permURL, bytes.NewReader(body))
	if err != nil {
		return apperr.WrapWithReason(op, apperr.CodeInternal, err, "permission_request_create_failed")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeConnection, err, map[string]any{
			apperr.MetaReason: "permission_request_failed",
			apperr.MetaStage:  apperr.StageSheets,
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return apperr.Wrap(op, apperr.CodeConnection,
			fmt.Errorf("permission call returned %d: %s", resp.StatusCode, string(payload)),
			map[string]any{
				apperr.MetaReason: "permission_rejected",
				apperr.MetaStage:  apperr.StageSheets,
			})
	}

	return nil
}
