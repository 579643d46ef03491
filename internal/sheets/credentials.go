package sheets

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"

	"remote-browser-env/internal/config"
	"remote-browser-env/pkg/apperr"
)

const defaultTokenURI = "https://oauth2.googleapis.com/token"

// ServiceAccount mirrors the Google service-account key file.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

// ResolveCredentials picks exactly one credential source in a fixed order:
// inline JSON, base64 JSON, key file path, then the individual GCP_* fields.
// The first source present wins and the rest are ignored; a present but
// broken source is an error rather than a fallthrough.
func ResolveCredentials(cfg *config.GCPConfig) (*ServiceAccount, error) {
	const op = "ResolveCredentials"

	if cfg == nil {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeConfiguration, "gcp_config_missing")
	}

	switch {
	case cfg.CredentialsJSON != "":
		payload := []byte(cfg.CredentialsJSON)
		// Operators sometimes put base64 into the JSON variable; a JSON
		// document always starts with '{'.
		if !strings.HasPrefix(strings.TrimSpace(cfg.CredentialsJSON), "{") {
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.CredentialsJSON))
			if err != nil {
				return nil, apperr.WrapWithReason(op, apperr.CodeConfiguration, err, "credentials_json_invalid")
			}
			payload = decoded
		}

		return parseServiceAccount(payload)

	case cfg.CredentialsBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.CredentialsBase64))
		if err != nil {
			return nil, apperr.WrapWithReason(op, apperr.CodeConfiguration, err, "credentials_base64_invalid")
		}

		return parseServiceAccount(decoded)

	case cfg.CredentialsFile != "":
		payload, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, apperr.WrapWithReason(op, apperr.CodeConfiguration, err, "credentials_file_unreadable")
		}

		return parseServiceAccount(payload)

	case cfg.ClientEmail != "" || cfg.PrivateKey != "":
		sa := &ServiceAccount{
			Type:         cfg.Type,
			ProjectID:    cfg.ProjectID,
			PrivateKeyID: cfg.PrivateKeyID,
			// The env var carries literal \n sequences instead of newlines.
			PrivateKey:  strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n"),
			ClientEmail: cfg.ClientEmail,
			ClientID:    cfg.ClientID,
			AuthURI:     cfg.AuthURI,
			TokenURI:    cfg.TokenURI,
		}

		return validateServiceAccount(sa)

	default:
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeConfiguration, "gcp_credentials_missing")
	}
}

func parseServiceAccount(payload []byte) (*ServiceAccount, error) {
	const op = "parseServiceAccount"

	var sa ServiceAccount
	if err := json.Unmarshal(payload, &sa); err != nil {
		return nil, apperr.WrapWithReason(op, apperr.CodeConfiguration, err, "credentials_parse_failed")
	}

	return validateServiceAccount(&sa)
}

func validateServiceAccount(sa *ServiceAccount) (*ServiceAccount, error) {
	const op = "validateServiceAccount"

	if sa.ClientEmail == "" {
		return nil, apperr.Wrap(op, apperr.CodeConfiguration, nil, map[string]any{
			apperr.MetaReason: "client_email_missing",
			apperr.MetaField:  "client_email",
		})
	}

	if sa.PrivateKey == "" {
		return nil, apperr.Wrap(op, apperr.CodeConfiguration, nil, map[string]any{
			apperr.MetaReason: "private_key_missing",
			apperr.MetaField:  "private_key",
		})
	}

	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}

	return sa, nil
}
