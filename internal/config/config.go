package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig      *AppConfig
	ProviderConfig *ProviderConfig
	ProxyConfig    *ProxyConfig
	GCPConfig      *GCPConfig
	BrowserConfig  *BrowserConfig
	ServerConfig   *ServerConfig
}

type AppConfig struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type ProviderConfig struct {
	Name string `envconfig:"BROWSER_PROVIDER"`

	AnchorAPIKey  string `envconfig:"ANCHOR_API_KEY"`
	AnchorBaseURL string `envconfig:"ANCHOR_BASE_URL" default:"https://api.anchorbrowser.io"`

	SteelAPIKey  string `envconfig:"STEEL_API_KEY"`
	SteelBaseURL string `envconfig:"STEEL_BASE_URL" default:"https://api.steel.dev"`

	BrowserbaseAPIKey    string `envconfig:"BROWSERBASE_API_KEY"`
	BrowserbaseProjectID string `envconfig:"BROWSERBASE_PROJECT_ID"`
	BrowserbaseBaseURL   string `envconfig:"BROWSERBASE_BASE_URL" default:"https://api.browserbase.com"`

	HyperbrowserAPIKey  string `envconfig:"HYPERBROWSER_API_KEY"`
	HyperbrowserBaseURL string `envconfig:"HYPERBROWSER_BASE_URL" default:"https://api.hyperbrowser.ai"`

	KernelAPIKey  string `envconfig:"KERNEL_API_KEY"`
	KernelBaseURL string `envconfig:"KERNEL_BASE_URL" default:"https://api.onkernel.com"`
}

type ProxyConfig struct {
	Provider string `envconfig:"PROXY_PROVIDER" default:"none"`

	DecodoUsername string `envconfig:"DECODO_USERNAME"`
	DecodoPassword string `envconfig:"DECODO_PASSWORD"`
	DecodoRotating bool   `envconfig:"DECODO_ROTATING" default:"false"`

	Server   string `envconfig:"PROXY_SERVER"`
	Username string `envconfig:"PROXY_USERNAME"`
	Password string `envconfig:"PROXY_PASSWORD"`
}

// GCPConfig carries service-account credentials for the Drive conversion used
// by the sheet scenarios. The four input methods are resolved by
// sheets.ResolveCredentials; first one present wins, no merging.
type GCPConfig struct {
	CredentialsJSON   string `envconfig:"GCP_CREDENTIALS_JSON"`
	CredentialsBase64 string `envconfig:"GCP_CREDENTIALS_BASE64"`
	CredentialsFile   string `envconfig:"GCP_CREDENTIALS_FILE"`

	Type                    string `envconfig:"GCP_TYPE"`
	ProjectID               string `envconfig:"GCP_PROJECT_ID"`
	PrivateKeyID            string `envconfig:"GCP_PRIVATE_KEY_ID"`
	PrivateKey              string `envconfig:"GCP_PRIVATE_KEY"`
	ClientEmail             string `envconfig:"GCP_CLIENT_EMAIL"`
	ClientID                string `envconfig:"GCP_CLIENT_ID"`
	AuthURI                 string `envconfig:"GCP_AUTH_URI"`
	TokenURI                string `envconfig:"GCP_TOKEN_URI"`
	AuthProviderX509CertURL string `envconfig:"GCP_AUTH_PROVIDER_X509_CERT_URL"`
	ClientX509CertURL       string `envconfig:"GCP_CLIENT_X509_CERT_URL"`
	UniverseDomain          string `envconfig:"GCP_UNIVERSE_DOMAIN" default:"googleapis.com"`
}

type BrowserConfig struct {
	Headless       bool   `envconfig:"HEADLESS" default:"true"`
	DefaultTimeout int    `envconfig:"DEFAULT_TIMEOUT" default:"30000"`
	WindowWidth    int    `envconfig:"WINDOW_WIDTH" default:"1280"`
	WindowHeight   int    `envconfig:"WINDOW_HEIGHT" default:"720"`
	DisplayWidth   int    `envconfig:"DISPLAY_WIDTH" default:"1280"`
	DisplayHeight  int    `envconfig:"DISPLAY_HEIGHT" default:"720"`
	InitialURL     string `envconfig:"BROWSER_URL"`
	MaxDuration    int    `envconfig:"BROWSER_MAX_DURATION"`
	IdleTimeout    int    `envconfig:"BROWSER_IDLE_TIMEOUT"`
}

type ServerConfig struct {
	StatePort int `envconfig:"STATE_PORT" default:"8000"`
	TaskPort  int `envconfig:"TASK_PORT" default:"8080"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	return &conf, nil
}
