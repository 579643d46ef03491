package provider

import (
	"net/http"
	"time"

	"remote-browser-env/internal/config"
	"remote-browser-env/internal/ports"
	"remote-browser-env/pkg/apperr"

	"go.uber.org/zap"
)

const (
	ProviderAnchor       = "anchorbrowser"
	ProviderSteel        = "steel"
	ProviderBrowserbase  = "browserbase"
	ProviderHyperbrowser = "hyperbrowser"
	ProviderKernel       = "kernel"

	requestTimeout = 30 * time.Second
)

// LaunchOptions is what every adapter receives: resolved proxy settings plus
// the viewport and session limits from the browser config.
type LaunchOptions struct {
	Width       int
	Height      int
	MaxDuration int
	IdleTimeout int
	Proxy       *ProxySettings
}

// New resolves the provider choice from configuration and returns a connected
// launcher. Selection must be unambiguous before any browser session is
// created; every failure here is a configuration error.
func New(cfg *config.Config, logger *zap.Logger) (ports.SessionLauncher, error) {
	const op = "provider.New"

	name, err := Select(cfg.ProviderConfig)
	if err != nil {
		return nil, err
	}

	proxy, err := ResolveProxy(cfg.ProxyConfig)
	if err != nil {
		return nil, err
	}

	opts := LaunchOptions{
		Width:       cfg.BrowserConfig.DisplayWidth,
		Height:      cfg.BrowserConfig.DisplayHeight,
		MaxDuration: cfg.BrowserConfig.MaxDuration,
		IdleTimeout: cfg.BrowserConfig.IdleTimeout,
		Proxy:       proxy,
	}

	client := &http.Client{Timeout: requestTimeout}

	switch name {
	case ProviderAnchor:
		return newAnchor(cfg.ProviderConfig, opts, client, logger)
	case ProviderSteel:
		return newSteel(cfg.ProviderConfig, opts, client, logger)
	case ProviderBrowserbase:
		return newBrowserbase(cfg.ProviderConfig, opts, client, logger)
	case ProviderHyperbrowser:
		return newHyperbrowser(cfg.ProviderConfig, opts, client, logger)
	case ProviderKernel:
		return newKernel(cfg.ProviderConfig, opts, client, logger)
	default:
		return nil, apperr.Wrap(op, apperr.CodeConfiguration, nil, map[string]any{
			apperr.MetaReason:   "unknown_provider",
			apperr.MetaProvider: name,
			apperr.MetaStage:    apperr.StageProvider,
		})
	}
}
