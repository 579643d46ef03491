package provider

import (
	"fmt"
	"math/rand"

	"remote-browser-env/internal/config"
	"remote-browser-env/pkg/apperr"
)

const (
	ProxyAuto        = "auto"
	ProxyDecodo      = "decodo"
	ProxyStandard    = "standard"
	ProxyResidential = "residential"
	ProxyNone        = "none"

	decodoHost         = "gate.decodo.com"
	decodoFixedPort    = 10000
	decodoTrialPortLow = 10001
	decodoTrialPortTop = 11000
)

// ProxySettings is the resolved proxy configuration handed to the provider's
// connection call. A nil *ProxySettings means no proxy at all.
type ProxySettings struct {
	Server   string
	Username string
	Password string

	// Residential asks the vendor to route through its own residential
	// pool instead of an external server.
	Residential bool
}

// URL renders the settings as a user:pass@host proxy URL for vendors that
// take a single string.
func (p *ProxySettings) URL() string {
	if p == nil || p.Server == "" {
		return ""
	}

	if p.Username != "" {
		return fmt.Sprintf("http://%s:%s@%s", p.Username, p.Password, p.Server)
	}

	return "http://" + p.Server
}

// ResolveProxy resolves PROXY_PROVIDER independently of the browser provider
// choice. decodo requires credentials and supports a rotating-port mode:
// fixed port 10000 normally, a random port from the 10001-11000 trial range
// per session when rotating.
func ResolveProxy(cfg *config.ProxyConfig) (*ProxySettings, error) {
	const op = "provider.ResolveProxy"

	switch cfg.Provider {
	case ProxyNone, "":
		return nil, nil

	case ProxyDecodo:
		return resolveDecodo(cfg)

	case ProxyStandard:
		return resolveStandard(cfg)

	case ProxyResidential:
		return &ProxySettings{Residential: true}, nil

	case ProxyAuto:
		if cfg.DecodoUsername != "" && cfg.DecodoPassword != "" {
			return resolveDecodo(cfg)
		}

		if cfg.Server != "" {
			return resolveStandard(cfg)
		}

		return &ProxySettings{Residential: true}, nil

	default:
		return nil, apperr.Wrap(op, apperr.CodeConfiguration,
			fmt.Errorf("unknown proxy provider %q", cfg.Provider),
			map[string]any{
				apperr.MetaReason: "unknown_proxy_provider",
				apperr.MetaStage:  apperr.StageProxy,
			})
	}
}

func resolveDecodo(cfg *config.ProxyConfig) (*ProxySettings, error) {
	const op = "provider.resolveDecodo"

	if cfg.DecodoUsername == "" || cfg.DecodoPassword == "" {
		return nil, apperr.Wrap(op, apperr.CodeConfiguration,
			fmt.Errorf("decodo proxy requires DECODO_USERNAME and DECODO_PASSWORD"),
			map[string]any{
				apperr.MetaReason: "missing_proxy_credentials",
				apperr.MetaStage:  apperr.StageProxy,
			})
	}

	port := decodoFixedPort
	if cfg.DecodoRotating {
		port = decodoTrialPortLow + rand.Intn(decodoTrialPortTop-decodoTrialPortLow+1)
	}

	return &ProxySettings{
		Server:   fmt.Sprintf("%s:%d", decodoHost, port),
		Username: cfg.DecodoUsername,
		Password: cfg.DecodoPassword,
	}, nil
}

func resolveStandard(cfg *config.ProxyConfig) (*ProxySettings, error) {
	const op = "provider.resolveStandard"

	if cfg.Server == "" {
		return nil, apperr.Wrap(op, apperr.CodeConfiguration,
			fmt.Errorf("standard proxy requires PROXY_SERVER"),
			map[string]any{
				apperr.MetaReason: "missing_proxy_server",
				apperr.MetaStage:  apperr.StageProxy,
			})
	}

	return &ProxySettings{
		Server:   cfg.Server,
		Username: cfg.Username,
		Password: cfg.Password,
	}, nil
}
