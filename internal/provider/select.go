package provider

import (
	"fmt"
	"strings"

	"remote-browser-env/internal/config"
	"remote-browser-env/pkg/apperr"
)

type candidate struct {
	name   string
	envVar string
	key    func(*config.ProviderConfig) string
}

var candidates = []candidate{
	{ProviderAnchor, "ANCHOR_API_KEY", func(c *config.ProviderConfig) string { return c.AnchorAPIKey }},
	{ProviderSteel, "STEEL_API_KEY", func(c *config.ProviderConfig) string { return c.SteelAPIKey }},
	{ProviderBrowserbase, "BROWSERBASE_API_KEY", func(c *config.ProviderConfig) string { return c.BrowserbaseAPIKey }},
	{ProviderHyperbrowser, "HYPERBROWSER_API_KEY", func(c *config.ProviderConfig) string { return c.HyperbrowserAPIKey }},
	{ProviderKernel, "KERNEL_API_KEY", func(c *config.ProviderConfig) string { return c.KernelAPIKey }},
}

// Select picks the browser provider. An explicit BROWSER_PROVIDER wins and
// must name a known provider with its API key set. Without an explicit
// choice, exactly one present API key auto-selects its provider; zero or
// multiple present keys are ambiguous and fail fast.
func Select(cfg *config.ProviderConfig) (string, error) {
	const op = "provider.Select"

	if explicit := strings.ToLower(strings.TrimSpace(cfg.Name)); explicit != "" {
		for _, c := range candidates {
			if c.name != explicit {
				continue
			}

			if c.key(cfg) == "" {
				return "", apperr.Wrap(op, apperr.CodeConfiguration,
					fmt.Errorf("provider %q selected but %s is not set", explicit, c.envVar),
					map[string]any{
						apperr.MetaReason:   "missing_api_key",
						apperr.MetaProvider: explicit,
						apperr.MetaStage:    apperr.StageProvider,
					})
			}

			return c.name, nil
		}

		return "", apperr.Wrap(op, apperr.CodeConfiguration,
			fmt.Errorf("unknown provider %q", explicit),
			map[string]any{
				apperr.MetaReason:   "unknown_provider",
				apperr.MetaProvider: explicit,
				apperr.MetaStage:    apperr.StageProvider,
			})
	}

	var present []candidate
	for _, c := range candidates {
		if c.key(cfg) != "" {
			present = append(present, c)
		}
	}

	switch len(present) {
	case 1:
		return present[0].name, nil
	case 0:
		vars := make([]string, len(candidates))
		for i, c := range candidates {
			vars[i] = c.envVar
		}

		return "", apperr.Wrap(op, apperr.CodeConfiguration,
			fmt.Errorf("no provider API key set; provide one of: %s", strings.Join(vars, ", ")),
			map[string]any{
				apperr.MetaReason: "no_api_key",
				apperr.MetaStage:  apperr.StageProvider,
			})
	default:
		names := make([]string, len(present))
		for i, c := range present {
			names[i] = c.name
		}

		return "", apperr.Wrap(op, apperr.CodeConfiguration,
			fmt.Errorf("multiple provider API keys set (%s); set BROWSER_PROVIDER to choose", strings.Join(names, ", ")),
			map[string]any{
				apperr.MetaReason: "ambiguous_provider",
				apperr.MetaStage:  apperr.StageProvider,
			})
	}
}
