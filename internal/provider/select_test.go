package provider

import (
	"strconv"
	"strings"
	"testing"

	"remote-browser-env/internal/config"
	"remote-browser-env/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectExplicitProvider(t *testing.T) {
	cfg := &config.ProviderConfig{
		Name:         ProviderSteel,
		SteelAPIKey:  "steel-key",
		AnchorAPIKey: "anchor-key",
	}

	name, err := Select(cfg)
	require.NoError(t, err)
	assert.Equal(t, ProviderSteel, name)
}

func TestSelectExplicitProviderCaseInsensitive(t *testing.T) {
	cfg := &config.ProviderConfig{
		Name:              "Browserbase",
		BrowserbaseAPIKey: "bb-key",
	}

	name, err := Select(cfg)
	require.NoError(t, err)
	assert.Equal(t, ProviderBrowserbase, name)
}

func TestSelectExplicitProviderWithoutKey(t *testing.T) {
	cfg := &config.ProviderConfig{
		Name:         ProviderSteel,
		AnchorAPIKey: "anchor-key",
	}

	_, err := Select(cfg)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeConfiguration))
	assert.Equal(t, "missing_api_key", apperr.Reason(err))
}

func TestSelectUnknownProvider(t *testing.T) {
	cfg := &config.ProviderConfig{Name: "chromedriver"}

	_, err := Select(cfg)
	require.Error(t, err)
	assert.Equal(t, "unknown_provider", apperr.Reason(err))
}

func TestSelectSingleKeyAutoSelects(t *testing.T) {
	cfg := &config.ProviderConfig{KernelAPIKey: "kernel-key"}

	name, err := Select(cfg)
	require.NoError(t, err)
	assert.Equal(t, ProviderKernel, name)
}

func TestSelectNoKeys(t *testing.T) {
	_, err := Select(&config.ProviderConfig{})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeConfiguration))
	assert.Equal(t, "no_api_key", apperr.Reason(err))
}

func TestSelectMultipleKeysAmbiguous(t *testing.T) {
	cfg := &config.ProviderConfig{
		AnchorAPIKey: "anchor-key",
		SteelAPIKey:  "steel-key",
	}

	_, err := Select(cfg)
	require.Error(t, err)
	assert.Equal(t, "ambiguous_provider", apperr.Reason(err))
	assert.Contains(t, err.Error(), "BROWSER_PROVIDER")
}

func TestResolveProxyNone(t *testing.T) {
	for _, mode := range []string{"", ProxyNone} {
		proxy, err := ResolveProxy(&config.ProxyConfig{Provider: mode})
		require.NoError(t, err)
		assert.Nil(t, proxy)
	}
}

func TestResolveProxyDecodoFixedPort(t *testing.T) {
	cfg := &config.ProxyConfig{
		Provider:       ProxyDecodo,
		DecodoUsername: "user",
		DecodoPassword: "pass",
	}

	proxy, err := ResolveProxy(cfg)
	require.NoError(t, err)
	require.NotNil(t, proxy)
	assert.Equal(t, "gate.decodo.com:10000", proxy.Server)
	assert.Equal(t, "user", proxy.Username)
	assert.False(t, proxy.Residential)
}

func TestResolveProxyDecodoRotatingPortRange(t *testing.T) {
	cfg := &config.ProxyConfig{
		Provider:       ProxyDecodo,
		DecodoUsername: "user",
		DecodoPassword: "pass",
		DecodoRotating: true,
	}

	for i := 0; i < 50; i++ {
		proxy, err := ResolveProxy(cfg)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(proxy.Server, "gate.decodo.com:"))

		port, scanErr := strconv.Atoi(strings.TrimPrefix(proxy.Server, "gate.decodo.com:"))
		require.NoError(t, scanErr)
		assert.GreaterOrEqual(t, port, 10001)
		assert.LessOrEqual(t, port, 11000)
	}
}

func TestResolveProxyDecodoMissingCredentials(t *testing.T) {
	cfg := &config.ProxyConfig{Provider: ProxyDecodo, DecodoUsername: "user"}

	_, err := ResolveProxy(cfg)
	require.Error(t, err)
	assert.Equal(t, "missing_proxy_credentials", apperr.Reason(err))
}

func TestResolveProxyStandard(t *testing.T) {
	cfg := &config.ProxyConfig{
		Provider: ProxyStandard,
		Server:   "proxy.example.com:8080",
		Username: "u",
		Password: "p",
	}

	proxy, err := ResolveProxy(cfg)
	require.NoError(t, err)
	assert.Equal(t, "proxy.example.com:8080", proxy.Server)
	assert.Equal(t, "http://u:p@proxy.example.com:8080", proxy.URL())
}

func TestResolveProxyStandardMissingServer(t *testing.T) {
	_, err := ResolveProxy(&config.ProxyConfig{Provider: ProxyStandard})
	require.Error(t, err)
	assert.Equal(t, "missing_proxy_server", apperr.Reason(err))
}

func TestResolveProxyResidential(t *testing.T) {
	proxy, err := ResolveProxy(&config.ProxyConfig{Provider: ProxyResidential})
	require.NoError(t, err)
	assert.True(t, proxy.Residential)
	assert.Empty(t, proxy.Server)
}

func TestResolveProxyAutoPrefersDecodo(t *testing.T) {
	cfg := &config.ProxyConfig{
		Provider:       ProxyAuto,
		DecodoUsername: "user",
		DecodoPassword: "pass",
		Server:         "proxy.example.com:8080",
	}

	proxy, err := ResolveProxy(cfg)
	require.NoError(t, err)
	assert.Contains(t, proxy.Server, "gate.decodo.com")
}

func TestResolveProxyAutoFallsBackToStandard(t *testing.T) {
	cfg := &config.ProxyConfig{
		Provider: ProxyAuto,
		Server:   "proxy.example.com:8080",
	}

	proxy, err := ResolveProxy(cfg)
	require.NoError(t, err)
	assert.Equal(t, "proxy.example.com:8080", proxy.Server)
}

func TestResolveProxyAutoDefaultsToResidential(t *testing.T) {
	proxy, err := ResolveProxy(&config.ProxyConfig{Provider: ProxyAuto})
	require.NoError(t, err)
	assert.True(t, proxy.Residential)
}

func TestResolveProxyUnknownMode(t *testing.T) {
	_, err := ResolveProxy(&config.ProxyConfig{Provider: "socks5"})
	require.Error(t, err)
	assert.Equal(t, "unknown_proxy_provider", apperr.Reason(err))
}

func TestProxyURLWithoutCredentials(t *testing.T) {
	p := &ProxySettings{Server: "proxy.example.com:8080"}
	assert.Equal(t, "http://proxy.example.com:8080", p.URL())

	var nilProxy *ProxySettings
	assert.Empty(t, nilProxy.URL())
}
