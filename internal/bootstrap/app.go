package bootstrap

import (
	"time"

	"remote-browser-env/internal/browser"
	"remote-browser-env/internal/config"
	"remote-browser-env/internal/ports"
	"remote-browser-env/internal/provider"
	"remote-browser-env/internal/scenario"
	"remote-browser-env/internal/server"
	"remote-browser-env/internal/sheets"
	"remote-browser-env/internal/tools"

	"go.uber.org/fx"
)

func NewApp() *fx.App {
	return fx.New(
		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			provider.New,
			fx.Annotate(browser.NewSession, fx.As(new(ports.BrowserSession))),

			sheets.NewService,
			scenario.NewRegistry,
			scenario.NewRunner,
			tools.NewRegistry,

			server.NewStateServer,
			server.NewTaskServer,
		),

		fx.Invoke(
			runServers,
		),

		fx.StartTimeout(30*time.Second),
	)
}
