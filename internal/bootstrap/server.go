package bootstrap

import (
	"context"

	"remote-browser-env/internal/ports"
	"remote-browser-env/internal/server"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// runServers brings the state server up before the task server so health
// checks answer while the environment finishes wiring, and tears the browser
// session down last.
func runServers(
	lc fx.Lifecycle,
	stateServer *server.StateServer,
	taskServer *server.TaskServer,
	session ports.BrowserSession,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting remote browser environment")

			if err := stateServer.Start(); err != nil {
				return err
			}

			return taskServer.Start()
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down remote browser environment")

			if err := taskServer.Stop(ctx); err != nil {
				logger.Error("Failed to stop task server", zap.Error(err))
			}

			if err := stateServer.Stop(ctx); err != nil {
				logger.Error("Failed to stop state server", zap.Error(err))
			}

			if err := session.Close(ctx); err != nil {
				logger.Error("Failed to close browser session", zap.Error(err))
			}

			return nil
		},
	})
}
