package fx

import (
	"context"
	"pickhelper/internal/api"
	"pickhelper/internal/config"
	"pickhelper/internal/constants"
	"pickhelper/internal/logger"
	"pickhelper/internal/roster"
	"pickhelper/internal/server"
	"pickhelper/internal/session"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideRosterCache(client *api.Client, cfg *config.Config, logger zerolog.Logger) *roster.Cache {
	return roster.NewCache(client, cfg.ExternalAPITimeout, logger)
}

func ProvideSessionRegistry(lc fx.Lifecycle, client *api.Client, cache *roster.Cache, cfg *config.Config, logger zerolog.Logger) *session.Registry {
	registry := session.NewRegistry(client, cache, cfg.ExternalAPITimeout, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			registry.Start(constants.SessionSweepInterval)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			registry.Stop()
			return nil
		},
	})
	return registry
}

func ProvidePickHelperServer(registry *session.Registry, cache *roster.Cache, client *api.Client, cfg *config.Config, logger zerolog.Logger) *server.PickHelperServer {
	return server.NewPickHelperServer(registry, cache, client, cfg.ExternalAPITimeout, logger)
}

var Module = fx.Options(
	config.Module,
	logger.Module,
	// api client
	fx.Provide(api.NewClient),
	// state
	fx.Provide(ProvideRosterCache),
	fx.Provide(ProvideSessionRegistry),
	// server
	fx.Provide(ProvidePickHelperServer),
	fx.Provide(server.NewRouter),
)
