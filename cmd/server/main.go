package main

import (
	"context"
	"fmt"
	"net/http"
	"pickhelper/internal/config"
	"pickhelper/internal/constants"
	fxmodules "pickhelper/internal/fx"
	"pickhelper/internal/roster"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	handler http.Handler,
	rosterCache *roster.Cache,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	cfg.Log(logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Warm the roster so the first query only waits on matchups; a
			// failure here is retried on first use.
			go func() {
				warmCtx, cancel := context.WithTimeout(context.Background(), cfg.ExternalAPITimeout)
				defer cancel()
				if _, err := rosterCache.Get(warmCtx); err != nil {
					logger.Warn().Err(err).Msg("roster warm-up failed")
				}
			}()

			go func() {
				logger.Info().Str("addr", srv.Addr).Str("api_base_url", cfg.APIBaseURL).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
