package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/core/formats"
	"github.com/JonMunkholm/flightlog/internal/importer"
	"github.com/JonMunkholm/flightlog/internal/store"
	"github.com/JonMunkholm/flightlog/internal/web"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the unattended import API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Import.FormatFile != "" {
				if _, err := formats.LoadFile(cfg.Import.FormatFile); err != nil {
					return withCode(exitUsage, err)
				}
			}

			slog.Info("configuration loaded",
				"port", cfg.Server.Port,
				"db_driver", cfg.Database.Driver,
				"db_max_conns", cfg.Database.MaxConns,
				"rate_limit", cfg.Server.RateLimit,
				"require_api_key", cfg.Security.RequireAPIKey,
			)

			db, err := store.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if migrate {
				if err := db.Migrate(ctx); err != nil {
					return err
				}
			}

			slog.Info("formats registered", "count", len(core.Formats()))

			svc := importer.NewService(db, core.NewImportLimiter(1, cfg.Upload.MaxWaitTime))
			server := web.NewServer(cfg, db, svc)

			// Graceful shutdown
			go func() {
				<-ctx.Done()
				slog.Info("shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("shutdown error", "error", err)
				}
			}()

			if err := server.Start(); err != nil {
				return err
			}
			slog.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "create missing tables before serving")
	return cmd
}
