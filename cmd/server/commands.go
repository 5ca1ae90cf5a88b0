package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/utafrali/catalog-sync/internal/app"
	"github.com/utafrali/catalog-sync/internal/config"
	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/service"
	"github.com/utafrali/catalog-sync/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalog-sync",
		Short:         "Catalog to search index synchronization service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			_ = cmd.Help()
		},
	}
	root.AddCommand(newServeCmd(), newReindexCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and, when enabled, the notification consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("failed to load config", slog.String("error", err.Error()))
				return err
			}

			log := logger.New(cfg.ServiceName, cfg.LogLevel)
			log.Info("starting catalog sync service",
				slog.String("environment", cfg.Environment),
				slog.Int("http_port", cfg.HTTPPort),
				slog.String("catalog_source", cfg.CatalogSource),
				slog.String("search_engine", cfg.SearchEngine),
				slog.String("event_bus", cfg.EventBus),
			)

			application, err := app.NewApp(cfg, log)
			if err != nil {
				log.Error("failed to initialize application", slog.String("error", err.Error()))
				return err
			}

			// Create a context that is cancelled on SIGINT or SIGTERM.
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := application.Run(ctx); err != nil {
				log.Error("application error", slog.String("error", err.Error()))
				return err
			}

			log.Info("catalog sync service stopped")
			return nil
		},
	}
}

func newReindexCmd() *cobra.Command {
	var (
		mode  string
		limit int
		admin bool
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Run one sync and print the report as JSON",
		Long: `Run one sync with the configured collaborators and print the report to
stdout. Logs go to stderr. The exit status is non-zero when the run could not
start or when no product was delivered.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mode != "" && !domain.Mode(mode).Valid() {
				return fmt.Errorf("invalid --mode %q: want direct or event", mode)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// The consumer and HTTP server are not started by one-shot runs.
			cfg.SyncConsumerEnabled = false

			log := logger.NewWithWriter(cfg.ServiceName, cfg.LogLevel, os.Stderr)
			application, err := app.NewApp(cfg, log)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			defer func() { _ = application.Close() }()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			req := service.Request{Limit: limit}
			if admin {
				mode = string(domain.ModeDirect)
				req.Filter.Statuses = service.AdminStatuses
			}

			rep, err := application.Service().Reindex(ctx, domain.Mode(mode), req)
			if err != nil {
				return err
			}
			if err := writeReport(cmd, rep); err != nil {
				return err
			}
			if rep.Status == domain.RunFailed {
				return fmt.Errorf("%s", rep.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Delivery mode (direct or event); defaults to SYNC_DELIVERY_MODE")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum products to read; defaults to SYNC_LIMIT")
	cmd.Flags().BoolVar(&admin, "admin", false, "Reindex published and draft products with direct push")
	return cmd
}

func writeReport(cmd *cobra.Command, rep domain.SyncReport) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
