package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/s1natex/todos-api-GO/internal/config"
	"github.com/s1natex/todos-api-GO/internal/maintenance"
	"github.com/s1natex/todos-api-GO/internal/telemetry"
	"github.com/s1natex/todos-api-GO/internal/todos"
)

const envFile = ".env"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "todos",
		Short:         "Single-user todo list API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			Args:  cobra.NoArgs,
			RunE:  withEnv(runServe),
		},
		&cobra.Command{
			Use:   "maintenance",
			Short: "Run the maintenance routine once and exit",
			Args:  cobra.NoArgs,
			RunE:  withEnv(runMaintenance),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or upgrade the todos table",
			Args:  cobra.NoArgs,
			RunE:  withEnv(runMigrate),
		},
	)
	// Running the binary with no subcommand serves, as the container expects.
	root.RunE = withEnv(runServe)
	return root
}

// env is what every subcommand starts from.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	store  *todos.Store
}

// withEnv loads config, builds the logger and opens a migrated store
// before handing off to run.
func withEnv(run func(ctx context.Context, e env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(envFile, cmd.Flags())
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			return err
		}
		logger := newLogger(os.Stdout, cfg.LogLevel)
		slog.SetDefault(logger) // for third-party packages that use slog

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := todos.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("store_open_failed", slog.String("error", err.Error()))
			return err
		}
		defer store.Close()

		if err := store.ApplyMigrations(ctx); err != nil {
			logger.Error("migrate_failed", slog.String("error", err.Error()))
			return err
		}

		err = run(ctx, env{cfg: cfg, logger: logger, store: store})
		if err != nil {
			logger.Error("command_failed", slog.String("command", cmd.Name()), slog.String("error", err.Error()))
		}
		return err
	}
}

func runMigrate(_ context.Context, e env) error {
	e.logger.Info("migrate_done", slog.String("dialect", e.store.Dialect()))
	return nil
}

func runMaintenance(ctx context.Context, e env) error {
	runner := maintenance.NewRunner(e.store, e.logger)
	_, err := runner.Run(ctx)
	return err
}

func runServe(ctx context.Context, e env) error {
	shutdownTracing, err := telemetry.SetupTracing(ctx, e.cfg.TracingExporter, e.cfg.ServiceName, os.Stdout)
	if err != nil {
		return err
	}

	runner := maintenance.NewRunner(e.store, e.logger, maintenance.WithRegisterer(prometheus.DefaultRegisterer))
	srv := &http.Server{
		Addr:    e.cfg.Addr,
		Handler: newRouter(e.cfg, e.store, runner, e.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("server_listen",
			slog.String("addr", e.cfg.Addr),
			slog.String("dialect", e.store.Dialect()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		_ = shutdownTracing(context.Background())
		return err
	case <-ctx.Done():
	}

	e.logger.Info("server_shutdown", slog.Duration("timeout", e.cfg.ShutdownTimeout))
	sctx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()

	err = srv.Shutdown(sctx)
	if terr := shutdownTracing(sctx); terr != nil {
		e.logger.Warn("tracing_shutdown_failed", slog.String("error", terr.Error()))
	}
	return err
}
