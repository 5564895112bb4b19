package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ahnlich/ahnlich-db/internal/config"
	"github.com/ahnlich/ahnlich-db/internal/executor"
	"github.com/ahnlich/ahnlich-db/internal/memguard"
	"github.com/ahnlich/ahnlich-db/internal/persistence"
	"github.com/ahnlich/ahnlich-db/internal/server"
	"github.com/ahnlich/ahnlich-db/internal/storehandler"
)

// shutdownRelay satisfies executor.ShutdownRequester before the Server it
// forwards to exists yet, breaking the construction cycle between the two
// (the executor needs a shutdown target, the server needs the executor).
type shutdownRelay struct {
	srv *server.Server
}

func (r *shutdownRelay) RequestShutdown(reason string) {
	if r.srv != nil {
		r.srv.RequestShutdown(reason)
	}
}

func newRunCmd() *cobra.Command {
	var (
		host                  string
		port                  int
		enablePersistence     bool
		persistLocation       string
		persistenceIntervalMS int
		maximumClients        uint64
		allocatorSize         uint64
		threadpoolSize        int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the ahnlich-db server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Host = host
			}
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("enable-persistence") {
				cfg.EnablePersistence = enablePersistence
			}
			if flags.Changed("persist-location") {
				cfg.PersistLocation = persistLocation
			}
			if flags.Changed("persistence-interval") {
				cfg.PersistenceIntervalMS = persistenceIntervalMS
			}
			if flags.Changed("maximum-clients") {
				cfg.MaximumClients = maximumClients
			}
			if flags.Changed("allocator-size") {
				cfg.AllocatorSize = allocatorSize
			}
			if flags.Changed("threadpool-size") {
				cfg.ThreadpoolSize = threadpoolSize
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return runServer(cmd.Context(), cfg)
		},
	}

	defaults := config.NewConfig()
	f := cmd.Flags()
	f.StringVar(&host, "host", defaults.Host, "address to bind the TCP listener to")
	f.IntVar(&port, "port", defaults.Port, "port to bind the TCP listener to")
	f.BoolVar(&enablePersistence, "enable-persistence", defaults.EnablePersistence, "enable periodic snapshotting to disk")
	f.StringVar(&persistLocation, "persist-location", defaults.PersistLocation, "snapshot file path")
	f.IntVar(&persistenceIntervalMS, "persistence-interval", defaults.PersistenceIntervalMS, "snapshot interval in milliseconds")
	f.Uint64Var(&maximumClients, "maximum-clients", defaults.MaximumClients, "maximum number of concurrently connected clients")
	f.Uint64Var(&allocatorSize, "allocator-size", defaults.AllocatorSize, "maximum resident record bytes before writes are rejected")
	f.IntVar(&threadpoolSize, "threadpool-size", defaults.ThreadpoolSize, "worker pool size used for building non-linear indexes")

	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	governor := memguard.New(cfg.AllocatorSize)
	handler := storehandler.New(governor, cfg.ThreadpoolSize)

	var snapshotter *persistence.Snapshotter
	if cfg.EnablePersistence {
		snapshotter = persistence.New(handler, cfg.PersistLocation, cfg.PersistenceInterval(), logger)
		loaded, err := snapshotter.LoadIfExists()
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if loaded {
			logger.Info("restored snapshot", slog.String("path", cfg.PersistLocation))
		}
	}

	clients := server.NewClientRegistry()
	relay := &shutdownRelay{}
	exec := executor.New(handler, clients, relay)

	srv := server.New(server.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		MaximumClients: cfg.MaximumClients,
	}, exec, clients, logger)
	relay.srv = srv

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if snapshotter != nil {
		snapshotter.Start(runCtx)
		defer snapshotter.Stop()
	}

	logger.Info("starting ahnlich-db",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.Bool("persistence", cfg.EnablePersistence),
		slog.Uint64("maximum_clients", cfg.MaximumClients),
	)

	if err := srv.ListenAndServe(runCtx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("ahnlich-db stopped cleanly")
	return nil
}
