package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/specviewer/pkg/api"
	"github.com/ethpandaops/specviewer/pkg/config"
	"github.com/ethpandaops/specviewer/pkg/metrics"
	"github.com/ethpandaops/specviewer/pkg/session"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServerCmd(log *logrus.Logger) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the specviewer server",
		Long:  `Start the HTTP server, the demo page and the per-tab session manager.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), log, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml",
		"Path to configuration file")

	return cmd
}

func runServer(ctx context.Context, log *logrus.Logger, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Load configuration.
	log.WithField("path", configPath).Info("Loading configuration")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log.Info("Configuration loaded:\n" + cfg.String())

	// Create store.
	st, err := newStore(log, cfg)
	if err != nil {
		return err
	}

	if err := st.Start(ctx); err != nil {
		return err
	}

	defer st.Stop()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	// Create metrics.
	m := metrics.New()
	m.SetBuildInfo(Version, GitCommit, BuildDate)

	// Sync the demo catalog from config.
	if err := api.SyncDemosFromConfig(ctx, log, st, cfg, m); err != nil {
		return err
	}

	clock := clockwork.NewRealClock()

	// Create and start the session manager.
	sessions := session.NewManager(log, cfg, m, clock)

	if err := sessions.Start(ctx); err != nil {
		return err
	}

	defer sessions.Stop()

	// Create and start API server.
	srv, err := api.NewServer(log, cfg, st, sessions, m, clock)
	if err != nil {
		return err
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}

	defer srv.Stop()

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig).Info("Received shutdown signal")
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	log.Info("Shutting down...")

	return nil
}
