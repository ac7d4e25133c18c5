package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/specviewer/pkg/config"
	"github.com/ethpandaops/specviewer/pkg/metrics"
	"github.com/ethpandaops/specviewer/pkg/store"
	"github.com/sirupsen/logrus"
)

// SyncDemosFromConfig makes the configured demos the config-sourced part of
// the catalog. Demos added through the API are left alone.
func SyncDemosFromConfig(ctx context.Context, log logrus.FieldLogger, st store.Store, cfg *config.Config, m *metrics.Metrics) error {
	log.Info("Syncing demos from configuration")

	now := time.Now()
	values := make([]string, 0, len(cfg.Demos))

	for i, demoCfg := range cfg.Demos {
		values = append(values, demoCfg.Value)

		demo := &store.Demo{
			Value:     demoCfg.Value,
			Label:     demoCfg.Label,
			Position:  i,
			InConfig:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		existing, err := st.GetDemo(ctx, demoCfg.Value)

		switch {
		case err == nil:
			demo.CreatedAt = existing.CreatedAt

			log.WithField("demo", demoCfg.Value).Debug("Updating demo")
		case errors.Is(err, store.ErrNotFound):
			log.WithField("demo", demoCfg.Value).Info("Creating demo")
		default:
			return fmt.Errorf("checking demo %s: %w", demoCfg.Value, err)
		}

		if err := st.UpsertDemo(ctx, demo); err != nil {
			return fmt.Errorf("upserting demo %s: %w", demoCfg.Value, err)
		}
	}

	removed, err := st.DeleteDemosNotIn(ctx, values)
	if err != nil {
		return fmt.Errorf("removing stale demos: %w", err)
	}

	if removed > 0 {
		log.WithField("count", removed).Info("Removed demos no longer in configuration")
	}

	demos, err := st.ListDemos(ctx)
	if err != nil {
		return fmt.Errorf("listing demos: %w", err)
	}

	m.SetDemoCount(len(demos))

	return nil
}
