package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/config"
	"github.com/shaibs3/pagecache/internal/enumerator"
	"github.com/shaibs3/pagecache/internal/maintenance"
	"github.com/shaibs3/pagecache/internal/pager"
	"github.com/shaibs3/pagecache/internal/renderer"
	"github.com/shaibs3/pagecache/internal/scheduler"
	"github.com/shaibs3/pagecache/internal/store"
	"github.com/shaibs3/pagecache/internal/telemetry"
)

// Components is the orchestrator pipeline shared by the server and the CLI
type Components struct {
	Telemetry  *telemetry.Telemetry
	Store      store.DbProvider
	Enumerator *enumerator.Enumerator
	Unit       *renderer.Unit
	Scheduler  *scheduler.Scheduler
	Maintainer *maintenance.Maintainer
}

// NewComponents builds the pipeline from cfg
func NewComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	tel, err := telemetry.NewTelemetry(logger)
	if err != nil {
		return nil, err
	}

	// Use the factory to create the DB provider
	factory := store.NewDbProviderFactory(logger, tel)
	dbProvider, err := factory.CreateProvider(cfg.DBConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database provider: %w", err)
	}

	client, err := renderer.NewClient(cfg.RendererURL, cfg.RenderLocale, cfg.RenderTimeout, logger)
	if err != nil {
		_ = dbProvider.Close()
		return nil, err
	}

	reader := pager.NewReader(dbProvider, logger)
	enum := enumerator.NewEnumerator(reader, cfg.Sitemap, logger, tel.Metrics)
	unit := renderer.NewUnit(client, dbProvider, cfg.CacheTTL, logger, tel.Metrics)

	return &Components{
		Telemetry:  tel,
		Store:      dbProvider,
		Enumerator: enum,
		Unit:       unit,
		Scheduler:  scheduler.NewScheduler(enum, unit, cfg.RenderConcurrency, logger),
		Maintainer: maintenance.NewMaintainer(dbProvider, reader, maintenance.DefaultSampleSize, logger, tel.Metrics),
	}, nil
}

// Close releases the store connection
func (c *Components) Close() error {
	return c.Store.Close()
}
