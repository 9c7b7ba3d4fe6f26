package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/twinplan/config"
	"github.com/kilianp07/twinplan/core/catalog"
	"github.com/kilianp07/twinplan/core/logger"
	coremetrics "github.com/kilianp07/twinplan/core/metrics"
	"github.com/kilianp07/twinplan/core/monitoring"
	"github.com/kilianp07/twinplan/core/planlog"
	"github.com/kilianp07/twinplan/core/planning"
	infracatalog "github.com/kilianp07/twinplan/infra/catalog"
	inframetrics "github.com/kilianp07/twinplan/infra/metrics"
	inframon "github.com/kilianp07/twinplan/infra/monitoring"
	"github.com/kilianp07/twinplan/internal/eventbus"
)

// Runtime is a Service wired from configuration together with the
// resources it owns.
type Runtime struct {
	Service  *Service
	Catalog  catalog.Catalog
	Sink     coremetrics.MetricsSink
	Runs     planlog.Store
	Progress *eventbus.TypedBus[planning.Progress]
}

// OpenCatalog opens the configured catalog backend. The sqlite backend
// imports the scenario file when one is configured.
func OpenCatalog(ctx context.Context, cfg config.CatalogConfig) (catalog.Catalog, error) {
	switch cfg.Backend {
	case "sqlite":
		c, err := infracatalog.NewSQLiteCatalog(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.Scenario == "" {
			return c, nil
		}
		sc, err := catalog.LoadScenario(cfg.Scenario)
		if err == nil {
			err = c.Import(ctx, sc)
		}
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	case "memory", "":
		sc, err := catalog.LoadScenario(cfg.Scenario)
		if err != nil {
			return nil, err
		}
		return catalog.NewMemory(sc)
	default:
		return nil, fmt.Errorf("unknown catalog backend %s", cfg.Backend)
	}
}

// Build wires a Service from cfg. Monitoring is initialised process wide.
func Build(ctx context.Context, cfg config.Config, log logger.Logger) (*Runtime, error) {
	log = logger.OrNop(log)
	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		log.Warnf("sentry disabled: %v", err)
	} else {
		monitoring.Init(mon)
	}

	cat, err := OpenCatalog(ctx, cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = cat.Close()
		return nil, err
	}
	runs, err := planlog.Open(cfg.Logging.StoreOptions())
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("plan log: %w", err)
	}
	bus := eventbus.NewTyped[planning.Progress]()
	inframetrics.StartProgressCollector(ctx, bus, sink)

	svc := New(cat,
		WithLogger(log),
		WithMetrics(sink),
		WithPlanLog(runs),
		WithProgress(bus),
		WithDefaults(Defaults{
			ChunkDays: cfg.Planner.ChunkDays,
			Priority:  cfg.Planner.Priority,
			Annealing: cfg.Planner.Annealing,
		}),
	)
	return &Runtime{Service: svc, Catalog: cat, Sink: sink, Runs: runs, Progress: bus}, nil
}

// Close releases the catalog, the plan log and the progress bus.
func (r *Runtime) Close() error {
	r.Progress.Close()
	return errors.Join(r.Runs.Close(), r.Catalog.Close())
}
