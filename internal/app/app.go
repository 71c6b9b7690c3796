// Package app initializes and holds the long-lived services of the
// monitoring daemon, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/PrabhuV2003/Website-Monitoring/internal/baseline/file"
	baselinememory "github.com/PrabhuV2003/Website-Monitoring/internal/baseline/memory"
	baselinepostgres "github.com/PrabhuV2003/Website-Monitoring/internal/baseline/postgres"
	"github.com/PrabhuV2003/Website-Monitoring/internal/clock/system"
	"github.com/PrabhuV2003/Website-Monitoring/internal/config"
	"github.com/PrabhuV2003/Website-Monitoring/internal/crawler"
	collyfetcher "github.com/PrabhuV2003/Website-Monitoring/internal/fetcher/colly"
	"github.com/PrabhuV2003/Website-Monitoring/internal/fetcher/headless"
	"github.com/PrabhuV2003/Website-Monitoring/internal/fingerprint"
	"github.com/PrabhuV2003/Website-Monitoring/internal/hash/sha256"
	"github.com/PrabhuV2003/Website-Monitoring/internal/id/uuid"
	"github.com/PrabhuV2003/Website-Monitoring/internal/integrity"
	"github.com/PrabhuV2003/Website-Monitoring/internal/logging"
	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
	publishermemory "github.com/PrabhuV2003/Website-Monitoring/internal/publisher/memory"
	publisherpubsub "github.com/PrabhuV2003/Website-Monitoring/internal/publisher/pubsub"
	"github.com/PrabhuV2003/Website-Monitoring/internal/report"
	"github.com/PrabhuV2003/Website-Monitoring/internal/snapshot/gcs"
	snapshotlocal "github.com/PrabhuV2003/Website-Monitoring/internal/snapshot/local"
	snapshotmemory "github.com/PrabhuV2003/Website-Monitoring/internal/snapshot/memory"
	"github.com/PrabhuV2003/Website-Monitoring/internal/sslcheck"
)

const reportTopic = "run-reports"

// App holds the shared, long-lived services of the daemon. It is initialized
// once at startup and fails fast if any critical service cannot be built.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	fetcher   monitor.Fetcher
	baselines monitor.BaselineStore
	snapshots monitor.SnapshotStore
	publisher monitor.Publisher
	tracker   monitor.ContentTracker
	clock     monitor.Clock
	ids       monitor.IDGenerator
	sslck     *sslcheck.Checker
	reports   *report.Cache
	runsDone  atomic.Int64
	closers   []func()
}

// New builds the App from configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:     cfg,
		logger:  logger,
		clock:   system.New(),
		ids:     uuid.NewGenerator(),
		reports: report.NewCache(),
	}

	if err := a.initFetcher(); err != nil {
		return nil, err
	}
	if err := a.initBaselines(ctx); err != nil {
		return nil, err
	}
	if err := a.initSnapshots(ctx); err != nil {
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		return nil, err
	}
	a.tracker = integrity.New(a.baselines, a.clock, logger)
	if cfg.SSL.Enabled {
		a.sslck = sslcheck.New(cfg.FetchTimeout(), nil, a.clock)
	}
	return a, nil
}

func (a *App) initFetcher() error {
	if a.cfg.Headless.Enabled {
		f, err := headless.NewChromedp(headless.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			UserAgent:         a.cfg.HTTP.UserAgent,
			NavigationTimeout: a.cfg.FetchTimeout(),
		})
		if err != nil {
			return fmt.Errorf("init headless fetcher: %w", err)
		}
		a.logger.Info("using headless fetcher", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
		a.fetcher = f
		a.closers = append(a.closers, f.Close)
		return nil
	}
	a.fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:    a.cfg.HTTP.UserAgent,
		Timeout:      a.cfg.FetchTimeout(),
		MaxRedirects: a.cfg.HTTP.MaxRedirects,
		MaxBodyBytes: a.cfg.HTTP.MaxBodyBytes,
		RetryBackoff: a.cfg.RetryBackoff(),
	})
	return nil
}

func (a *App) initBaselines(ctx context.Context) error {
	switch a.cfg.Baseline.Provider {
	case "memory":
		a.logger.Info("using in-memory baseline store, drift state will not survive restarts")
		a.baselines = baselinememory.New()
	case "file":
		store, err := file.New(a.cfg.Baseline.Dir)
		if err != nil {
			return fmt.Errorf("init file baseline store: %w", err)
		}
		a.logger.Info("using file baseline store", zap.String("dir", a.cfg.Baseline.Dir))
		a.baselines = store
	case "postgres":
		store, err := baselinepostgres.New(ctx, baselinepostgres.Config{
			DSN:   a.cfg.Baseline.DSN,
			Table: a.cfg.Baseline.Table,
		})
		if err != nil {
			return fmt.Errorf("init postgres baseline store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure baseline schema: %w", err)
		}
		a.logger.Info("using postgres baseline store", zap.String("table", a.cfg.Baseline.Table))
		a.baselines = store
		a.closers = append(a.closers, store.Close)
	default:
		return fmt.Errorf("unknown baseline provider %q", a.cfg.Baseline.Provider)
	}
	return nil
}

func (a *App) initSnapshots(ctx context.Context) error {
	switch a.cfg.Snapshot.Provider {
	case "none":
		a.logger.Info("drift snapshots disabled")
	case "memory":
		a.snapshots = snapshotmemory.New()
	case "local":
		store, err := snapshotlocal.New(snapshotlocal.Config{BaseDir: a.cfg.Snapshot.BaseDir})
		if err != nil {
			return fmt.Errorf("init local snapshot store: %w", err)
		}
		a.logger.Info("using local snapshot store", zap.String("dir", a.cfg.Snapshot.BaseDir))
		a.snapshots = store
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Snapshot.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs snapshot store: %w", err)
		}
		a.logger.Info("using gcs snapshot store", zap.String("bucket", a.cfg.Snapshot.GCSBucket))
		a.snapshots = store
		a.closers = append(a.closers, func() { _ = client.Close() })
	default:
		return fmt.Errorf("unknown snapshot provider %q", a.cfg.Snapshot.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.TopicName == "" {
		a.logger.Info("pubsub not configured, run reports stay local")
		a.publisher = publishermemory.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	pub, err := publisherpubsub.New(client)
	if err != nil {
		return fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.logger.Info("publishing run reports", zap.String("topic", a.cfg.PubSub.TopicName))
	a.publisher = pub
	a.closers = append(a.closers, func() { _ = client.Close() })
	return nil
}

// Reports exposes the latest run report cache for the HTTP API.
func (a *App) Reports() *report.Cache {
	return a.reports
}

// Ready reports whether at least one full monitoring pass has completed.
func (a *App) Ready() bool {
	return a.runsDone.Load() > 0
}

// RunAll checks every configured site once, sequentially. Site failures are
// logged and skipped so one broken config cannot starve the rest.
func (a *App) RunAll(ctx context.Context) {
	for _, site := range a.cfg.Sites {
		if ctx.Err() != nil {
			return
		}
		if err := a.runSite(ctx, site); err != nil {
			a.logger.Error("site check failed", zap.String("site", site.ID), zap.Error(err))
		}
	}
	a.runsDone.Add(1)
}

func (a *App) runSite(ctx context.Context, site config.SiteConfig) error {
	runCfg, err := site.RunConfig(a.cfg.Crawler)
	if err != nil {
		return fmt.Errorf("site config: %w", err)
	}
	logger := logging.ForSite(a.logger, site.ID)

	engine, err := crawler.New(runCfg, crawler.Options{
		Fetcher:       a.fetcher,
		Fingerprinter: fingerprint.New(site.ExcludeSelectors, sha256.New(), a.clock),
		Tracker:       a.tracker,
		Snapshots:     a.snapshots,
		Clock:         a.clock,
		IDs:           a.ids,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	rep, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("run engine: %w", err)
	}
	if a.sslck != nil {
		rep = report.Merge(rep, a.sslck.Check(ctx, site.Origin)...)
	}

	logger.Info("run complete",
		zap.String("run_id", rep.Summary.RunID),
		zap.Int("pages_visited", rep.Summary.PagesVisited),
		zap.Int("links_checked", rep.Summary.LinksChecked),
		zap.Int("incomplete", rep.Summary.Incomplete),
		zap.Int("findings", len(rep.Findings)),
		zap.Float64("uptime_percent", rep.Summary.UptimePercent),
	)

	a.reports.Set(rep)
	topic := a.cfg.PubSub.TopicName
	if topic == "" {
		topic = reportTopic
	}
	if _, err := a.publisher.Publish(ctx, topic, rep); err != nil {
		logger.Warn("report publish failed", zap.Error(err))
	}
	return nil
}

// Close releases pooled connections and external clients.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
