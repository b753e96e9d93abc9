// Package app wires configuration into the collectors, the aggregator and
// the posting cycle shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/LJTian/MedNewsHub/internal/aggregator"
	"github.com/LJTian/MedNewsHub/internal/api"
	"github.com/LJTian/MedNewsHub/internal/collector"
	"github.com/LJTian/MedNewsHub/internal/config"
	"github.com/LJTian/MedNewsHub/internal/cover"
	"github.com/LJTian/MedNewsHub/internal/filter"
	"github.com/LJTian/MedNewsHub/internal/formatter"
	"github.com/LJTian/MedNewsHub/internal/pipeline"
	"github.com/LJTian/MedNewsHub/internal/poster"
	"github.com/LJTian/MedNewsHub/internal/processor"
	"github.com/LJTian/MedNewsHub/internal/scheduler"
	"github.com/LJTian/MedNewsHub/internal/storage"
)

const cycleTimeout = 10 * time.Minute

type Options struct {
	// DryRun 强制只打印帖子，不调用 webhook
	DryRun bool
	// NoArchive skips Postgres even when a DSN is configured.
	NoArchive bool
}

type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry

	Tunables    config.Tunables
	Sources     []collector.SourceSpec
	Fetchers    []collector.Fetcher
	Categorizer *aggregator.Categorizer
	Aggregator  *aggregator.NewsAggregator
	Cycle       *pipeline.Cycle
	Store       *storage.Store

	renderer *collector.ChromeRenderer
}

func New(cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tunables, err := config.LoadTunables(cfg.TunablesPath)
	if err != nil {
		return nil, err
	}
	sources, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		Tunables: tunables,
		Sources:  sources,
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := aggregator.NewMetrics(a.registry)

	var renderer collector.Renderer
	if cfg.BrowserEnabled {
		a.renderer = collector.NewChromeRenderer(cfg.FetchTimeout)
		renderer = a.renderer
	}
	a.Fetchers, err = collector.BuildFetchers(sources, collector.Options{
		Client:   &http.Client{Timeout: cfg.FetchTimeout},
		Renderer: renderer,
		Logger:   logger.Named("collector"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	engine := filter.NewEngine(tunables.EngineConfig())
	a.Categorizer, err = aggregator.NewCategorizer(engine, tunables.Ranking, logger.Named("categorizer"), metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	gatherer := aggregator.NewGatherer(tunables.Priorities, cfg.FetchTimeout, logger.Named("gather"), metrics)
	a.Aggregator = aggregator.NewNewsAggregator(a.Fetchers, gatherer, processor.NewNormalizer(), a.Categorizer, logger.Named("aggregator"))

	dryRun := opts.DryRun || cfg.DryRun()
	var p poster.Poster
	if dryRun {
		p = poster.NewLogPoster(logger.Named("poster"))
	} else {
		p = poster.NewWebhookPoster(cfg.WebhookURL, cfg.WebhookToken, &http.Client{Timeout: 30 * time.Second}, logger.Named("poster"))
	}

	// 注意：store 为 nil 时不能直接赋给接口，否则会得到非 nil 的接口值
	var archive pipeline.Archiver
	if cfg.PostgresDSN != "" && !opts.NoArchive {
		a.Store, err = storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, logger.Named("storage"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init store: %w", err)
		}
		archive = a.Store
	}

	cycleOpts := pipeline.Options{
		ImagePath: cfg.ImagePath,
		DryRun:    dryRun,
		Timeout:   cycleTimeout,
	}
	if cfg.CoverEnabled {
		cycleOpts.Cover = cover.New(cfg.CoverDir)
	}
	a.Cycle = pipeline.NewCycle(a.Aggregator, formatter.New(tunables.Formatter), p, archive, cycleOpts, logger.Named("cycle"))

	logger.Info("app ready",
		zap.Int("sources", len(a.Fetchers)),
		zap.Bool("dry_run", dryRun),
		zap.Bool("archive", archive != nil),
		zap.Bool("browser", cfg.BrowserEnabled),
	)
	return a, nil
}

// RunCycle runs one aggregate-format-post cycle in the foreground.
func (a *App) RunCycle(ctx context.Context) (*pipeline.Report, error) {
	return a.Cycle.Run(ctx)
}

func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(a.cfg.CronSpec, func(ctx context.Context) error {
		_, err := a.Cycle.Run(ctx)
		return err
	}, a.logger.Named("scheduler"))
}

// Router builds the HTTP surface: health, metrics, archive reads, classify
// and manual triggering.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// 若配置了全局访问密码，则启用 Basic Auth 保护（免认证路径见 APP_BASIC_EXEMPT）
	if a.cfg.BasicAuthUser != "" && a.cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(api.AuthConfig{
			User:   a.cfg.BasicAuthUser,
			Pass:   a.cfg.BasicAuthPass,
			Exempt: a.cfg.BasicAuthExempt,
		}))
	}

	deps := api.Deps{
		Categorizer: a.Categorizer,
		Priorities:  a.Tunables.Priorities,
		Runner:      a.Cycle,
		Gatherer:    a.registry,
		Logger:      a.logger.Named("api"),
	}
	if a.Store != nil {
		deps.Store = a.Store
	}
	api.NewServer(deps).RegisterRoutes(r)
	return r
}

func (a *App) Registry() *prometheus.Registry { return a.registry }

// Close releases the headless browser and database connections.
func (a *App) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.Store == nil {
		return
	}
	if sqlDB, err := a.Store.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if a.Store.Redis != nil {
		_ = a.Store.Redis.Close()
	}
}
