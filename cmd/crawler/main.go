// Package main provides the bulk crawl entry point. It walks the registry's
// identifier space year by year, persisting found cases in batches, and
// serves the live run status over HTTP while the crawl is running.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/case-scanner/internal/api"
	"github.com/case-scanner/internal/config"
	"github.com/case-scanner/internal/crawler"
	"github.com/case-scanner/internal/fetch"
	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	if err := cfg.ValidateCrawl(); err != nil {
		logger.WithError(err).Fatal("Invalid crawl configuration")
	}

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	repRepo := storage.NewRepresentativeRepository(postgres)
	appRepo := storage.NewApplicationRepository(postgres, repRepo)
	loader := storage.NewBulkLoader(appRepo)

	fetcher, err := fetch.NewHTMLFetcher(&fetch.HTMLFetcherConfig{
		BaseURL:    cfg.Fetcher.BaseURL,
		Timeout:    cfg.Fetcher.Timeout,
		MaxRetries: cfg.Fetcher.MaxRetries,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create registry fetcher")
	}

	crawlerCfg := &crawler.CrawlerConfig{
		Fetcher:             fetcher,
		Loader:              loader,
		Marker:              appRepo,
		StartYear:           cfg.Crawl.StartYear,
		MaxYear:             cfg.Crawl.MaxYear,
		StartNumber:         cfg.Crawl.StartNumber,
		MaxConsecutiveSkips: cfg.Crawl.MaxConsecutiveSkips,
		BatchFlushAttempts:  cfg.Crawl.BatchFlushAttempts,
		PolitenessDelay:     cfg.Crawl.PolitenessDelay,
		Resume:              cfg.Crawl.Resume,
	}

	// The checkpoint store and observation history are best-effort
	// collaborators: the crawl runs without them when their backends are
	// down.
	if redis, err := storage.NewRedisStore(&cfg.Database.Redis); err != nil {
		logger.WithError(err).Warn("Redis unavailable, crawl will not checkpoint")
	} else {
		defer redis.Close()
		crawlerCfg.Checkpoints = storage.NewCheckpointStore(redis)
	}

	if clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse); err != nil {
		logger.WithError(err).Warn("ClickHouse unavailable, observations disabled")
	} else {
		defer clickhouse.Close()
		obsRepo, err := storage.NewObservationRepository(ctx, clickhouse)
		if err != nil {
			logger.WithError(err).Warn("Failed to prepare observation table, observations disabled")
		} else {
			crawlerCfg.Observations = storage.NewGuardedObservations(obsRepo)
		}
	}

	c, err := crawler.NewCrawler(crawlerCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create crawler")
	}

	// Serve health and run status while the crawl is in flight.
	server := api.NewServer(&api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, appRepo, storage.NewSubscriptionRepository(postgres), c.Stats())
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Status server failed")
		}
	}()

	snapshot, err := c.Run(ctx)
	if err != nil {
		logger.WithError(err).WithFields(snapshot.Fields()).Error("Crawl aborted")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Status server shutdown failed")
	}

	if ctx.Err() != nil {
		os.Exit(1)
	}
}
