// Package main provides the subscription re-check entry point. It runs the
// weekly pass over all active subscriptions either once or on an interval.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/case-scanner/internal/config"
	"github.com/case-scanner/internal/crawler"
	"github.com/case-scanner/internal/fetch"
	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/storage"
)

func main() {
	var (
		once     = flag.Bool("once", false, "Run a single re-check pass and exit")
		interval = flag.Duration("interval", 7*24*time.Hour, "Delay between re-check passes")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	if cfg.Fetcher.BaseURL == "" {
		logger.Fatal("REGISTRY_BASE_URL is required")
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
	subRepo := storage.NewSubscriptionRepository(postgres)

	fetcher, err := fetch.NewHTMLFetcher(&fetch.HTMLFetcherConfig{
		BaseURL:    cfg.Fetcher.BaseURL,
		Timeout:    cfg.Fetcher.Timeout,
		MaxRetries: cfg.Fetcher.MaxRetries,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create registry fetcher")
	}

	weeklyCfg := &crawler.WeeklyConfig{
		Fetcher:         fetcher,
		Subscriptions:   subRepo,
		Applications:    appRepo,
		PolitenessDelay: cfg.Weekly.PolitenessDelay,
	}

	if clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse); err != nil {
		logger.WithError(err).Warn("ClickHouse unavailable, observations disabled")
	} else {
		defer clickhouse.Close()
		obsRepo, err := storage.NewObservationRepository(ctx, clickhouse)
		if err != nil {
			logger.WithError(err).Warn("Failed to prepare observation table, observations disabled")
		} else {
			weeklyCfg.Observations = storage.NewGuardedObservations(obsRepo)
		}
	}

	weekly, err := crawler.NewWeekly(weeklyCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create weekly re-checker")
	}

	for {
		if _, err := weekly.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Error("Re-check pass failed")
		}
		if *once {
			return
		}

		logger.WithField("interval", interval.String()).Info("Waiting for next re-check pass")
		select {
		case <-ctx.Done():
			return
		case <-time.After(*interval):
		}
	}
}
