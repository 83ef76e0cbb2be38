// Analyzer binary: enriches scraped token snapshots with model-based
// memecoin scores. A fast resync schedule keeps market fields current
// between the heavyweight scoring passes.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Spydiecy/Sniffle-Power/config"
	"github.com/Spydiecy/Sniffle-Power/services"
	"github.com/Spydiecy/Sniffle-Power/storage"
	"github.com/Spydiecy/Sniffle-Power/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger("analyzer")

	if cfg.ModelAPIKey == "" {
		logger.Error("IOINTEL_API_KEY is not set")
		os.Exit(1)
	}

	logger.Info("starting: model=%s delay=%v freshness=%v normalizer=%s",
		cfg.ModelName, cfg.ModelCallDelay, cfg.FreshnessWindow, cfg.RiskNormalizer)

	snapshots := storage.NewSnapshotStore(cfg.SnapshotPath)
	bundles := storage.NewBundleStore(cfg.TweetsPath)
	store := storage.NewAnalysisStore(cfg.AnalysisPath)

	model := services.NewModelClient(cfg, logger)
	normalizer := services.NewNormalizer(cfg.RiskNormalizer, rand.New(rand.NewSource(time.Now().UnixNano())))
	analyzer := services.NewAnalyzer(cfg, logger, snapshots, bundles, store, model, normalizer)

	if cfg.PostgresDSN != "" {
		pg, err := storage.NewPostgresWriter(cfg.PostgresDSN)
		if err != nil {
			logger.Warn("postgres mirror disabled: %v", err)
		} else {
			analyzer.AddMirror(pg)
			defer pg.Close()
			logger.Info("postgres mirror enabled")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runAnalysis := func() {
		if err := analyzer.Run(ctx); err != nil {
			switch {
			case errors.Is(err, services.ErrRateLimited):
				logger.Warn("analysis pass stopped by rate limiting, progress persisted")
			case errors.Is(err, context.Canceled):
			default:
				logger.Error("analysis pass failed: %v", err)
			}
		}
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(every(cfg.ResyncEvery), analyzer.Resync); err != nil {
		logger.Error("resync schedule: %v", err)
		os.Exit(1)
	}
	if _, err := scheduler.AddFunc(every(cfg.AnalysisEvery), runAnalysis); err != nil {
		logger.Error("analysis schedule: %v", err)
		os.Exit(1)
	}
	scheduler.Start()

	// First pass immediately; cron only handles subsequent runs.
	go runAnalysis()

	<-ctx.Done()
	logger.Info("shutting down...")
	<-scheduler.Stop().Done()
	logger.Info("shutdown complete")
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
