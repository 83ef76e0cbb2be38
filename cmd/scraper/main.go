// Scraper binary: continuously scrapes DEX Screener listing pages for the
// configured chain through Tor-routed stealth browser sessions and writes
// each successful pass to the snapshot file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Spydiecy/Sniffle-Power/config"
	"github.com/Spydiecy/Sniffle-Power/scraper/dexscreener"
	"github.com/Spydiecy/Sniffle-Power/storage"
	"github.com/Spydiecy/Sniffle-Power/tor"
	"github.com/Spydiecy/Sniffle-Power/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger("scraper")

	logger.Info("starting: chain=%s pages=%d interval=%v proxy=%s",
		cfg.Chain, cfg.PagesToScrape, cfg.ScrapeEvery, cfg.ProxyURL)

	rotator := tor.NewController(cfg.TorControlAddr, cfg.TorPassword, logger)
	if rotator.HealthCheck() {
		logger.Info("tor control port reachable at %s", cfg.TorControlAddr)
	} else {
		logger.Warn("tor control port unreachable at %s, identity rotation will fail", cfg.TorControlAddr)
	}

	store := storage.NewSnapshotStore(cfg.SnapshotPath)
	page := dexscreener.NewPageScraper(cfg, logger)
	orch := dexscreener.NewOrchestrator(cfg, logger, store, rotator, page.ScrapePage)

	if cfg.CSVExportPath != "" {
		exporter, err := storage.NewCSVExporter(cfg.CSVExportPath)
		if err != nil {
			logger.Warn("csv export disabled: %v", err)
		} else {
			orch.AddExporter(exporter)
			logger.Info("csv export enabled: %s", cfg.CSVExportPath)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch.RunLoop(ctx)
	logger.Info("shutdown complete")
}
