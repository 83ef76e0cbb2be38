package dexscreener

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Spydiecy/Sniffle-Power/config"
	"github.com/Spydiecy/Sniffle-Power/models"
	"github.com/Spydiecy/Sniffle-Power/scraper/stealth"
	"github.com/Spydiecy/Sniffle-Power/storage"
	"github.com/Spydiecy/Sniffle-Power/utils"
)

// PageFunc scrapes one listing page. An empty result means failure.
type PageFunc func(ctx context.Context, pageNum int, userAgent string, attempt int) []models.TokenRecord

// Rotator requests a fresh exit identity from the anonymizing network.
type Rotator interface {
	Rotate(ctx context.Context) error
}

const (
	retryBaseDelay = 2 * time.Second
	rotationSettle = 5 * time.Second
	staleWindow    = 30 * time.Minute
	staleBreak     = 10 * time.Minute
	failureCeiling = 10
	ceilingBreak   = 15 * time.Minute
	maxCooldownMin = 8
)

var errEmptyPage = errors.New("no records extracted")

// Orchestrator sequences full scrape cycles: pages in order, per-page retry
// with identity rotation, escalating cooldowns across failed cycles, and
// atomic snapshot persistence. It is single-flight; overlapping triggers
// are dropped.
type Orchestrator struct {
	cfg        *config.Config
	logger     *utils.Logger
	store      *storage.SnapshotStore
	exporters  []storage.SnapshotExporter
	rotator    Rotator
	scrapePage PageFunc

	sleep func(context.Context, time.Duration)
	now   func() time.Time
	rng   *rand.Rand

	cycleGuard          utils.Guard
	consecutiveFailures int
	cycleCount          int
	lastSuccess         time.Time
	lastUAIndex         int
}

func NewOrchestrator(cfg *config.Config, logger *utils.Logger, store *storage.SnapshotStore, rotator Rotator, scrapePage PageFunc) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		rotator:     rotator,
		scrapePage:  scrapePage,
		sleep:       ctxSleep,
		now:         time.Now,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		lastSuccess: time.Now(),
		lastUAIndex: -1,
	}
}

// AddExporter registers a best-effort snapshot mirror (CSV and the like).
func (o *Orchestrator) AddExporter(e storage.SnapshotExporter) {
	o.exporters = append(o.exporters, e)
}

// SetSleep replaces the delay function. Tests use this to run instantly.
func (o *Orchestrator) SetSleep(fn func(time.Duration)) {
	o.sleep = func(_ context.Context, d time.Duration) { fn(d) }
}

// ctxSleep sleeps for d or until the context is cancelled, whichever comes
// first. Shutdown must not wait out a multi-minute cooldown.
func ctxSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// SetClock replaces the time source.
func (o *Orchestrator) SetClock(fn func() time.Time) { o.now = fn }

// SetRand replaces the randomness source for deterministic tests.
func (o *Orchestrator) SetRand(rng *rand.Rand) { o.rng = rng }

// RunLoop runs scrape cycles until the context is cancelled, spacing them
// by the configured interval on success and by the escalating failure
// policy otherwise.
func (o *Orchestrator) RunLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("scrape loop stopping: %v", ctx.Err())
			return
		default:
		}

		if o.RunCycle(ctx) {
			o.logger.Info("next cycle in %v", o.cfg.ScrapeEvery)
			o.sleep(ctx, o.cfg.ScrapeEvery)
			continue
		}
		if ctx.Err() != nil {
			continue
		}

		if o.consecutiveFailures >= failureCeiling {
			o.logger.Warn("%d consecutive failed cycles, backing off for %v", o.consecutiveFailures, ceilingBreak)
			o.consecutiveFailures = 0
			o.sleep(ctx, ceilingBreak)
			continue
		}
		o.sleep(ctx, o.failureCooldown())
	}
}

// RunCycle performs one full scrape pass over every configured page.
// Returns true when a snapshot was written.
func (o *Orchestrator) RunCycle(ctx context.Context) bool {
	if !o.cycleGuard.TryEnter() {
		o.logger.Warn("scrape cycle already in flight, dropping trigger")
		return false
	}
	defer o.cycleGuard.Leave()

	o.cycleCount++
	start := o.now()
	o.logger.Info("=== scrape cycle #%d (consecutive failures: %d) ===", o.cycleCount, o.consecutiveFailures)

	if start.Sub(o.lastSuccess) > staleWindow {
		o.logger.Warn("no successful cycle in %v, taking a %v break", staleWindow, staleBreak)
		o.sleep(ctx, staleBreak)
		o.consecutiveFailures = 0
		o.lastSuccess = o.now()
		return false
	}

	userAgent := o.pickUserAgent()
	o.logger.Info("cycle user agent: %s", userAgent)

	var all []models.TokenRecord
	for pageNum := 1; pageNum <= o.cfg.PagesToScrape; pageNum++ {
		if ctx.Err() != nil {
			o.logger.Info("cycle interrupted at page %d: %v", pageNum, ctx.Err())
			return false
		}
		all = append(all, o.scrapePageWithRetry(ctx, pageNum, userAgent)...)

		if pageNum < o.cfg.PagesToScrape {
			delay := time.Duration(3000+o.rng.Intn(5001)) * time.Millisecond
			o.logger.Info("waiting %v before page %d", delay.Round(time.Millisecond), pageNum+1)
			o.sleep(ctx, delay)
		}
	}

	if len(all) == 0 {
		o.consecutiveFailures++
		o.logger.Error("cycle #%d produced no tokens (failure streak: %d)", o.cycleCount, o.consecutiveFailures)
		return false
	}

	snapshot := &models.TokenSnapshot{
		Timestamp:   o.now(),
		TotalTokens: len(all),
		Chain:       o.cfg.Chain,
		SortedBy:    "pairAge (ascending)",
		Tokens:      all,
	}
	if err := o.store.Write(snapshot); err != nil {
		o.consecutiveFailures++
		o.logger.Error("snapshot write failed: %v", err)
		return false
	}
	for _, e := range o.exporters {
		if err := e.Export(snapshot); err != nil {
			o.logger.Warn("snapshot export failed: %v", err)
		}
	}

	o.consecutiveFailures = 0
	o.lastSuccess = o.now()
	o.logger.Info("cycle #%d complete: %d tokens in %v", o.cycleCount, len(all), o.now().Sub(start).Round(time.Second))
	return true
}

// scrapePageWithRetry retries a page with exponential backoff, rotating the
// exit identity between attempts.
func (o *Orchestrator) scrapePageWithRetry(ctx context.Context, pageNum int, userAgent string) []models.TokenRecord {
	var tokens []models.TokenRecord
	attempt := 0

	retry := &utils.RetryConfig{
		MaxAttempts: o.cfg.MaxRetries,
		BaseDelay:   retryBaseDelay,
		Logger:      o.logger,
		Sleep:       func(d time.Duration) { o.sleep(ctx, d) },
		OnRetry: func(int) {
			if err := o.rotator.Rotate(ctx); err != nil {
				o.logger.Warn("identity rotation failed: %v", err)
				return
			}
			o.logger.Info("identity rotated, settling %v", rotationSettle)
			o.sleep(ctx, rotationSettle)
		},
	}

	err := retry.Do(fmt.Sprintf("page %d", pageNum), func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempt++
		o.logger.Info("scraping page %d (attempt %d/%d)", pageNum, attempt, o.cfg.MaxRetries)
		tokens = o.scrapePage(ctx, pageNum, userAgent, attempt)
		if len(tokens) == 0 {
			return errEmptyPage
		}
		return nil
	})
	if err != nil {
		o.logger.Error("page %d exhausted its attempts, moving on: %v", pageNum, err)
		return nil
	}
	return tokens
}

// failureCooldown maps the failure streak to a wait: exponential in the
// small range, then a flat per-streak minute scale capped at maxCooldownMin.
func (o *Orchestrator) failureCooldown() time.Duration {
	if o.consecutiveFailures >= 6 {
		minutes := o.consecutiveFailures - 5
		if minutes > maxCooldownMin {
			minutes = maxCooldownMin
		}
		wait := time.Duration(minutes) * time.Minute
		o.logger.Warn("failure streak %d, extended cooldown %v", o.consecutiveFailures, wait)
		return wait
	}
	wait := time.Duration(1<<uint(o.consecutiveFailures)) * 1500 * time.Millisecond
	o.logger.Info("failure streak %d, cooling down %v", o.consecutiveFailures, wait)
	return wait
}

// pickUserAgent draws from the rotation pool, never repeating the previous
// cycle's pick.
func (o *Orchestrator) pickUserAgent() string {
	pool := stealth.UserAgents
	if len(pool) == 1 {
		return pool[0]
	}
	idx := o.rng.Intn(len(pool))
	for idx == o.lastUAIndex {
		idx = o.rng.Intn(len(pool))
	}
	o.lastUAIndex = idx
	return pool[idx]
}
