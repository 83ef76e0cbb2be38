// Package dexscreener scrapes DEX Screener listing pages through stealth
// browser sessions and assembles the results into token snapshots.
package dexscreener

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/Spydiecy/Sniffle-Power/config"
	"github.com/Spydiecy/Sniffle-Power/models"
	"github.com/Spydiecy/Sniffle-Power/scraper/stealth"
	"github.com/Spydiecy/Sniffle-Power/utils"
)

// ErrBlocked marks an anti-bot challenge page. The page is retryable after
// an identity rotation.
var ErrBlocked = errors.New("anti-bot challenge detected")

const (
	settleDelay      = 8 * time.Second
	extraSettleDelay = 5 * time.Second
	rowWaitTimeout   = 15 * time.Second
	fallbackTimeout  = 10 * time.Second
)

// PageScraper drives a single listing page through a fresh stealth session.
// Every session gets its own browser process, fingerprint profile, and
// teardown; nothing survives between pages.
type PageScraper struct {
	cfg    *config.Config
	logger *utils.Logger
	rng    *rand.Rand
}

func NewPageScraper(cfg *config.Config, logger *utils.Logger) *PageScraper {
	return &PageScraper{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ScrapePage scrapes one listing page and returns its token records. All
// failure modes reduce to an empty result; the orchestrator decides whether
// to retry.
func (p *PageScraper) ScrapePage(ctx context.Context, pageNum int, userAgent string, attempt int) []models.TokenRecord {
	records, err := p.scrape(ctx, pageNum, userAgent, attempt)
	if err != nil {
		p.logger.Error("page %d attempt %d failed (%s): %v", pageNum, attempt, classifyFailure(err), err)
		return nil
	}
	return records
}

func (p *PageScraper) scrape(ctx context.Context, pageNum int, userAgent string, attempt int) ([]models.TokenRecord, error) {
	profile := stealth.NewProfile(userAgent, p.rng)
	defer killOrphans()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		profile.AllocatorOptions(p.cfg.ProxyURL, p.cfg.ChromeBin)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx, profile.Apply(p.cfg.CookiesPath)); err != nil {
		return nil, fmt.Errorf("session setup: %w", err)
	}

	url := p.cfg.ListingURL(pageNum)
	p.logger.Info("navigating to %s (viewport %dx%d)", url, profile.Width, profile.Height)
	if err := p.navigate(browserCtx, url); err != nil {
		return nil, err
	}

	// Let client-side rendering catch up before touching the DOM.
	_ = chromedp.Run(browserCtx, chromedp.Sleep(settleDelay))
	var readyState string
	_ = chromedp.Run(browserCtx, chromedp.Evaluate(`document.readyState`, &readyState))
	if readyState != "complete" {
		p.logger.Warn("page %d readyState=%q after settle, waiting longer", pageNum, readyState)
		_ = chromedp.Run(browserCtx, chromedp.Sleep(extraSettleDelay))
	}

	var status struct {
		IsBlocked bool   `json:"isBlocked"`
		Title     string `json:"title"`
		HasTable  bool   `json:"hasTable"`
		BodyText  string `json:"bodyText"`
	}
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(blockDetectionScript, &status)); err != nil {
		return nil, fmt.Errorf("block detection: %w", err)
	}
	if status.IsBlocked {
		p.logger.Warn("page %d blocked (title=%q): %s", pageNum, status.Title, strings.TrimSpace(status.BodyText))
		p.captureBlockedScreenshot(browserCtx, pageNum, attempt)
		return nil, ErrBlocked
	}

	stealth.SimulateHumanBehavior(browserCtx, p.rng, profile.Width, profile.Height)

	p.waitForRows(browserCtx, pageNum)

	var records []models.TokenRecord
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(extractScript, &records)); err != nil {
		return nil, fmt.Errorf("row extraction: %w", err)
	}
	for i := range records {
		if href := records[i].Href; href != "" && strings.HasPrefix(href, "/") {
			records[i].Href = p.cfg.BaseURL + href
		}
	}

	p.logger.Info("page %d: extracted %d tokens", pageNum, len(records))
	return records, nil
}

// navigate tries progressively weaker load conditions. Heavy pages behind a
// slow circuit routinely miss the strict deadline while still rendering fine.
func (p *PageScraper) navigate(ctx context.Context, url string) error {
	tiers := []struct {
		name    string
		timeout time.Duration
		wait    chromedp.Action
	}{
		{"full-load", 30 * time.Second,
			chromedp.Poll(`document.readyState === "complete"`, nil,
				chromedp.WithPollingTimeout(25*time.Second))},
		{"interactive", 45 * time.Second,
			chromedp.Poll(`document.readyState !== "loading"`, nil,
				chromedp.WithPollingTimeout(40*time.Second))},
		{"best-effort", 60 * time.Second, chromedp.Sleep(5 * time.Second)},
	}

	var lastErr error
	for i, tier := range tiers {
		tctx, cancel := context.WithTimeout(ctx, tier.timeout)
		err := chromedp.Run(tctx, chromedp.Navigate(url), tier.wait)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if i < len(tiers)-1 {
			p.logger.Warn("%s navigation failed, falling back: %v", tier.name, err)
		}
	}
	return fmt.Errorf("navigation: %w", lastErr)
}

// waitForRows blocks until the listing table renders, degrading from the
// exact row selector to a loose class match to a flat wait. Extraction
// handles the empty case either way.
func (p *PageScraper) waitForRows(ctx context.Context, pageNum int) {
	tctx, cancel := context.WithTimeout(ctx, rowWaitTimeout)
	err := chromedp.Run(tctx, chromedp.WaitVisible(primaryRowSelector, chromedp.ByQuery))
	cancel()
	if err == nil {
		return
	}
	p.logger.Warn("page %d: token rows not found, trying fallback selector", pageNum)

	tctx, cancel = context.WithTimeout(ctx, fallbackTimeout)
	err = chromedp.Run(tctx, chromedp.WaitVisible(fallbackRowSelector, chromedp.ByQuery))
	cancel()
	if err == nil {
		return
	}
	p.logger.Warn("page %d: no table selector matched, proceeding blind", pageNum)
	_ = chromedp.Run(ctx, chromedp.Sleep(extraSettleDelay))
}

func (p *PageScraper) captureBlockedScreenshot(ctx context.Context, pageNum, attempt int) {
	if p.cfg.DebugDir == "" {
		return
	}
	if err := os.MkdirAll(p.cfg.DebugDir, 0o755); err != nil {
		p.logger.Warn("debug dir: %v", err)
		return
	}
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		p.logger.Warn("blocked-page screenshot failed: %v", err)
		return
	}
	name := fmt.Sprintf("blocked_page%d_attempt%d_%d.png", pageNum, attempt, time.Now().Unix())
	path := filepath.Join(p.cfg.DebugDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		p.logger.Warn("blocked-page screenshot write: %v", err)
		return
	}
	p.logger.Info("saved blocked-page screenshot to %s", path)
}

// classifyFailure buckets a scrape error for the logs so proxy trouble,
// challenges, and layout drift are distinguishable at a glance.
func classifyFailure(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case strings.Contains(msg, "ERR_PROXY_CONNECTION_FAILED"),
		strings.Contains(msg, "ERR_SOCKS_CONNECTION_FAILED"),
		strings.Contains(msg, "ERR_TUNNEL_CONNECTION_FAILED"):
		return "proxy"
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(msg, "ERR_TIMED_OUT"):
		return "navigation timeout"
	case strings.Contains(msg, "waiting for selector"),
		errors.Is(err, chromedp.ErrPollingTimeout):
		return "selector timeout"
	default:
		return "unexpected"
	}
}

// killOrphans reaps browser processes the allocator failed to collect.
// Long-lived scrape loops leak zombies without this.
func killOrphans() {
	for _, name := range []string{"chromium", "chrome"} {
		_ = exec.Command("pkill", "-9", "-f", name).Run()
	}
}
