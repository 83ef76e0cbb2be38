package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Spydiecy/Sniffle-Power/config"
	"github.com/Spydiecy/Sniffle-Power/models"
	"github.com/Spydiecy/Sniffle-Power/storage"
	"github.com/Spydiecy/Sniffle-Power/utils"
)

// RunState tracks where the enrichment worker is inside one run.
type RunState int

const (
	StateIdle RunState = iota
	StateLoading
	StatePerTokenLoop
	StateRateLimitStop
	StateComplete
)

func (s RunState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePerTokenLoop:
		return "per-token-loop"
	case StateRateLimitStop:
		return "rate-limit-stop"
	case StateComplete:
		return "complete"
	default:
		return "idle"
	}
}

// Analyzer is the enrichment worker: it joins the token snapshot with the
// social-post bundle, scores queued tokens through the model client, and
// maintains the analysis-result file. It owns all writes to that file.
type Analyzer struct {
	cfg        *config.Config
	logger     *utils.Logger
	snapshots  *storage.SnapshotStore
	bundles    *storage.BundleStore
	store      *storage.AnalysisStore
	mirrors    []storage.AnalysisSink
	model      ScoreClient
	normalizer RiskNormalizer
	pacer      *utils.Pacer
	now        func() time.Time

	runGuard    utils.Guard
	resyncGuard utils.Guard

	mu      sync.Mutex
	current []models.AnalysisResult
	state   RunState
}

// NewAnalyzer wires an Analyzer with production defaults. The clock,
// normalizer and pacer can be swapped afterwards for tests.
func NewAnalyzer(cfg *config.Config, logger *utils.Logger,
	snapshots *storage.SnapshotStore, bundles *storage.BundleStore,
	store *storage.AnalysisStore, model ScoreClient, normalizer RiskNormalizer) *Analyzer {

	return &Analyzer{
		cfg:        cfg,
		logger:     logger,
		snapshots:  snapshots,
		bundles:    bundles,
		store:      store,
		model:      model,
		normalizer: normalizer,
		pacer:      utils.NewPacer(cfg.ModelCallDelay),
		now:        time.Now,
	}
}

// AddMirror registers an additional sink that receives the full result set
// on every persist. Mirror failures are logged, never fatal.
func (a *Analyzer) AddMirror(sink storage.AnalysisSink) {
	a.mirrors = append(a.mirrors, sink)
}

// SetClock swaps the time source (tests).
func (a *Analyzer) SetClock(now func() time.Time) { a.now = now }

// SetPacer swaps the inter-call pacer (tests).
func (a *Analyzer) SetPacer(p *utils.Pacer) { a.pacer = p }

// State returns the worker's current run state.
func (a *Analyzer) State() RunState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Analyzer) setState(s RunState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	a.logger.Debug("[analyzer] state → %s", s)
}

type queueItem struct {
	symbol string
	rec    *models.TokenRecord
	tweets []string
}

// Run executes one enrichment pass. A run already in flight makes a new
// trigger no-op. Rate-limit exhaustion stops the run cleanly and returns
// ErrRateLimited; all work committed so far is preserved.
func (a *Analyzer) Run(ctx context.Context) error {
	if !a.runGuard.TryEnter() {
		a.logger.Info("[analyzer] run already in progress, skipping trigger")
		return nil
	}
	defer a.runGuard.Leave()
	defer a.setState(StateIdle)

	a.setState(StateLoading)

	snap, err := a.snapshots.Read()
	if err != nil {
		a.logger.Error("[analyzer] cannot read token snapshot: %v", err)
		return err
	}

	bundle, err := a.bundles.Read()
	if err != nil {
		a.logger.Warn("[analyzer] no social bundle available, nothing to analyze: %v", err)
		return nil
	}

	prior, err := a.store.Read()
	if err != nil {
		a.logger.Warn("[analyzer] prior analysis unreadable, starting empty: %v", err)
		prior = nil
	}

	present := snap.SymbolSet()

	a.mu.Lock()
	a.current = pruneResults(prior, present)
	pruned := len(prior) - len(a.current)
	refreshed := a.refreshMarketLocked(snap)
	var persistErr error
	if len(prior) > 0 {
		persistErr = a.persistLocked()
	}
	a.mu.Unlock()

	if pruned > 0 {
		a.logger.Info("[analyzer] pruned %d stale analyses no longer in snapshot", pruned)
	}
	if refreshed > 0 {
		a.logger.Info("[analyzer] refreshed market data for %d existing analyses", refreshed)
	}
	if persistErr != nil {
		a.logger.Error("[analyzer] persist after load failed: %v", persistErr)
	}

	queue := buildQueue(snap, bundle)
	a.logger.Info("[analyzer] %d tokens queued (snapshot ∩ social bundle)", len(queue))

	a.setState(StatePerTokenLoop)

	for i, item := range queue {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if a.freshlyAnalyzed(item.symbol) {
			a.logger.Debug("[analyzer] %s analyzed within freshness window, skipping", item.symbol)
			continue
		}

		a.pacer.Wait()
		a.logger.Info("[analyzer] scoring %d/%d: %s", i+1, len(queue), item.symbol)

		score, err := a.model.Score(ctx, item.symbol, item.rec, item.tweets)
		if errors.Is(err, ErrRateLimited) {
			a.setState(StateRateLimitStop)
			a.logger.Error("[analyzer] rate limit exhausted — stopping this run, %d/%d done", i, len(queue))
			return ErrRateLimited
		}
		if err != nil {
			a.logger.Error("[analyzer] scoring %s failed: %v", item.symbol, err)
			continue
		}
		if score == nil || !score.IsMemecoin || strings.TrimSpace(score.Rationale) == "" {
			a.logger.Info("[analyzer] %s: not a memecoin or no valid analysis, skipping", item.symbol)
			continue
		}

		result := a.buildResult(item, score)

		a.mu.Lock()
		upsertResult(&a.current, result)
		err = a.persistLocked()
		a.mu.Unlock()

		if err != nil {
			a.logger.Error("[analyzer] persist after %s failed: %v", item.symbol, err)
		} else {
			a.logger.Info("[analyzer] %s scored — risk %.1f, potential %.1f, overall %d",
				result.Symbol, result.Risk, result.InvestmentPotential, result.Overall)
		}
	}

	a.setState(StateComplete)

	a.mu.Lock()
	report := GenerateReport(a.current)
	a.mu.Unlock()
	PrintReport(report)

	return nil
}

// Resync refreshes market-data fields from the snapshot file when it has
// changed on disk. It never touches risk, potential, rationale or
// lastAnalyzed, and a resync already in flight makes a new tick no-op.
func (a *Analyzer) Resync() {
	if !a.resyncGuard.TryEnter() {
		return
	}
	defer a.resyncGuard.Leave()

	if !a.snapshots.Modified() {
		return
	}

	snap, err := a.snapshots.Read()
	if err != nil {
		a.logger.Warn("[analyzer] resync: snapshot unreadable: %v", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	updated := a.refreshMarketLocked(snap)
	if updated == 0 {
		return
	}
	a.logger.Info("[analyzer] resync: refreshed market data for %d analyses", updated)
	if err := a.persistLocked(); err != nil {
		a.logger.Error("[analyzer] resync persist failed: %v", err)
	}
}

// refreshMarketLocked overwrites market fields of entries whose symbol is
// still present in the snapshot. Callers hold a.mu.
func (a *Analyzer) refreshMarketLocked(snap *models.TokenSnapshot) int {
	updated := 0
	for i := range a.current {
		if rec := snap.FindToken(a.current[i].Symbol); rec != nil {
			applyMarketFields(&a.current[i], rec)
			updated++
		}
	}
	return updated
}

// persistLocked writes the full result document: a normalized, sorted copy
// goes to the file store and every mirror. Callers hold a.mu.
func (a *Analyzer) persistLocked() error {
	out := make([]models.AnalysisResult, len(a.current))
	copy(out, a.current)

	a.normalizer.Normalize(out)
	SortResults(out)

	if err := a.store.Write(out); err != nil {
		return err
	}
	for _, m := range a.mirrors {
		if err := m.Write(out); err != nil {
			a.logger.Warn("[analyzer] mirror write failed: %v", err)
		}
	}
	return nil
}

func (a *Analyzer) freshlyAnalyzed(symbol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.current {
		if a.current[i].Symbol == symbol {
			return a.now().Sub(a.current[i].LastAnalyzed) < a.cfg.FreshnessWindow
		}
	}
	return false
}

func (a *Analyzer) buildResult(item queueItem, score *TokenScore) models.AnalysisResult {
	rec := item.rec
	res := models.AnalysisResult{
		Symbol:              item.symbol,
		QuoteSymbol:         rec.QuoteSymbol,
		Risk:                CombineRisk(score.Risk, rec),
		InvestmentPotential: score.Potential,
		Overall:             score.Overall,
		Rationale:           score.Rationale,
		LastAnalyzed:        a.now(),
	}
	applyMarketFields(&res, rec)
	return res
}

// applyMarketFields copies only the denormalized market fields; scores,
// rationale and lastAnalyzed are untouched.
func applyMarketFields(res *models.AnalysisResult, rec *models.TokenRecord) {
	res.Price = ParsePrice(rec.Price)
	res.Volume = orNA(rec.Volume)
	res.MarketCap = orNA(rec.MarketCap)
	res.Liquidity = orNA(rec.Liquidity)
	res.Change24h = ParseChange(rec.Change24h)
	res.Age = orNA(rec.Age)
	if rec.Href != "" {
		res.Href = rec.Href
	} else if res.Href == "" {
		res.Href = "#"
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// buildQueue intersects snapshot symbols with the social bundle, preserving
// snapshot order and deduplicating repeated symbols.
func buildQueue(snap *models.TokenSnapshot, bundle models.SocialPostBundle) []queueItem {
	seen := utils.NewStringSet()
	var queue []queueItem

	for i := range snap.Tokens {
		rec := &snap.Tokens[i]
		group, ok := bundle[rec.Symbol]
		if !ok || len(group.Tweets) == 0 {
			continue
		}
		if !seen.Add(rec.Symbol) {
			continue
		}

		tweets := make([]string, 0, len(group.Tweets))
		for _, t := range group.Tweets {
			if text := normaliseText(t.Text); text != "" {
				tweets = append(tweets, text)
			}
		}
		queue = append(queue, queueItem{symbol: rec.Symbol, rec: rec, tweets: tweets})
	}
	return queue
}

// upsertResult replaces the entry for the symbol in place, or appends. The
// result set never holds two entries for one symbol.
func upsertResult(results *[]models.AnalysisResult, res models.AnalysisResult) {
	for i := range *results {
		if (*results)[i].Symbol == res.Symbol {
			(*results)[i] = res
			return
		}
	}
	*results = append(*results, res)
}

// pruneResults drops entries whose symbol no longer appears in the snapshot.
func pruneResults(results []models.AnalysisResult, present map[string]struct{}) []models.AnalysisResult {
	kept := make([]models.AnalysisResult, 0, len(results))
	for _, r := range results {
		if _, ok := present[r.Symbol]; ok {
			kept = append(kept, r)
		}
	}
	return kept
}
