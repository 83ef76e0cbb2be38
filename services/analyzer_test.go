package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Spydiecy/Sniffle-Power/config"
	"github.com/Spydiecy/Sniffle-Power/models"
	"github.com/Spydiecy/Sniffle-Power/storage"
	"github.com/Spydiecy/Sniffle-Power/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger("test") }

type fakeScorer struct {
	calls  []string
	scores map[string]*TokenScore
	errs   map[string]error
}

func (f *fakeScorer) Score(_ context.Context, symbol string, _ *models.TokenRecord, _ []string) (*TokenScore, error) {
	f.calls = append(f.calls, symbol)
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.scores[symbol], nil
}

// healthyRecord has zero fundamental-risk penalties so model risk passes
// through CombineRisk unchanged.
func healthyRecord(symbol string) models.TokenRecord {
	return models.TokenRecord{
		Name:      symbol + " Coin",
		Symbol:    symbol,
		Price:     "$0.50",
		Volume:    "$100K",
		Liquidity: "$500K",
		MarketCap: "$1.2M",
		Age:       "2mo",
		Change24h: "5%",
		Href:      "https://dexscreener.com/bsc/0x" + symbol,
	}
}

func testSnapshot(records ...models.TokenRecord) *models.TokenSnapshot {
	return &models.TokenSnapshot{
		Timestamp:   time.Now(),
		TotalTokens: len(records),
		Chain:       "bsc",
		SortedBy:    "pairAge (ascending)",
		Tokens:      records,
	}
}

type analyzerFixture struct {
	cfg       *config.Config
	snapshots *storage.SnapshotStore
	store     *storage.AnalysisStore
	scorer    *fakeScorer
	analyzer  *Analyzer
}

func newFixture(t *testing.T, snap *models.TokenSnapshot, bundleJSON string) *analyzerFixture {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		SnapshotPath:    filepath.Join(dir, "tokens.json"),
		TweetsPath:      filepath.Join(dir, "tweets.json"),
		AnalysisPath:    filepath.Join(dir, "analysis.json"),
		FreshnessWindow: 24 * time.Hour,
	}

	snapshots := storage.NewSnapshotStore(cfg.SnapshotPath)
	if snap != nil {
		if err := snapshots.Write(snap); err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}
	if bundleJSON != "" {
		if err := os.WriteFile(cfg.TweetsPath, []byte(bundleJSON), 0o644); err != nil {
			t.Fatalf("seed bundle: %v", err)
		}
	}

	scorer := &fakeScorer{scores: map[string]*TokenScore{}, errs: map[string]error{}}
	store := storage.NewAnalysisStore(cfg.AnalysisPath)
	analyzer := NewAnalyzer(cfg, newTestLogger(), snapshots,
		storage.NewBundleStore(cfg.TweetsPath), store, scorer, AbsoluteNormalizer{})

	return &analyzerFixture{cfg: cfg, snapshots: snapshots, store: store, scorer: scorer, analyzer: analyzer}
}

const dogeBundle = `{"DOGE": {"tweets": [{"text": "DOGE to the moon"}, {"text": "  such wow  "}]}}`

func TestRunScoresAndPersists(t *testing.T) {
	f := newFixture(t, testSnapshot(healthyRecord("DOGE")), dogeBundle)
	f.scorer.scores["DOGE"] = &TokenScore{
		Symbol: "DOGE", IsMemecoin: true, Risk: 5, Potential: 7, Overall: 65, Rationale: "solid meme",
	}

	if err := f.analyzer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	results, err := f.store.Read()
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results; want 1", len(results))
	}

	r := results[0]
	if r.Symbol != "DOGE" || r.Risk != 5 || r.InvestmentPotential != 7 || r.Overall != 65 {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Price != 0.50 {
		t.Errorf("price = %v; want 0.50", r.Price)
	}
	if r.LastAnalyzed.IsZero() {
		t.Error("lastAnalyzed not set")
	}
}

func TestRunQueuesOnlyTokensWithTweets(t *testing.T) {
	f := newFixture(t, testSnapshot(healthyRecord("DOGE"), healthyRecord("UTIL")), dogeBundle)
	f.scorer.scores["DOGE"] = &TokenScore{IsMemecoin: true, Risk: 5, Potential: 5, Overall: 50, Rationale: "ok"}

	if err := f.analyzer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.scorer.calls) != 1 || f.scorer.calls[0] != "DOGE" {
		t.Errorf("scored %v; want only DOGE", f.scorer.calls)
	}
}

func TestRunSkipsNonMemecoin(t *testing.T) {
	f := newFixture(t, testSnapshot(healthyRecord("DOGE")), dogeBundle)
	f.scorer.scores["DOGE"] = &TokenScore{IsMemecoin: false, Rationale: "utility token"}

	if err := f.analyzer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	results, _ := f.store.Read()
	if len(results) != 0 {
		t.Errorf("got %d results; want none for non-memecoin", len(results))
	}
}

func TestRunSkipsEmptyRationale(t *testing.T) {
	f := newFixture(t, testSnapshot(healthyRecord("DOGE")), dogeBundle)
	f.scorer.scores["DOGE"] = &TokenScore{IsMemecoin: true, Risk: 5, Potential: 5, Overall: 50, Rationale: "   "}

	if err := f.analyzer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	results, _ := f.store.Read()
	if len(results) != 0 {
		t.Errorf("got %d results; want none without rationale", len(results))
	}
}

func TestRunSkipsFreshlyAnalyzed(t *testing.T) {
	f := newFixture(t, testSnapshot(healthyRecord("DOGE")), dogeBundle)
	prior := []models.AnalysisResult{{
		Symbol: "DOGE", Risk: 3, InvestmentPotential: 6, Overall: 55,
		Rationale: "already scored", LastAnalyzed: time.Now().Add(-1 * time.Hour),
	}}
	if err := f.store.Write(prior); err != nil {
		t.Fatalf("seed prior: %v", err)
	}

	if err := f.analyzer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.scorer.calls) != 0 {
		t.Errorf("scored %v; want none inside freshness window", f.scorer.calls)
	}
	results, _ := f.store.Read()
	if len(results) != 1 || results[0].Rationale != "already scored" {
		t.Errorf("prior result not preserved: %+v", results)
	}
}

func TestRunRescoresStaleAnalysis(t *testing.T) {
	f := newFixture(t, testSnapshot(healthyRecord("DOGE")), dogeBundle)
	prior := []models.AnalysisResult{{
		Symbol: "DOGE", Risk: 3, Rationale: "old take",
		LastAnalyzed: time.Now().Add(-48 * time.Hour),
	}}
	if err := f.store.Write(prior); err != nil {
		t.Fatalf("seed prior: %v", err)
	}
	f.scorer.scores["DOGE"] = &TokenScore{IsMemecoin: true, Risk: 8, Potential: 2, Overall: 20, Rationale: "new take"}

	if err := f.analyzer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	results, _ := f.store.Read()
	if len(results) != 1 {
		t.Fatalf("got %d results; want 1 (upsert, not append)", len(results))
	}
	if results[0].Rationale != "new take" || results[0].Risk != 8 {
		t.Errorf("stale analysis not replaced: %+v", results[0])
	}
}

func TestRunPrunesDepartedTokens(t *testing.T) {
	f := newFixture(t, testSnapshot(healthyRecord("DOGE")), dogeBundle)
	prior := []models.AnalysisResult{
		{Symbol: "DOGE", Risk: 3, Rationale: "stays", LastAnalyzed: time.Now()},
		{Symbol: "GONE", Risk: 9, Rationale: "departed", LastAnalyzed: time.Now()},
	}
	if err := f.store.Write(prior); err != nil {
		t.Fatalf("seed prior: %v", err)
	}

	if err := f.analyzer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	results, _ := f.store.Read()
	if len(results) != 1 || results[0].Symbol != "DOGE" {
		t.Errorf("expected only DOGE to survive pruning, got %+v", results)
	}
}

func TestRunStopsCleanlyOnRateLimit(t *testing.T) {
	bundle := `{
		"AAA": {"tweets": [{"text": "aaa pump"}]},
		"BBB": {"tweets": [{"text": "bbb pump"}]}
	}`
	f := newFixture(t, testSnapshot(healthyRecord("AAA"), healthyRecord("BBB")), bundle)
	f.scorer.scores["AAA"] = &TokenScore{IsMemecoin: true, Risk: 4, Potential: 6, Overall: 60, Rationale: "fine"}
	f.scorer.errs["BBB"] = ErrRateLimited

	err := f.analyzer.Run(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Run err = %v; want ErrRateLimited", err)
	}

	results, _ := f.store.Read()
	if len(results) != 1 || results[0].Symbol != "AAA" {
		t.Errorf("work before the stop not preserved: %+v", results)
	}
}

func TestRunWithoutBundleIsNoop(t *testing.T) {
	f := newFixture(t, testSnapshot(healthyRecord("DOGE")), "")

	if err := f.analyzer.Run(context.Background()); err != nil {
		t.Fatalf("Run without bundle should not error, got %v", err)
	}
	if len(f.scorer.calls) != 0 {
		t.Errorf("scored %v without a bundle", f.scorer.calls)
	}
}

func TestRunWithoutSnapshotFails(t *testing.T) {
	f := newFixture(t, nil, dogeBundle)

	if err := f.analyzer.Run(context.Background()); err == nil {
		t.Fatal("Run without snapshot should error")
	}
}

func TestResyncRefreshesMarketDataOnly(t *testing.T) {
	f := newFixture(t, testSnapshot(healthyRecord("DOGE")), dogeBundle)
	f.scorer.scores["DOGE"] = &TokenScore{IsMemecoin: true, Risk: 5, Potential: 7, Overall: 65, Rationale: "solid meme"}

	if err := f.analyzer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	updated := healthyRecord("DOGE")
	updated.Price = "$2.00"
	updated.Liquidity = "$900K"
	if err := f.snapshots.Write(testSnapshot(updated)); err != nil {
		t.Fatalf("rewrite snapshot: %v", err)
	}

	f.analyzer.Resync()

	results, _ := f.store.Read()
	if len(results) != 1 {
		t.Fatalf("got %d results; want 1", len(results))
	}
	r := results[0]
	if r.Price != 2.00 || r.Liquidity != "$900K" {
		t.Errorf("market data not refreshed: %+v", r)
	}
	if r.Risk != 5 || r.Rationale != "solid meme" {
		t.Errorf("resync must not touch scores: %+v", r)
	}
}

func TestUpsertResultReplacesInPlace(t *testing.T) {
	results := []models.AnalysisResult{
		{Symbol: "A", Overall: 10},
		{Symbol: "B", Overall: 20},
	}

	upsertResult(&results, models.AnalysisResult{Symbol: "A", Overall: 99})
	if len(results) != 2 || results[0].Overall != 99 {
		t.Errorf("existing entry not replaced in place: %+v", results)
	}

	upsertResult(&results, models.AnalysisResult{Symbol: "C", Overall: 30})
	if len(results) != 3 || results[2].Symbol != "C" {
		t.Errorf("new entry not appended: %+v", results)
	}
}

func TestBuildQueueDedupesAndNormalises(t *testing.T) {
	snap := testSnapshot(healthyRecord("DOGE"), healthyRecord("DOGE"))
	bundle := models.SocialPostBundle{
		"DOGE": {Tweets: []models.Tweet{{Text: "  going   up  "}, {Text: "   "}}},
	}

	queue := buildQueue(snap, bundle)
	if len(queue) != 1 {
		t.Fatalf("queue length %d; want 1 after dedupe", len(queue))
	}
	if len(queue[0].tweets) != 1 || queue[0].tweets[0] != "going up" {
		t.Errorf("tweets not normalised: %v", queue[0].tweets)
	}
}
