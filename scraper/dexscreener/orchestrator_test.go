package dexscreener

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Spydiecy/Sniffle-Power/config"
	"github.com/Spydiecy/Sniffle-Power/models"
	"github.com/Spydiecy/Sniffle-Power/storage"
	"github.com/Spydiecy/Sniffle-Power/utils"
)

type fakeRotator struct {
	calls int
	err   error
}

func (f *fakeRotator) Rotate(context.Context) error {
	f.calls++
	return f.err
}

type pageCall struct {
	pageNum int
	attempt int
}

func testConfig(t *testing.T, pages int) *config.Config {
	t.Helper()
	return &config.Config{
		BaseURL:       "https://dexscreener.com",
		Chain:         "bsc",
		PagesToScrape: pages,
		MaxRetries:    3,
		ScrapeEvery:   5 * time.Minute,
		SnapshotPath:  filepath.Join(t.TempDir(), "tokens.json"),
	}
}

func newTestOrchestrator(cfg *config.Config, rotator Rotator, pageFn PageFunc) (*Orchestrator, *storage.SnapshotStore, *[]time.Duration) {
	store := storage.NewSnapshotStore(cfg.SnapshotPath)
	o := NewOrchestrator(cfg, utils.NewLogger("orch-test"), store, rotator, pageFn)

	slept := &[]time.Duration{}
	o.SetSleep(func(d time.Duration) { *slept = append(*slept, d) })
	return o, store, slept
}

func tokens(symbols ...string) []models.TokenRecord {
	out := make([]models.TokenRecord, len(symbols))
	for i, s := range symbols {
		out[i] = models.TokenRecord{Symbol: s, Name: s + " Coin"}
	}
	return out
}

func TestRetryExhaustionBacksOffAndRotates(t *testing.T) {
	cfg := testConfig(t, 1)
	rotator := &fakeRotator{}

	var calls []pageCall
	pageFn := func(_ context.Context, pageNum int, _ string, attempt int) []models.TokenRecord {
		calls = append(calls, pageCall{pageNum, attempt})
		return nil
	}

	o, store, slept := newTestOrchestrator(cfg, rotator, pageFn)

	if o.RunCycle(context.Background()) {
		t.Fatal("all-failed cycle reported success")
	}

	if len(calls) != 3 {
		t.Fatalf("page scraped %d times; want exactly MaxRetries=3 (%v)", len(calls), calls)
	}
	for i, c := range calls {
		if c.attempt != i+1 {
			t.Errorf("call %d had attempt %d; want %d", i, c.attempt, i+1)
		}
	}

	if rotator.calls != 2 {
		t.Errorf("rotator called %d times; want once between each pair of attempts", rotator.calls)
	}

	// Back-off sleeps interleave with rotation settles: 2s,5s,4s,5s.
	var backoffs []time.Duration
	for _, d := range *slept {
		if d != rotationSettle {
			backoffs = append(backoffs, d)
		}
	}
	if len(backoffs) != 2 {
		t.Fatalf("recorded %d back-offs; want 2 (%v)", len(backoffs), *slept)
	}
	for i := 1; i < len(backoffs); i++ {
		if backoffs[i] <= backoffs[i-1] {
			t.Errorf("back-offs not strictly increasing: %v", backoffs)
		}
	}

	if _, err := store.Read(); err == nil {
		t.Error("failed cycle must not write a snapshot")
	}
}

func TestRotationFailureDoesNotAbortRetries(t *testing.T) {
	cfg := testConfig(t, 1)
	rotator := &fakeRotator{err: errors.New("tor down")}

	attempts := 0
	pageFn := func(context.Context, int, string, int) []models.TokenRecord {
		attempts++
		return nil
	}

	o, _, _ := newTestOrchestrator(cfg, rotator, pageFn)
	o.RunCycle(context.Background())

	if attempts != 3 {
		t.Errorf("page scraped %d times despite rotation failures; want 3", attempts)
	}
}

func TestCycleSuccessWritesSnapshot(t *testing.T) {
	cfg := testConfig(t, 2)
	rotator := &fakeRotator{}

	pageFn := func(_ context.Context, pageNum int, _ string, _ int) []models.TokenRecord {
		if pageNum == 1 {
			return tokens("AAA", "BBB")
		}
		return tokens("CCC")
	}

	o, store, _ := newTestOrchestrator(cfg, rotator, pageFn)

	if !o.RunCycle(context.Background()) {
		t.Fatal("successful cycle reported failure")
	}
	if rotator.calls != 0 {
		t.Errorf("rotated %d times on a clean cycle; want 0", rotator.calls)
	}

	snap, err := store.Read()
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.TotalTokens != 3 || len(snap.Tokens) != 3 {
		t.Errorf("snapshot has %d tokens; want 3", snap.TotalTokens)
	}
	if snap.Chain != "bsc" || snap.SortedBy == "" {
		t.Errorf("snapshot metadata incomplete: %+v", snap)
	}
	if snap.Tokens[0].Symbol != "AAA" || snap.Tokens[2].Symbol != "CCC" {
		t.Errorf("page order not preserved: %v", snap.Tokens)
	}
}

func TestPartialCycleStillWritesSnapshot(t *testing.T) {
	cfg := testConfig(t, 2)

	pageFn := func(_ context.Context, pageNum int, _ string, _ int) []models.TokenRecord {
		if pageNum == 1 {
			return nil
		}
		return tokens("CCC")
	}

	o, store, _ := newTestOrchestrator(cfg, &fakeRotator{}, pageFn)

	if !o.RunCycle(context.Background()) {
		t.Fatal("cycle with one good page reported failure")
	}

	snap, err := store.Read()
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(snap.Tokens) != 1 || snap.Tokens[0].Symbol != "CCC" {
		t.Errorf("degraded snapshot wrong: %v", snap.Tokens)
	}
}

func TestCycleGuardDropsOverlappingTrigger(t *testing.T) {
	cfg := testConfig(t, 1)

	release := make(chan struct{})
	entered := make(chan struct{})
	pageFn := func(context.Context, int, string, int) []models.TokenRecord {
		close(entered)
		<-release
		return tokens("AAA")
	}

	o, _, _ := newTestOrchestrator(cfg, &fakeRotator{}, pageFn)

	done := make(chan bool)
	go func() { done <- o.RunCycle(context.Background()) }()

	<-entered
	if o.RunCycle(context.Background()) {
		t.Error("overlapping trigger should be dropped")
	}

	close(release)
	if !<-done {
		t.Error("original cycle should still succeed")
	}
}

func TestCycleStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t, 3)
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	pageFn := func(context.Context, int, string, int) []models.TokenRecord {
		attempts++
		cancel()
		return tokens("AAA")
	}

	o, _, _ := newTestOrchestrator(cfg, &fakeRotator{}, pageFn)
	o.RunCycle(ctx)

	if attempts != 1 {
		t.Errorf("scraped %d pages after cancel; want 1", attempts)
	}
}

func TestRunLoopStopsPromptlyDuringCycleSpacing(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.ScrapeEvery = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	pageFn := func(context.Context, int, string, int) []models.TokenRecord {
		cancel()
		return tokens("AAA")
	}

	// Default context-aware sleep stays in place: the hour-long spacing must
	// end the moment the context is cancelled.
	store := storage.NewSnapshotStore(cfg.SnapshotPath)
	o := NewOrchestrator(cfg, utils.NewLogger("orch-test"), store, &fakeRotator{}, pageFn)

	start := time.Now()
	o.RunLoop(ctx)

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("RunLoop took %v to observe cancellation; want prompt exit", elapsed)
	}
}

func TestPickUserAgentNeverRepeatsConsecutively(t *testing.T) {
	cfg := testConfig(t, 1)
	o, _, _ := newTestOrchestrator(cfg, &fakeRotator{}, nil)

	prev := o.pickUserAgent()
	for i := 0; i < 100; i++ {
		ua := o.pickUserAgent()
		if ua == prev {
			t.Fatalf("user agent repeated on draw %d: %q", i, ua)
		}
		prev = ua
	}
}

func TestFailureCooldownSchedule(t *testing.T) {
	cfg := testConfig(t, 1)
	o, _, _ := newTestOrchestrator(cfg, &fakeRotator{}, nil)

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 3 * time.Second},
		{2, 6 * time.Second},
		{5, 48 * time.Second},
		{6, 1 * time.Minute},
		{10, 5 * time.Minute},
		{20, 8 * time.Minute},
	}

	for _, tt := range tests {
		o.consecutiveFailures = tt.failures
		if got := o.failureCooldown(); got != tt.want {
			t.Errorf("cooldown(%d) = %v; want %v", tt.failures, got, tt.want)
		}
	}
}
