package utils

import (
	"sync"
	"testing"
	"time"
)

func TestGuardSingleFlight(t *testing.T) {
	var g Guard

	if !g.TryEnter() {
		t.Fatal("first TryEnter should succeed")
	}
	if g.TryEnter() {
		t.Fatal("second TryEnter while busy should fail")
	}
	if !g.InFlight() {
		t.Error("InFlight = false while held")
	}

	g.Leave()
	if g.InFlight() {
		t.Error("InFlight = true after Leave")
	}
	if !g.TryEnter() {
		t.Error("TryEnter after Leave should succeed")
	}
}

func TestGuardConcurrent(t *testing.T) {
	var g Guard
	var wg sync.WaitGroup
	entered := make(chan struct{}, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryEnter() {
				entered <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(entered)

	count := 0
	for range entered {
		count++
	}
	if count != 1 {
		t.Errorf("%d goroutines entered; want exactly 1", count)
	}
}

func TestPacerEnforcesMinimumInterval(t *testing.T) {
	p := NewPacer(100 * time.Millisecond)
	var slept []time.Duration
	p.Sleep = func(d time.Duration) { slept = append(slept, d) }

	p.Wait()
	if len(slept) != 0 {
		t.Fatalf("first Wait slept %v; want no sleep", slept)
	}

	p.Wait()
	if len(slept) != 1 {
		t.Fatalf("second Wait recorded %d sleeps; want 1", len(slept))
	}
	if slept[0] <= 0 || slept[0] > 100*time.Millisecond {
		t.Errorf("slept %v; want within (0, 100ms]", slept[0])
	}
}

func TestPacerZeroIntervalNeverSleeps(t *testing.T) {
	p := NewPacer(0)
	p.Sleep = func(d time.Duration) {
		t.Errorf("unexpected sleep of %v", d)
	}

	for i := 0; i < 5; i++ {
		p.Wait()
	}
}

func TestStringSet(t *testing.T) {
	s := NewStringSet()

	if !s.Add("DOGE") {
		t.Error("first Add should report new")
	}
	if s.Add("DOGE") {
		t.Error("second Add should report duplicate")
	}
	if !s.Contains("DOGE") {
		t.Error("Contains should see added key")
	}
	if s.Contains("PEPE") {
		t.Error("Contains should not see missing key")
	}

	s.Add("PEPE")
	if s.Size() != 2 {
		t.Errorf("Size = %d; want 2", s.Size())
	}
}
