package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// Guard is a non-reentrancy flag for timer-driven activities: a tick that
// fires while the previous run is still in flight must no-op rather than
// overlap it.
type Guard struct {
	busy atomic.Bool
}

// TryEnter claims the guard. It returns false if the activity is already
// in flight.
func (g *Guard) TryEnter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Leave releases the guard.
func (g *Guard) Leave() {
	g.busy.Store(false)
}

// InFlight reports whether the guarded activity is currently running.
func (g *Guard) InFlight() bool {
	return g.busy.Load()
}

// Pacer enforces a minimum interval between successive calls. It blocks the
// caller for the remainder of the interval since the previous call.
type Pacer struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time

	// Sleep is swappable for tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// NewPacer creates a Pacer with the given minimum interval.
func NewPacer(minInterval time.Duration) *Pacer {
	return &Pacer{minInterval: minInterval}
}

// Wait blocks until at least the minimum interval has elapsed since the
// previous Wait returned, then records the new mark.
func (p *Pacer) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	if !p.last.IsZero() {
		if elapsed := time.Since(p.last); elapsed < p.minInterval {
			sleep(p.minInterval - elapsed)
		}
	}
	p.last = time.Now()
}

// StringSet is a thread-safe set for tracking seen keys (symbols, URLs).
type StringSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewStringSet creates an empty StringSet.
func NewStringSet() *StringSet {
	return &StringSet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *StringSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key has already been added.
func (s *StringSet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *StringSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
