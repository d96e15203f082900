package tablebase

import (
	"context"
	"sync"

	"github.com/hailam/chesstrain/internal/board"
)

// CachedProber wraps another prober with a bounded cache keyed by the
// position's canonical key, so move counters do not cause repeat lookups.
type CachedProber struct {
	inner   Prober
	cache   map[string]ProbeResult
	mu      sync.RWMutex
	maxSize int
	hits    uint64
	misses  uint64
}

// NewCachedProber creates a cached prober wrapping the given prober.
func NewCachedProber(inner Prober, cacheSize int) *CachedProber {
	return &CachedProber{
		inner:   inner,
		cache:   make(map[string]ProbeResult, cacheSize),
		maxSize: cacheSize,
	}
}

// NewCachedLichessProber creates a cached Lichess prober with default cache size.
func NewCachedLichessProber() *CachedProber {
	return NewCachedProber(NewLichessProber(), 100000)
}

func (cp *CachedProber) Probe(ctx context.Context, fen string) (ProbeResult, error) {
	key := board.KeyOf(fen)

	cp.mu.Lock()
	if result, ok := cp.cache[key]; ok {
		cp.hits++
		cp.mu.Unlock()
		return result, nil
	}
	cp.mu.Unlock()

	result, err := cp.inner.Probe(ctx, fen)
	if err != nil {
		// Failures are not cached; the next probe retries.
		return result, err
	}

	cp.mu.Lock()
	cp.misses++
	if len(cp.cache) >= cp.maxSize {
		// Simple eviction: clear half the cache
		i := 0
		for k := range cp.cache {
			if i >= cp.maxSize/2 {
				break
			}
			delete(cp.cache, k)
			i++
		}
	}
	cp.cache[key] = result
	cp.mu.Unlock()

	return result, nil
}

func (cp *CachedProber) MaxPieces() int {
	return cp.inner.MaxPieces()
}

// HitRate returns the cache hit rate as a percentage.
func (cp *CachedProber) HitRate() float64 {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	total := cp.hits + cp.misses
	if total == 0 {
		return 0
	}
	return float64(cp.hits) / float64(total) * 100
}

// CacheSize returns the current number of cached entries.
func (cp *CachedProber) CacheSize() int {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return len(cp.cache)
}

// Clear clears the cache.
func (cp *CachedProber) Clear() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.cache = make(map[string]ProbeResult, cp.maxSize)
	cp.hits = 0
	cp.misses = 0
}
