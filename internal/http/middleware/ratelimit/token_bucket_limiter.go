package ratelimit

import (
	"sync"
	"time"
)

// Config stores TokenBucketLimiter settings.
type Config struct {
	Rate       float64       // tokens per second
	Burst      int           // capacity (max tokens)
	TTL        time.Duration // delete idle buckets (0 disables)
	MaxBuckets int           // maximum number of buckets
}

// TokenBucketLimiter is a per-key token bucket limiter. One bucket per key,
// refilled continuously at Rate and capped at Burst. Idle buckets are swept
// lazily from the hot path.
type TokenBucketLimiter struct {
	cfg       Config
	clock     Clock
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens   float64
	refilled time.Time
	touched  time.Time
}

// NewTokenBucketLimiter creates a limiter with explicit config and injected clock.
func NewTokenBucketLimiter(clock Clock, cfg Config) *TokenBucketLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxBuckets < 0 {
		cfg.MaxBuckets = 0
	}
	return &TokenBucketLimiter{
		cfg:     cfg,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// NewTokenBucketPerWindow is a convenience ctor for "limit per window".
func NewTokenBucketPerWindow(clock Clock, limit int, window, ttl time.Duration) *TokenBucketLimiter {
	if window <= 0 {
		window = time.Second
	}
	if limit <= 0 {
		limit = 1
	}
	return NewTokenBucketLimiter(clock, Config{
		Rate:  float64(limit) / window.Seconds(),
		Burst: limit,
		TTL:   ttl,
	})
}

// Allow reports whether the key may proceed and consumes a token if so.
// A new key when the bucket table is full is refused outright.
func (l *TokenBucketLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		if l.cfg.MaxBuckets > 0 && len(l.buckets) >= l.cfg.MaxBuckets {
			return false
		}
		b = &bucket{tokens: float64(l.cfg.Burst), refilled: now}
		l.buckets[key] = b
	}

	if dt := now.Sub(b.refilled); dt > 0 {
		b.tokens += dt.Seconds() * l.cfg.Rate
		if limit := float64(l.cfg.Burst); b.tokens > limit {
			b.tokens = limit
		}
		b.refilled = now
	}
	b.touched = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweepLocked drops buckets idle longer than TTL. Runs at most once per
// sweep interval so a busy limiter does not scan the table on every call.
func (l *TokenBucketLimiter) sweepLocked(now time.Time) {
	if l.cfg.TTL <= 0 {
		return
	}

	interval := time.Minute
	if half := l.cfg.TTL / 2; half > interval {
		interval = half
	}
	if !l.lastSweep.IsZero() && now.Sub(l.lastSweep) < interval {
		return
	}
	l.lastSweep = now

	for k, b := range l.buckets {
		if now.Sub(b.touched) > l.cfg.TTL {
			delete(l.buckets, k)
		}
	}
}
