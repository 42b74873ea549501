// Package ratelimit provides per-key token bucket rate limiting for MCP tools
// and HTTP clients.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// maxIdleBuckets bounds the bucket map. Past it, buckets that have refilled
// completely are dropped, since a fresh bucket behaves the same.
const maxIdleBuckets = 1024

// Limiter is a per-key token bucket. Every key starts with burst tokens and
// regains rate tokens per second up to burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   int
	nowFunc func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter creates a limiter refilling rate tokens per second with at most
// burst tokens per key.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow takes a token from key's bucket, reporting false when none is left.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// Reserve takes a token from key's bucket. When none is left it reports how
// long until one will be; a limiter that never refills reports -1.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b := l.refill(key, now)
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, -1
	}
	wait := (1 - b.tokens) / l.rate
	return false, time.Duration(math.Ceil(wait * float64(time.Second)))
}

// refill returns key's bucket topped up to now. Callers hold l.mu.
func (l *Limiter) refill(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxIdleBuckets {
			l.evictFull(now)
		}
		b = &bucket{tokens: float64(l.burst), last: now}
		l.buckets[key] = b
		return b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(l.burst), b.tokens+l.rate*elapsed)
		b.last = now
	}
	return b
}

func (l *Limiter) evictFull(now time.Time) {
	for key, b := range l.buckets {
		if b.tokens+l.rate*now.Sub(b.last).Seconds() >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// Read tools are cheap; tools that take the writer lock are limited harder.
func NewToolLimiters() ToolLimiters {
	perMinute := func(n float64) float64 { return n / 60 }
	return ToolLimiters{
		"corpus_related":   NewLimiter(1.0, 10),
		"corpus_get":       NewLimiter(2.0, 20),
		"corpus_neighbors": NewLimiter(2.0, 20),
		"corpus_rank":      NewLimiter(perMinute(30), 5),
		"corpus_graph":     NewLimiter(perMinute(30), 5),
		"corpus_validate":  NewLimiter(perMinute(10), 5),
		"corpus_rebuild":   NewLimiter(perMinute(6), 2),
		"corpus_fix":       NewLimiter(perMinute(5), 1),
		"corpus_decay":     NewLimiter(perMinute(5), 2),
		"corpus_refresh":   NewLimiter(perMinute(30), 5),
		"corpus_enrich":    NewLimiter(perMinute(30), 5),
		"corpus_backup":    NewLimiter(perMinute(5), 2),
		"corpus_restore":   NewLimiter(perMinute(2), 1),
	}
}

// LimitError is returned by CheckLimit when a tool is over its limit.
type LimitError struct {
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	if e.RetryAfter <= 0 {
		return fmt.Sprintf("rate limit exceeded for %s", e.Tool)
	}
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Tool, e.RetryAfter.Round(time.Second))
}

// CheckLimit takes a token for toolName. Tools without a limiter are never
// limited.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if ok, wait := limiter.Reserve(toolName); !ok {
		return &LimitError{Tool: toolName, RetryAfter: wait}
	}
	return nil
}
