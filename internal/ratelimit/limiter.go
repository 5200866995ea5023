// Package ratelimit implements a per-key sliding-window limiter for
// generation calls. Unlike a token bucket it remembers the exact timestamps
// of admitted calls, so it can tell a rejected caller precisely how long to
// wait for the oldest call to age out of the window.
package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/mindflow/mindflow-ai/internal/kv"
)

const (
	// DefaultLimit and DefaultWindow bound generation calls per key.
	DefaultLimit  = 5
	DefaultWindow = 60 * time.Second

	storePrefix = "ratelimit:"
)

// Result is the outcome of a single admission check.
type Result struct {
	Allowed           bool `json:"allowed"`
	RetryAfterSeconds int  `json:"retryAfterSeconds,omitempty"`
}

// Limiter admits up to limit calls per key within a trailing window.
// Check-and-record is atomic under a single mutex: two back-to-back calls
// for the same key can never both observe the same admitted count.
//
// When constructed with a kv.Store, admitted timestamps survive restarts.
// Persistence is best effort; a failing store degrades to in-memory
// limiting, never to a rejected or crashed call.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  map[string][]time.Time
	loaded map[string]bool

	store  kv.Store
	logger *slog.Logger
}

// New returns a Limiter with the given bounds. limit <= 0 or window <= 0
// fall back to the defaults. store may be nil for purely in-memory use.
func New(limit int, window time.Duration, store kv.Store, logger *slog.Logger) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		limit:  limit,
		window: window,
		calls:  make(map[string][]time.Time),
		loaded: make(map[string]bool),
		store:  store,
		logger: logger,
	}
}

// CheckAndRecord prunes timestamps older than the window, then either
// admits the call (recording now) or rejects it with the number of whole
// seconds until the oldest remaining call leaves the window.
func (l *Limiter) CheckAndRecord(key string, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loadLocked(key)

	cutoff := now.Add(-l.window)
	kept := l.calls[key][:0]
	for _, ts := range l.calls[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.calls[key] = kept

	if len(kept) >= l.limit {
		oldest := kept[0]
		wait := oldest.Add(l.window).Sub(now)
		retry := int(math.Ceil(wait.Seconds()))
		if retry < 0 {
			retry = 0
		}
		return Result{Allowed: false, RetryAfterSeconds: retry}
	}

	l.calls[key] = append(kept, now)
	l.persistLocked(key)
	return Result{Allowed: true}
}

// Remaining reports how many calls the key has left in the current window.
func (l *Limiter) Remaining(key string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loadLocked(key)

	cutoff := now.Add(-l.window)
	active := 0
	for _, ts := range l.calls[key] {
		if ts.After(cutoff) {
			active++
		}
	}
	if active >= l.limit {
		return 0
	}
	return l.limit - active
}

// Reset forgets all recorded calls for the key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.calls, key)
	l.loaded[key] = true
	if l.store != nil {
		if err := l.store.Delete(storePrefix + key); err != nil {
			l.logger.Warn("ratelimit: reset persist failed", "key", key, "error", err)
		}
	}
}

// loadLocked restores a key's window from the store on first touch.
// Caller MUST hold l.mu.
func (l *Limiter) loadLocked(key string) {
	if l.store == nil || l.loaded[key] {
		return
	}
	l.loaded[key] = true

	val, ok, err := l.store.Get(storePrefix + key)
	if err != nil {
		l.logger.Warn("ratelimit: load failed", "key", key, "error", err)
		return
	}
	if !ok {
		return
	}
	var millis []int64
	if err := json.Unmarshal([]byte(val), &millis); err != nil {
		l.logger.Warn("ratelimit: discarding unreadable window", "key", key, "error", err)
		return
	}
	times := make([]time.Time, 0, len(millis))
	for _, m := range millis {
		times = append(times, time.UnixMilli(m))
	}
	l.calls[key] = times
}

// persistLocked writes a key's window to the store. Caller MUST hold l.mu.
func (l *Limiter) persistLocked(key string) {
	if l.store == nil {
		return
	}
	millis := make([]int64, 0, len(l.calls[key]))
	for _, ts := range l.calls[key] {
		millis = append(millis, ts.UnixMilli())
	}
	data, err := json.Marshal(millis)
	if err != nil {
		return
	}
	if err := l.store.Set(storePrefix+key, string(data)); err != nil {
		l.logger.Warn("ratelimit: persist failed", "key", key, "error", err)
	}
}
