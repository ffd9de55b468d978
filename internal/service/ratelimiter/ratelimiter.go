// Package ratelimiter guards the discovery API budget with a distributed
// token bucket in Redis. The bucket refills continuously across the window
// so workers sharing the same Redis see one budget.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

const bucketKey = "ratelimit:discovery"

// luaAcquire atomically refills and consumes. ARGV: capacity, refill rate
// (tokens/sec), now (unix seconds with fraction), cost, ttl seconds.
// Returns { allowed, tokens, retry_after_seconds }.
const luaAcquire = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] ~= false and data[1] ~= nil then
  tokens = tonumber(data[1])
end
if data[2] ~= false and data[2] ~= nil then
  last_refill = tonumber(data[2])
end

local delta = now - last_refill
if delta < 0 then
  delta = 0
end

tokens = math.min(capacity, tokens + delta * refill_rate)

local allowed = 0
local retry_after = 0

if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
else
  retry_after = math.ceil((cost - tokens) / refill_rate)
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", now)
redis.call("EXPIRE", key, ttl)

return { allowed, tostring(tokens), retry_after }
`

// Status reports the current bucket state.
type Status struct {
	Tokens     float64       `json:"tokens"`
	Capacity   int           `json:"capacity"`
	Window     time.Duration `json:"-"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Degraded   bool          `json:"degraded"`
}

// Limiter is the shared discovery call budget. When Redis is unreachable it
// degrades to a per-process bucket so a Redis outage cannot stop analysis,
// at the cost of over-admitting across processes.
type Limiter struct {
	rdb      *redis.Client
	script   *redis.Script
	capacity int
	window   time.Duration

	mu        sync.Mutex
	local     float64
	localAt   time.Time
	localInit bool
	degraded  bool
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// New builds a limiter with the given hourly capacity. capacity <= 0 or a
// non-positive window disables limiting (every acquire succeeds).
func New(rdb *redis.Client, capacity int, window time.Duration) *Limiter {
	return &Limiter{
		rdb:      rdb,
		script:   redis.NewScript(luaAcquire),
		capacity: capacity,
		window:   window,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

func (l *Limiter) refillRate() float64 {
	return float64(l.capacity) / l.window.Seconds()
}

// TryAcquire attempts to take n tokens without blocking. When denied it
// returns the time until n tokens will be available.
func (l *Limiter) TryAcquire(ctx context.Context, n int) (bool, time.Duration, error) {
	if l.capacity <= 0 || l.window <= 0 {
		return true, 0, nil
	}
	if n <= 0 {
		n = 1
	}

	now := l.now()
	nowSec := float64(now.UnixNano()) / 1e9
	ttl := int(l.window.Seconds()) * 2

	res, err := l.script.Run(ctx, l.rdb, []string{bucketKey},
		l.capacity, l.refillRate(), nowSec, n, ttl).Result()
	if err != nil {
		if ctx.Err() != nil {
			return false, 0, ctx.Err()
		}
		slog.Warn("rate limiter falling back to local bucket",
			slog.Any("error", err))
		ok, retry := l.localAcquire(now, n)
		return ok, retry, nil
	}
	l.setDegraded(false)

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		return false, 0, fmt.Errorf("op=ratelimiter.acquire: unexpected script result %v", res)
	}
	allowed := toInt64(vals[0]) == 1
	retryAfter := time.Duration(toInt64(vals[2])) * time.Second
	return allowed, retryAfter, nil
}

// maxWaitSlice caps a single blocked sleep so the bucket is re-polled while
// it refills; tokens freed early are picked up well before the advertised
// retry-after elapses.
const maxWaitSlice = 10 * time.Second

// Acquire takes n tokens, sleeping on denial until they are available or the
// timeout (or ctx) expires. A zero timeout means a single non-blocking try.
// Blocked waits happen in slices of at most maxWaitSlice, re-checking the
// bucket on every wake.
func (l *Limiter) Acquire(ctx context.Context, n int, timeout time.Duration) error {
	deadline := l.now().Add(timeout)
	for {
		ok, retryAfter, err := l.TryAcquire(ctx, n)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if timeout <= 0 {
			return &domain.RateLimitedError{RetryAfter: retryAfter}
		}
		remaining := deadline.Sub(l.now())
		if remaining <= 0 {
			return &domain.RateLimitedError{RetryAfter: retryAfter}
		}
		wait := retryAfter
		if wait > maxWaitSlice {
			wait = maxWaitSlice
		}
		if wait > remaining {
			wait = remaining
		}
		slog.Info("rate limiter waiting for tokens",
			slog.Int("tokens_wanted", n),
			slog.Duration("wait", wait),
			slog.Duration("retry_after", retryAfter))
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Status reads the bucket without consuming. In degraded mode it reports the
// local bucket.
func (l *Limiter) Status(ctx context.Context) Status {
	st := Status{Capacity: l.capacity, Window: l.window}
	if l.capacity <= 0 || l.window <= 0 {
		return st
	}

	data, err := l.rdb.HMGet(ctx, bucketKey, "tokens", "last_refill").Result()
	if err != nil {
		l.mu.Lock()
		st.Tokens = l.localTokensLocked(l.now())
		st.Degraded = true
		l.mu.Unlock()
		return st
	}

	tokens := float64(l.capacity)
	lastRefill := float64(l.now().UnixNano()) / 1e9
	if len(data) >= 2 {
		if s, ok := data[0].(string); ok {
			fmt.Sscanf(s, "%f", &tokens)
		}
		if s, ok := data[1].(string); ok {
			fmt.Sscanf(s, "%f", &lastRefill)
		}
	}
	elapsed := float64(l.now().UnixNano())/1e9 - lastRefill
	if elapsed > 0 {
		tokens = math.Min(float64(l.capacity), tokens+elapsed*l.refillRate())
	}
	st.Tokens = tokens
	if tokens < 1 {
		st.RetryAfter = time.Duration(math.Ceil((1-tokens)/l.refillRate())) * time.Second
	}
	return st
}

// localAcquire is the in-process fallback bucket with the same refill math.
func (l *Limiter) localAcquire(now time.Time, n int) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.degraded = true

	tokens := l.localTokensLocked(now)
	l.localAt = now
	if tokens >= float64(n) {
		l.local = tokens - float64(n)
		return true, 0
	}
	l.local = tokens
	retry := time.Duration(math.Ceil((float64(n)-tokens)/l.refillRate())) * time.Second
	return false, retry
}

func (l *Limiter) localTokensLocked(now time.Time) float64 {
	if !l.localInit {
		l.localInit = true
		l.local = float64(l.capacity)
		l.localAt = now
		return l.local
	}
	elapsed := now.Sub(l.localAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Min(float64(l.capacity), l.local+elapsed*l.refillRate())
}

func (l *Limiter) setDegraded(v bool) {
	l.mu.Lock()
	l.degraded = v
	l.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		var f float64
		fmt.Sscanf(t, "%f", &f)
		return int64(f)
	default:
		return 0
	}
}
