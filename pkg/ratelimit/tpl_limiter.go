// Package ratelimit provides per-key sliding window rate limiters.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// RedisLimiter - Redis sorted-set sliding window
// =============================================================================

// slidingWindowScript trims the window, counts and records atomically.
// Returns 1 when the request is admitted and 0 otherwise.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < max_requests then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return 1
	end
	return 0
`)

// RedisLimiter implements sliding window rate limiting shared by every
// process pointed at the same Redis.
type RedisLimiter struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a Redis backed limiter
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		redis:  client,
		prefix: "ratelimit:",
		now:    time.Now,
	}
}

// Allow records one request for key and reports whether it is within limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := l.now()
	windowStart := now.Add(-window)

	result, err := slidingWindowScript.Run(ctx, l.redis, []string{l.prefix + key},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		limit,
		window.Milliseconds(),
		uuid.NewString(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return result == 1, nil
}

// Reset clears recorded requests for key
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, l.prefix+key).Err()
}

// =============================================================================
// MemoryLimiter - in-process sliding window (single instance deployments)
// =============================================================================

// MemoryLimiter keeps a request log per key in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	longest  time.Duration // widest window passed to Allow
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewMemoryLimiter creates an in-memory limiter. Keys idle for longer than
// maxWindow, or the widest window seen by Allow if that is longer, are purged
// every cleanupInterval; a non-positive interval disables the purge.
func NewMemoryLimiter(cleanupInterval, maxWindow time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		requests: make(map[string][]time.Time),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go l.cleanupLoop(cleanupInterval, maxWindow)
	}
	return l
}

// Allow records one request for key and reports whether it is within limit.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := l.now()
	windowStart := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if window > l.longest {
		l.longest = window
	}
	log := trimBefore(l.requests[key], windowStart)
	if len(log) >= limit {
		l.requests[key] = log
		return false, nil
	}
	l.requests[key] = append(log, now)
	return true, nil
}

// Reset clears recorded requests for key
func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.requests, key)
	l.mu.Unlock()
	return nil
}

// Close stops the cleanup goroutine
func (l *MemoryLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) cleanupLoop(interval, maxWindow time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(maxWindow)
		case <-l.stop:
			return
		}
	}
}

func (l *MemoryLimiter) cleanup(maxWindow time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-max(maxWindow, l.longest))

	for key, log := range l.requests {
		log = trimBefore(log, cutoff)
		if len(log) == 0 {
			delete(l.requests, key)
		} else {
			l.requests[key] = log
		}
	}
}

// trimBefore drops timestamps at or before cutoff. log is sorted ascending.
func trimBefore(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	return log[i:]
}
