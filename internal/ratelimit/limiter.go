// Package ratelimit counts requests per key in fixed windows. Counters live
// in Redis when several API replicas share limits, or in process memory.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Rule allows Requests per Window.
type Rule struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether the rule limits anything.
func (r Rule) Enabled() bool {
	return r.Requests > 0 && r.Window > 0
}

// Store increments the counter for key and returns the new value. The first
// increment of a key starts its expiry of ttl.
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the window resets, rounded up to whole
// seconds and never below one.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	if rounded := wait.Truncate(time.Second); rounded != wait {
		return rounded + time.Second
	}
	return wait
}

// Limiter applies rules against a Store.
type Limiter struct {
	store  Store
	prefix string
	now    func() time.Time
}

func New(store Store) *Limiter {
	return &Limiter{store: store, prefix: "zg:ratelimit:", now: time.Now}
}

// Allow counts one request for key under rule. Keys are bucketed by window
// start, so counters reset on window boundaries.
func (l *Limiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	now := l.now()
	if !rule.Enabled() {
		return Decision{Allowed: true, ResetAt: now}, nil
	}

	start := now.Truncate(rule.Window)
	reset := start.Add(rule.Window)
	bucket := fmt.Sprintf("%s%s:%d", l.prefix, key, start.Unix())

	count, err := l.store.Incr(ctx, bucket, reset.Sub(now))
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr %s: %w", key, err)
	}

	remaining := rule.Requests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(rule.Requests),
		Limit:     rule.Requests,
		Remaining: remaining,
		ResetAt:   reset,
	}, nil
}
