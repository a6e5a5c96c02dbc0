package toolface

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/time/rate"

	"docmind/internal/apperr"
)

// RateLimiter bounds calls per tool operation: each operation gets its own
// token bucket, and every bucket uses the same rps/burst pair. There is no
// per-operation rate setting.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewRateLimiter builds a RateLimiter with the given default rps/burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{limiters: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (r *RateLimiter) limiterFor(op string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[op]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.rps), r.burst)
		r.limiters[op] = l
	}
	return l
}

// Allow reports whether a call to op may proceed right now.
func (r *RateLimiter) Allow(op string) error {
	if !r.limiterFor(op).Allow() {
		return apperr.New(apperr.Retriable, "rate limit exceeded for "+op, nil)
	}
	return nil
}

// Wait blocks (bounded by ctx) until a call to op is permitted.
func (r *RateLimiter) Wait(ctx context.Context, op string) error {
	if err := r.limiterFor(op).Wait(ctx); err != nil {
		return apperr.New(apperr.Retriable, "rate limiter wait for "+op, err)
	}
	return nil
}

// rateLimitedOp decorates an Operation with a per-operation token-bucket
// check ahead of Call, so BuildRegistry can apply rate limiting uniformly
// across every tool without touching each handler.
type rateLimitedOp struct {
	inner   Operation
	limiter *RateLimiter
}

func (r rateLimitedOp) Name() string                  { return r.inner.Name() }
func (r rateLimitedOp) Description() string           { return r.inner.Description() }
func (r rateLimitedOp) JSONSchema() map[string]any    { return r.inner.JSONSchema() }
func (r rateLimitedOp) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	if err := r.limiter.Allow(r.inner.Name()); err != nil {
		return nil, err
	}
	return r.inner.Call(ctx, raw)
}
