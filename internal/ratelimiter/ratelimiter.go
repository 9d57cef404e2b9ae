package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles byte throughput using a token bucket where one token
// is one byte.
//
// It wraps golang.org/x/time/rate and adds:
//   - Chunked waiting so a single request larger than the burst still
//     succeeds (rate.Limiter.WaitN rejects n > burst)
//   - An unlimited mode when the configured rate is zero
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter.
//
// Parameters:
//   - bytesPerSecond: Sustained rate. Zero disables limiting.
//   - burst: Bucket capacity in bytes. Zero defaults to bytesPerSecond.
func New(bytesPerSecond, burst uint) *RateLimiter {
	if bytesPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = bytesPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), int(burst)),
	}
}

// Unlimited reports whether the limiter never blocks.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow consumes one token without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// WaitN blocks until n tokens have been consumed or ctx is done.
//
// Requests larger than the burst are split into burst-sized pieces.
func (r *RateLimiter) WaitN(ctx context.Context, n int) error {
	if r.Unlimited() || n <= 0 {
		return ctx.Err()
	}

	burst := r.limiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := r.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// Burst returns the bucket capacity in bytes.
func (r *RateLimiter) Burst() int {
	return r.limiter.Burst()
}

// Tokens returns the currently available tokens. Useful for tests and debugging.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
