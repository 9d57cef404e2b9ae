package bulk

import (
	"context"
	"io"

	"github.com/linpawslitap/mds-scaling/internal/ratelimiter"
)

// ThrottledStore limits the write throughput of an underlying Store.
// Reads and metadata calls pass through untouched.
type ThrottledStore struct {
	Store
	limiter *ratelimiter.RateLimiter
}

// NewThrottledStore wraps inner so that writers consume one token per byte.
// A limiter in unlimited mode returns inner unchanged.
func NewThrottledStore(inner Store, limiter *ratelimiter.RateLimiter) Store {
	if limiter == nil || limiter.Unlimited() {
		return inner
	}
	return &ThrottledStore{Store: inner, limiter: limiter}
}

func (s *ThrottledStore) Create(ctx context.Context, path string, opts CreateOptions) (Writer, error) {
	w, err := s.Store.Create(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return &throttledWriter{Writer: w, ctx: ctx, limiter: s.limiter}, nil
}

func (s *ThrottledStore) Append(ctx context.Context, path string, bufferSize int, progress ProgressFunc) (Writer, error) {
	w, err := s.Store.Append(ctx, path, bufferSize, progress)
	if err != nil {
		return nil, err
	}
	return &throttledWriter{Writer: w, ctx: ctx, limiter: s.limiter}, nil
}

// Unwrap returns the wrapped store.
func (s *ThrottledStore) Unwrap() Store {
	return s.Store
}

type throttledWriter struct {
	Writer
	ctx     context.Context
	limiter *ratelimiter.RateLimiter
}

func (w *throttledWriter) Write(p []byte) (int, error) {
	if err := w.limiter.WaitN(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.Writer.Write(p)
}

var _ io.Writer = (*throttledWriter)(nil)
