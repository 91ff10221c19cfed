package scraper

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-verifier/internal/model"
)

// RateLimiter enforces a minimum interval between granted calls. Callers
// are served one per interval in arrival order. A nil limiter never blocks.
type RateLimiter struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// NewRateLimiter returns a limiter allowing callsPerMinute calls, or nil when
// no positive limit is configured.
func NewRateLimiter(callsPerMinute float64) *RateLimiter {
	if callsPerMinute <= 0 {
		return nil
	}
	interval := time.Duration(float64(time.Minute) / callsPerMinute)
	return &RateLimiter{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Interval is the minimum gap between two granted calls.
func (r *RateLimiter) Interval() time.Duration {
	if r == nil {
		return 0
	}
	return r.interval
}

// Acquire blocks until the next slot opens or ctx is done.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "scraper: rate limit wait")
	}
	return nil
}

// RateLimited throttles a scraper with a shared rate limiter and a fixed
// pause after each successful call. Errors from the wrapped scraper pass
// through untouched.
type RateLimited struct {
	inner   Scraper
	name    string
	delay   time.Duration
	limiter *RateLimiter
}

// NewRateLimited wraps inner. An empty name keeps the inner name; a nil
// limiter and zero delay make the wrapper a pass-through.
func NewRateLimited(inner Scraper, name string, delay time.Duration, limiter *RateLimiter) *RateLimited {
	return &RateLimited{inner: inner, name: name, delay: delay, limiter: limiter}
}

// Name implements Scraper.
func (r *RateLimited) Name() string {
	if r.name != "" {
		return r.name
	}
	return r.inner.Name()
}

// Unwrap implements Wrapper.
func (r *RateLimited) Unwrap() Scraper { return r.inner }

// Delay returns the fixed post-call pause.
func (r *RateLimited) Delay() time.Duration { return r.delay }

// Limiter returns the rate limiter, which may be nil.
func (r *RateLimited) Limiter() *RateLimiter { return r.limiter }

// Verify implements Scraper.
func (r *RateLimited) Verify(ctx context.Context, lead model.LeadInput) (*model.LeadVerification, error) {
	if err := r.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	result, err := r.inner.Verify(ctx, lead)
	if err != nil {
		return nil, err
	}

	if r.delay > 0 {
		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	return result, nil
}
