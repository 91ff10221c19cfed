package scraper

import (
	"context"

	"github.com/sells-group/lead-verifier/internal/model"
	"github.com/sells-group/lead-verifier/internal/resilience"
)

// Resilient retries transient failures and takes a misbehaving source out
// of rotation with a circuit breaker.
type Resilient struct {
	inner   Scraper
	policy  resilience.Policy
	breaker *resilience.Breaker
}

// NewResilient wraps inner. A nil breaker disables circuit breaking.
func NewResilient(inner Scraper, policy resilience.Policy, breaker *resilience.Breaker) *Resilient {
	return &Resilient{inner: inner, policy: policy, breaker: breaker}
}

// Name implements Scraper.
func (r *Resilient) Name() string { return r.inner.Name() }

// Unwrap implements Wrapper.
func (r *Resilient) Unwrap() Scraper { return r.inner }

// Breaker returns the circuit breaker, or nil.
func (r *Resilient) Breaker() *resilience.Breaker { return r.breaker }

// Verify implements Scraper.
func (r *Resilient) Verify(ctx context.Context, lead model.LeadInput) (*model.LeadVerification, error) {
	call := func(ctx context.Context) (*model.LeadVerification, error) {
		return r.inner.Verify(ctx, lead)
	}
	if r.breaker != nil {
		call = func(ctx context.Context) (*model.LeadVerification, error) {
			return resilience.Call(ctx, r.breaker, func(ctx context.Context) (*model.LeadVerification, error) {
				return r.inner.Verify(ctx, lead)
			})
		}
	}
	return resilience.Retry(ctx, r.policy, call)
}
