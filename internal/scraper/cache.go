package scraper

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-verifier/internal/metrics"
	"github.com/sells-group/lead-verifier/internal/model"
)

// Cached memoizes successful verifications per lead identity, so a lead
// that appears twice in a batch is only looked up once per source.
type Cached struct {
	inner   Scraper
	cache   *lru.Cache[string, *model.LeadVerification]
	metrics *metrics.Metrics
}

// NewCached wraps inner with an LRU of size entries.
func NewCached(inner Scraper, size int, m *metrics.Metrics) (*Cached, error) {
	cache, err := lru.New[string, *model.LeadVerification](size)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: create cache for %s", inner.Name())
	}
	return &Cached{inner: inner, cache: cache, metrics: m}, nil
}

// Name implements Scraper.
func (c *Cached) Name() string { return c.inner.Name() }

// Unwrap implements Wrapper.
func (c *Cached) Unwrap() Scraper { return c.inner }

// Len reports the number of cached verifications.
func (c *Cached) Len() int { return c.cache.Len() }

// Verify implements Scraper. Failed verifications are never cached.
func (c *Cached) Verify(ctx context.Context, lead model.LeadInput) (*model.LeadVerification, error) {
	key := lead.Key()
	if v, ok := c.cache.Get(key); ok {
		c.metrics.IncCacheHit(c.Name())
		return v, nil
	}

	v, err := c.inner.Verify(ctx, lead)
	if err == nil && v != nil && !v.Failed() {
		c.cache.Add(key, v)
	}
	return v, err
}
