package scraper

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-verifier/internal/config"
	"github.com/sells-group/lead-verifier/internal/metrics"
	"github.com/sells-group/lead-verifier/internal/resilience"
)

// BuildOptions carries shared collaborators for Build.
type BuildOptions struct {
	Metrics   *metrics.Metrics
	Transport http.RoundTripper
}

// Build constructs the enabled scrapers from their declarations, in
// configured order. Each scraper is layered, outermost first, as
// cache -> retry/circuit breaker -> rate limit/delay -> scraper.
// Disabled entries are skipped before construction.
func Build(decls []config.ScraperConfig, reg *Registry, opts BuildOptions) ([]Scraper, error) {
	log := zap.L().With(zap.String("component", "scraper"))

	out := make([]Scraper, 0, len(decls))
	for i, decl := range decls {
		if !decl.IsEnabled() {
			log.Debug("skipping disabled scraper", zap.String("scraper", decl.DisplayName()))
			continue
		}
		if decl.Class == "" {
			return nil, eris.Wrapf(config.ErrConfiguration,
				"scraper: declaration %d is missing required 'class' field", i)
		}

		s, err := reg.Build(decl.Class, Spec{
			Name:      decl.Name,
			Options:   decl.Options,
			Transport: opts.Transport,
		})
		if err != nil {
			return nil, err
		}

		s = NewRateLimited(s, "",
			time.Duration(decl.DelaySeconds*float64(time.Second)),
			NewRateLimiter(decl.RateLimitPerMinute))

		if decl.Retry.MaxAttempts > 1 || decl.Circuit.FailureThreshold > 0 {
			s = withResilience(s, decl, opts.Metrics)
		}

		if decl.CacheSize > 0 {
			s, err = NewCached(s, decl.CacheSize, opts.Metrics)
			if err != nil {
				return nil, err
			}
		}

		log.Debug("built scraper",
			zap.String("scraper", s.Name()),
			zap.String("class", decl.Class),
			zap.Float64("delay_seconds", decl.DelaySeconds),
			zap.Float64("rate_limit_per_minute", decl.RateLimitPerMinute),
		)
		out = append(out, s)
	}
	return out, nil
}

func withResilience(s Scraper, decl config.ScraperConfig, m *metrics.Metrics) Scraper {
	name := s.Name()

	policy := resilience.NewPolicy(decl.Retry.MaxAttempts, decl.Retry.InitialBackoffMs)
	logRetry := resilience.LogRetries(name)
	policy.OnRetry = func(attempt int, err error) {
		m.IncRetry(name)
		logRetry(attempt, err)
	}

	var breaker *resilience.Breaker
	if decl.Circuit.FailureThreshold > 0 {
		breaker = resilience.NewBreaker(name, resilience.BreakerConfig{
			FailureThreshold: decl.Circuit.FailureThreshold,
			Cooldown:         time.Duration(decl.Circuit.ResetTimeoutSecs) * time.Second,
			OnChange: func(source string, from, to resilience.State) {
				zap.L().Warn("scraper: circuit state change",
					zap.String("scraper", source),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		})
	}
	return NewResilient(s, policy, breaker)
}

// Info describes a built scraper for listings.
type Info struct {
	Name         string  `json:"name" yaml:"name"`
	Kind         string  `json:"kind,omitempty" yaml:"kind,omitempty"`
	MinInterval  string  `json:"min_interval,omitempty" yaml:"min_interval,omitempty"`
	DelaySeconds float64 `json:"delay_seconds,omitempty" yaml:"delay_seconds,omitempty"`
	Retries      int     `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	Circuit      string  `json:"circuit,omitempty" yaml:"circuit,omitempty"`
	Cached       int     `json:"cached,omitempty" yaml:"cached,omitempty"`
}

// Kinded is implemented by built-in scrapers to report their registry key.
type Kinded interface {
	Kind() string
}

// Describe walks the decorator chain of s.
func Describe(s Scraper) Info {
	info := Info{Name: s.Name()}
	if k, ok := As[Kinded](s); ok {
		info.Kind = k.Kind()
	}
	if rl, ok := As[*RateLimited](s); ok {
		if iv := rl.Limiter().Interval(); iv > 0 {
			info.MinInterval = iv.String()
		}
		info.DelaySeconds = rl.Delay().Seconds()
	}
	if r, ok := As[*Resilient](s); ok {
		info.Retries = r.policy.Attempts
		if b := r.Breaker(); b != nil {
			info.Circuit = b.State().String()
		}
	}
	if c, ok := As[*Cached](s); ok {
		info.Cached = c.Len()
	}
	return info
}
