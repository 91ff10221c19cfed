// Package orchestrator runs every configured scraper against every lead and
// merges the per-source results, one aggregated record per lead.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-verifier/internal/merge"
	"github.com/sells-group/lead-verifier/internal/metrics"
	"github.com/sells-group/lead-verifier/internal/model"
	"github.com/sells-group/lead-verifier/internal/scraper"
)

// Mode selects how one lead's scrapers are run.
type Mode string

const (
	// Sequential runs scrapers one after another in configured order.
	Sequential Mode = "sequential"
	// Concurrent runs a lead's scrapers in parallel on a bounded pool.
	Concurrent Mode = "concurrent"
)

// ParseMode converts a string into a Mode. Empty means Sequential.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Sequential:
		return Sequential, nil
	case Concurrent:
		return Concurrent, nil
	default:
		return "", eris.Errorf("orchestrator: unknown mode %q (valid: sequential, concurrent)", s)
	}
}

// Options configures an Orchestrator.
type Options struct {
	// Merge folds one lead's verifications. Defaults to merge.Merge.
	Merge merge.Func
	// Mode defaults to Sequential.
	Mode Mode
	// MaxWorkers caps the per-lead pool in Concurrent mode. Zero or less
	// sizes the pool to the scraper count.
	MaxWorkers int
	// RaiseOnError aborts the whole batch on the first scraper failure
	// instead of recording it.
	RaiseOnError bool
	// ScraperTimeout bounds a single scraper call. Zero means no limit.
	ScraperTimeout time.Duration
	// Metrics is optional.
	Metrics *metrics.Metrics
	// OnResult, when set, is called after each lead is merged.
	OnResult func(index, total int, result *model.AggregatedLeadResult)
}

// ScraperError is returned by Verify in RaiseOnError mode.
type ScraperError struct {
	Scraper string
	Lead    int
	Err     error
}

func (e *ScraperError) Error() string {
	return "orchestrator: scraper " + e.Scraper + " failed: " + e.Err.Error()
}

func (e *ScraperError) Unwrap() error { return e.Err }

var errCancelled = eris.New("orchestrator: batch cancelled")

// Orchestrator drives a fixed, ordered scraper set over batches of leads.
// It is safe for concurrent use if the scrapers are.
type Orchestrator struct {
	scrapers []scraper.Scraper
	opts     Options
	log      *zap.Logger
}

// New creates an orchestrator over scrapers, which keep their order.
func New(scrapers []scraper.Scraper, opts Options) *Orchestrator {
	if opts.Merge == nil {
		opts.Merge = merge.Merge
	}
	if opts.Mode == "" {
		opts.Mode = Sequential
	}
	list := make([]scraper.Scraper, len(scrapers))
	copy(list, scrapers)
	return &Orchestrator{
		scrapers: list,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "orchestrator")),
	}
}

// Scrapers returns the configured scrapers in order.
func (o *Orchestrator) Scrapers() []scraper.Scraper {
	out := make([]scraper.Scraper, len(o.scrapers))
	copy(out, o.scrapers)
	return out
}

// Mode reports the effective fan-out mode.
func (o *Orchestrator) Mode() Mode { return o.opts.Mode }

// Verify processes leads in input order and returns one aggregated result
// per lead. If ctx is cancelled, the leads finished so far are returned with
// a nil error; a lead interrupted mid fan-out is dropped. In RaiseOnError
// mode the first scraper failure is returned and no results are.
func (o *Orchestrator) Verify(ctx context.Context, leads []model.LeadInput) ([]*model.AggregatedLeadResult, error) {
	start := time.Now()
	results := make([]*model.AggregatedLeadResult, 0, len(leads))
	failures := 0

	for i, lead := range leads {
		if ctx.Err() != nil {
			o.log.Info("verification cancelled", zap.Int("processed", len(results)), zap.Int("total", len(leads)))
			return results, nil
		}

		leadStart := time.Now()
		raw, err := o.fanOut(ctx, i, lead)
		if eris.Is(err, errCancelled) {
			o.log.Info("verification cancelled", zap.Int("processed", len(results)), zap.Int("total", len(leads)))
			return results, nil
		}
		if err != nil {
			return nil, err
		}

		agg := o.opts.Merge(lead, raw)
		failures += len(agg.Failures())
		o.opts.Metrics.ObserveLead(len(agg.Contacts), time.Since(leadStart))
		results = append(results, agg)

		if o.opts.OnResult != nil {
			o.opts.OnResult(i, len(leads), agg)
		}
	}

	o.log.Info("verification complete",
		zap.Int("leads", len(results)),
		zap.Int("scrapers", len(o.scrapers)),
		zap.String("mode", string(o.opts.Mode)),
		zap.Int("scraper_failures", failures),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

// fanOut runs every scraper for one lead and returns their verifications in
// configured order.
func (o *Orchestrator) fanOut(ctx context.Context, idx int, lead model.LeadInput) ([]*model.LeadVerification, error) {
	out := make([]*model.LeadVerification, len(o.scrapers))

	if o.opts.Mode != Concurrent || len(o.scrapers) < 2 {
		for j, s := range o.scrapers {
			if ctx.Err() != nil {
				return nil, errCancelled
			}
			v, err := o.execute(ctx, idx, s, lead)
			if err != nil {
				return nil, o.raised(ctx, err)
			}
			out[j] = v
		}
	} else {
		workers := o.opts.MaxWorkers
		if workers <= 0 {
			workers = len(o.scrapers)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for j, s := range o.scrapers {
			g.Go(func() error {
				v, err := o.execute(gctx, idx, s, lead)
				if err != nil {
					return err
				}
				out[j] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, o.raised(ctx, err)
		}
	}

	if ctx.Err() != nil {
		return nil, errCancelled
	}
	return out, nil
}

// raised maps a raised scraper error to errCancelled when the batch itself
// was cancelled.
func (o *Orchestrator) raised(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errCancelled
	}
	return err
}

type reply struct {
	v        *model.LeadVerification
	err      error
	panicked bool
}

// execute runs one scraper with failure isolation. It returns an error only
// in RaiseOnError mode; otherwise failures come back as failed
// verifications carrying the error text.
func (o *Orchestrator) execute(ctx context.Context, idx int, s scraper.Scraper, lead model.LeadInput) (*model.LeadVerification, error) {
	name := s.Name()
	callCtx := ctx
	if o.opts.ScraperTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.opts.ScraperTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome := metrics.OutcomeSuccess

	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: eris.Errorf("scraper %s panicked: %v", name, r), panicked: true}
			}
		}()
		v, err := s.Verify(callCtx, lead)
		ch <- reply{v: v, err: err}
	}()

	var res reply
	select {
	case res = <-ch:
		if res.panicked {
			outcome = metrics.OutcomePanic
		}
		if res.err == nil && res.v == nil {
			res.err = scraper.ErrNoResult
		}
	case <-callCtx.Done():
		if ctx.Err() == nil {
			outcome = metrics.OutcomeTimeout
			res.err = eris.Errorf("scraper %s timed out after %s", name, o.opts.ScraperTimeout)
		} else {
			res.err = ctx.Err()
		}
	}

	if res.err != nil {
		if outcome == metrics.OutcomeSuccess {
			outcome = metrics.OutcomeError
		}
		o.opts.Metrics.ObserveScraper(name, outcome, time.Since(start))

		if o.opts.RaiseOnError {
			return nil, &ScraperError{Scraper: name, Lead: idx, Err: res.err}
		}
		o.log.Error("scraper failed",
			zap.String("scraper", name),
			zap.Int("lead", idx),
			zap.Error(res.err),
		)
		return model.FailedVerification(name, res.err), nil
	}

	o.opts.Metrics.ObserveScraper(name, outcome, time.Since(start))
	v := res.v
	if v.Source == "" {
		cp := *v
		cp.Source = name
		v = &cp
	}
	return v, nil
}
