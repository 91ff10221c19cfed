// Package scraper defines the data-source capability the orchestrator fans
// out to, the decorators layered over it, and the built-in sources.
package scraper

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-verifier/internal/model"
)

var (
	// ErrBlocked is returned when a site answers with a CAPTCHA or similar
	// challenge instead of results.
	ErrBlocked = eris.New("scraper: blocked by challenge page")
	// ErrNoResult is returned when a scraper produced neither a result nor
	// an error.
	ErrNoResult = eris.New("scraper: returned no result")
)

// Scraper looks a lead up in one data source.
type Scraper interface {
	// Name is the display name. Results carry it as their source.
	Name() string

	// Verify returns what the source knows about lead. A non-nil error means
	// the lookup failed; the orchestrator turns it into a failed verification.
	Verify(ctx context.Context, lead model.LeadInput) (*model.LeadVerification, error)
}

// Wrapper is implemented by decorators so callers can reach the scraper
// they wrap.
type Wrapper interface {
	Unwrap() Scraper
}

// Unwrap peels every decorator off s and returns the innermost scraper.
func Unwrap(s Scraper) Scraper {
	for {
		w, ok := s.(Wrapper)
		if !ok {
			return s
		}
		s = w.Unwrap()
	}
}

// As finds the first layer in the decorator chain of s that has type T.
func As[T any](s Scraper) (T, bool) {
	for s != nil {
		if t, ok := s.(T); ok {
			return t, true
		}
		w, ok := s.(Wrapper)
		if !ok {
			break
		}
		s = w.Unwrap()
	}
	var zero T
	return zero, false
}

// Func adapts a plain function to Scraper.
type Func struct {
	name string
	fn   func(ctx context.Context, lead model.LeadInput) (*model.LeadVerification, error)
}

// NewFunc returns a Scraper named name that calls fn.
func NewFunc(name string, fn func(ctx context.Context, lead model.LeadInput) (*model.LeadVerification, error)) *Func {
	return &Func{name: name, fn: fn}
}

// Name implements Scraper.
func (f *Func) Name() string { return f.name }

// Verify implements Scraper.
func (f *Func) Verify(ctx context.Context, lead model.LeadInput) (*model.LeadVerification, error) {
	return f.fn(ctx, lead)
}
