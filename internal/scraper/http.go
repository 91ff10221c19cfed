package scraper

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/sells-group/lead-verifier/internal/resilience"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; lead-verifier/1.0)"

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// HTTPOptions are shared by the network-backed scrapers.
type HTTPOptions struct {
	TimeoutSecs float64 `mapstructure:"timeout_secs" yaml:"timeout_secs"`
	UserAgent   string  `mapstructure:"user_agent" yaml:"user_agent"`
}

func (o HTTPOptions) timeout(def time.Duration) time.Duration {
	if o.TimeoutSecs > 0 {
		return time.Duration(o.TimeoutSecs * float64(time.Second))
	}
	return def
}

// newCollector builds a single-use synchronous collector. Collectors hold
// their callbacks, so each lookup gets its own.
func newCollector(opts HTTPOptions, timeout time.Duration, transport http.RoundTripper) *colly.Collector {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	c := colly.NewCollector(
		colly.UserAgent(ua),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)
	if transport != nil {
		c.WithTransport(transport)
	}
	return c
}

// statusTracker records the HTTP status of the visit so callers can turn
// colly's text errors into a typed StatusError.
type statusTracker struct {
	status int
	err    error
}

func (t *statusTracker) attach(c *colly.Collector) {
	c.OnResponse(func(r *colly.Response) {
		t.status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= http.StatusBadRequest {
			t.status = r.StatusCode
			t.err = &resilience.StatusError{URL: r.Request.URL.String(), StatusCode: r.StatusCode}
			return
		}
		t.err = err
	})
}

// failure prefers the typed status error over the visit error.
func (t *statusTracker) failure(visitErr error) error {
	if t.err != nil {
		return t.err
	}
	return visitErr
}

func addContact(seen map[string]struct{}, list *[]contactHit, typ, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	key := typ + "::" + strings.ToLower(value)
	if _, ok := seen[key]; ok {
		return
	}
	seen[key] = struct{}{}
	*list = append(*list, contactHit{typ: typ, value: value})
}

type contactHit struct {
	typ   string
	value string
}
