package scraper

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-verifier/internal/model"
	"github.com/sells-group/lead-verifier/internal/resilience"
)

// TruePeopleSearchKey is the registry key of the people-search scraper.
const TruePeopleSearchKey = "truepeoplesearch"

const (
	tpsBaseURL         = "https://www.truepeoplesearch.com"
	tpsNotFoundText    = "We could not find any records for that search criteria."
	tpsNotFoundSel     = "div.content-center div.row.pl-1.record-count div"
	tpsCaptchaSel      = "iframe[src*='captcha']"
	tpsEmailSection    = "Email Addresses"
	tpsMissingName     = "Lead is missing a name."
	tpsNoteNotFound    = "No records returned by TruePeopleSearch."
	tpsNoteNoEmails    = "Result page did not expose an email section."
	tpsDefaultTimeout  = 30 * time.Second
	tpsDefaultThrottle = 5 * time.Second
)

// TruePeopleSearchOptions configures the people-search scraper.
type TruePeopleSearchOptions struct {
	HTTPOptions `mapstructure:",squash" yaml:",inline"`
	BaseURL     string   `mapstructure:"base_url" yaml:"base_url"`
	Throttle    *float64 `mapstructure:"throttle_seconds" yaml:"throttle_seconds"`
}

// PersonQuery is the search sent to the people-search site.
type PersonQuery struct {
	FullName     string `json:"full_name"`
	CityStateZip string `json:"city_state_zip,omitempty"`
}

func (q PersonQuery) raw() map[string]any {
	m := map[string]any{"full_name": q.FullName, "city_state_zip": nil}
	if q.CityStateZip != "" {
		m["city_state_zip"] = q.CityStateZip
	}
	return m
}

// searchOutcome is what one results page yielded.
type searchOutcome struct {
	found  bool
	notes  []string
	emails []string
}

// TruePeopleSearch looks a lead up by name and location on
// truepeoplesearch.com and reports the listed email addresses.
type TruePeopleSearch struct {
	name      string
	baseURL   string
	throttle  time.Duration
	opts      TruePeopleSearchOptions
	transport http.RoundTripper
}

// NewTruePeopleSearch is the people-search factory.
func NewTruePeopleSearch(spec Spec) (Scraper, error) {
	var opts TruePeopleSearchOptions
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = tpsBaseURL
	}
	throttle := tpsDefaultThrottle
	if opts.Throttle != nil {
		throttle = time.Duration(*opts.Throttle * float64(time.Second))
	}
	return &TruePeopleSearch{
		name:      spec.NameOr(TruePeopleSearchKey),
		baseURL:   base,
		throttle:  throttle,
		opts:      opts,
		transport: spec.Transport,
	}, nil
}

// Name implements Scraper.
func (t *TruePeopleSearch) Name() string { return t.name }

// Kind implements Kinded.
func (t *TruePeopleSearch) Kind() string { return TruePeopleSearchKey }

// Verify implements Scraper. Definitive lookup failures come back as data
// with the query attached. Transient network failures are returned as errors
// so retry and circuit breaking can act on them.
func (t *TruePeopleSearch) Verify(ctx context.Context, lead model.LeadInput) (*model.LeadVerification, error) {
	fullName := lead.DisplayName()
	if fullName == "" {
		return &model.LeadVerification{
			Source:   t.name,
			Contacts: []model.ContactDetail{},
			RawData:  map[string]any{model.RawErrorKey: tpsMissingName},
		}, nil
	}

	query := PersonQuery{FullName: fullName, CityStateZip: lead.Location()}
	out, err := t.search(ctx, query)
	if err != nil {
		if resilience.IsTransient(err) || ctx.Err() != nil {
			return nil, err
		}
		return &model.LeadVerification{
			Source:   t.name,
			Contacts: []model.ContactDetail{},
			RawData:  map[string]any{model.RawErrorKey: err.Error(), "query": query.raw()},
		}, nil
	}

	contacts := make([]model.ContactDetail, 0, len(out.emails))
	emails := make([]map[string]any, 0, len(out.emails))
	for _, addr := range out.emails {
		contacts = append(contacts, model.ContactDetail{Type: model.ContactEmail, Value: addr})
		emails = append(emails, map[string]any{"address": addr})
	}
	notes := out.notes
	if notes == nil {
		notes = []string{}
	}
	return &model.LeadVerification{
		Source:   t.name,
		Contacts: contacts,
		RawData: map[string]any{
			"found":  out.found,
			"notes":  notes,
			"emails": emails,
			"query":  query.raw(),
		},
	}, nil
}

// QueryURL builds the results-page address for q.
func (t *TruePeopleSearch) QueryURL(q PersonQuery) string {
	params := url.Values{}
	params.Set("name", q.FullName)
	params.Set("citystatezip", q.CityStateZip)
	params.Set("rid", "0x0")
	return t.baseURL + "/results?" + params.Encode()
}

func (t *TruePeopleSearch) search(ctx context.Context, q PersonQuery) (*searchOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := newCollector(t.opts.HTTPOptions, t.opts.timeout(tpsDefaultTimeout), t.transport)
	tracker := &statusTracker{}
	tracker.attach(c)

	out := &searchOutcome{}
	var parseErr error
	c.OnHTML("html", func(e *colly.HTMLElement) {
		parseErr = parseResults(e.DOM, out)
	})

	target := t.QueryURL(q)
	if err := c.Visit(target); err != nil {
		return nil, eris.Wrapf(tracker.failure(err), "truepeoplesearch: fetch %s", target)
	}
	if parseErr != nil {
		return nil, parseErr
	}

	if t.throttle > 0 {
		timer := time.NewTimer(t.throttle)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	return out, nil
}

// parseResults reads a results page into out.
func parseResults(doc *goquery.Selection, out *searchOutcome) error {
	banner := strings.TrimSpace(doc.Find(tpsNotFoundSel).First().Text())
	if banner == tpsNotFoundText {
		out.notes = append(out.notes, tpsNoteNotFound)
		return nil
	}

	emails := extractSection(doc, tpsEmailSection)
	if len(emails) == 0 && doc.Find(tpsCaptchaSel).Length() > 0 {
		return eris.Wrap(ErrBlocked, "truepeoplesearch: captcha challenge")
	}

	out.emails = emails
	out.found = len(emails) > 0
	if !out.found {
		out.notes = append(out.notes, tpsNoteNoEmails)
	}
	return nil
}

// extractSection finds the first element whose text is exactly title and
// returns the trimmed texts of the siblings that follow it.
func extractSection(doc *goquery.Selection, title string) []string {
	header := doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == title
	}).First()
	if header.Length() == 0 {
		return nil
	}

	var values []string
	header.Parent().Children().Slice(1, goquery.ToEnd).Each(func(_ int, s *goquery.Selection) {
		if v := strings.TrimSpace(s.Text()); v != "" {
			values = append(values, v)
		}
	})
	return values
}
