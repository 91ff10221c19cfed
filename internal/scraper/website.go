package scraper

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-verifier/internal/model"
)

// WebsiteKey is the registry key of the website scraper.
const WebsiteKey = "website"

// Message recorded when a lead carries no site to visit.
const msgNoWebsite = "lead has no website"

// WebsiteOptions configures the website scraper.
type WebsiteOptions struct {
	HTTPOptions `mapstructure:",squash" yaml:",inline"`
}

// Website visits the lead's own website and collects mailto: and tel:
// links plus email addresses written in the page text.
type Website struct {
	name      string
	opts      WebsiteOptions
	transport http.RoundTripper
}

// NewWebsite is the website factory.
func NewWebsite(spec Spec) (Scraper, error) {
	var opts WebsiteOptions
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	return &Website{name: spec.NameOr(WebsiteKey), opts: opts, transport: spec.Transport}, nil
}

// Name implements Scraper.
func (w *Website) Name() string { return w.name }

// Kind implements Kinded.
func (w *Website) Kind() string { return WebsiteKey }

// Verify implements Scraper.
func (w *Website) Verify(ctx context.Context, lead model.LeadInput) (*model.LeadVerification, error) {
	site := websiteOf(lead)
	if site == "" {
		return &model.LeadVerification{
			Source:   w.name,
			Contacts: []model.ContactDetail{},
			RawData:  map[string]any{model.RawErrorKey: msgNoWebsite},
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := newCollector(w.opts.HTTPOptions, w.opts.timeout(15*time.Second), w.transport)
	tracker := &statusTracker{}
	tracker.attach(c)

	seen := make(map[string]struct{})
	var hits []contactHit
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := strings.TrimSpace(e.Attr("href"))
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "mailto:"):
			addr := href[len("mailto:"):]
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if dec, err := url.PathUnescape(addr); err == nil {
				addr = dec
			}
			addContact(seen, &hits, model.ContactEmail, addr)
		case strings.HasPrefix(lower, "tel:"):
			num := href[len("tel:"):]
			if dec, err := url.PathUnescape(num); err == nil {
				num = dec
			}
			addContact(seen, &hits, model.ContactPhone, num)
		}
	})
	c.OnHTML("body", func(e *colly.HTMLElement) {
		for _, m := range emailPattern.FindAllString(e.Text, -1) {
			addContact(seen, &hits, model.ContactEmail, m)
		}
	})

	target := siteURL(site)
	if err := c.Visit(target); err != nil {
		return nil, eris.Wrapf(tracker.failure(err), "website: fetch %s", target)
	}

	contacts := make([]model.ContactDetail, 0, len(hits))
	for _, h := range hits {
		contacts = append(contacts, model.ContactDetail{
			Type:     h.typ,
			Value:    h.value,
			Metadata: map[string]any{"url": target},
		})
	}
	return &model.LeadVerification{
		Source:   w.name,
		Contacts: contacts,
		RawData: map[string]any{
			"url":    target,
			"status": tracker.status,
		},
	}, nil
}

func websiteOf(lead model.LeadInput) string {
	for _, key := range []string{model.MetaWebsite, "url", "domain"} {
		if v := lead.Metadata.String(key); v != "" {
			return v
		}
	}
	return ""
}

func siteURL(site string) string {
	lower := strings.ToLower(site)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return site
	}
	return "https://" + strings.TrimPrefix(site, "//")
}
