package scraper

import (
	"context"
	"strings"

	"github.com/sells-group/lead-verifier/internal/model"
)

// EchoKey is the registry key of the echo scraper.
const EchoKey = "echo"

// EchoOptions configures the echo scraper.
type EchoOptions struct {
	IncludeMetadata bool `mapstructure:"include_metadata" yaml:"include_metadata"`
}

// Echo reflects the contact details already on the lead. It needs no
// network and is used for smoke runs and tests.
type Echo struct {
	name string
	opts EchoOptions
}

// NewEcho is the echo factory.
func NewEcho(spec Spec) (Scraper, error) {
	var opts EchoOptions
	if err := spec.Decode(&opts); err != nil {
		return nil, err
	}
	return &Echo{name: spec.NameOr(EchoKey), opts: opts}, nil
}

// Name implements Scraper.
func (e *Echo) Name() string { return e.name }

// Kind implements Kinded.
func (e *Echo) Kind() string { return EchoKey }

// Verify implements Scraper.
func (e *Echo) Verify(_ context.Context, lead model.LeadInput) (*model.LeadVerification, error) {
	contacts := []model.ContactDetail{}
	if p := strings.TrimSpace(lead.Phone); p != "" {
		contacts = append(contacts, model.ContactDetail{Type: model.ContactPhone, Value: p})
	}
	if m := strings.TrimSpace(lead.Email); m != "" {
		contacts = append(contacts, model.ContactDetail{Type: model.ContactEmail, Value: m})
	}

	v := &model.LeadVerification{Source: e.name, Contacts: contacts}
	if e.opts.IncludeMetadata {
		raw := make(map[string]any, len(lead.Metadata))
		for k, val := range lead.Metadata {
			raw[k] = val
		}
		v.RawData = raw
	}
	return v, nil
}
