// Package model holds the value types shared by ingestion, scrapers, the
// orchestrator and the merge engine.
package model

import (
	"fmt"
	"slices"
	"strings"
)

// Well-known metadata keys populated by ingestion adapters.
const (
	MetaCity       = "city"
	MetaState      = "state"
	MetaCompany    = "company"
	MetaZip        = "zip"
	MetaPostalCode = "postal_code"
	MetaEmails     = "emails"
	MetaPhones     = "phones"
	MetaWebsite    = "website"
	MetaFullName   = "full_name"
	MetaFirstName  = "first_name"
	MetaLastName   = "last_name"
)

// Metadata is the open-ended key/value bag attached to a lead. Values are
// strings, scalars, or string lists.
type Metadata map[string]any

// LeadInput is one input record. It is built once by an ingestion adapter and
// treated as read-only afterwards.
type LeadInput struct {
	Name      string   `json:"name,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Email     string   `json:"email,omitempty"`
	Metadata  Metadata `json:"metadata,omitempty"`
}

// DisplayName returns the full name, falling back to "first last".
func (l LeadInput) DisplayName() string {
	if name := strings.TrimSpace(l.Name); name != "" {
		return name
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{l.FirstName, l.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// City returns metadata["city"] or "".
func (l LeadInput) City() string { return l.Metadata.String(MetaCity) }

// State returns metadata["state"] or "".
func (l LeadInput) State() string { return l.Metadata.String(MetaState) }

// Company returns metadata["company"] or "".
func (l LeadInput) Company() string { return l.Metadata.String(MetaCompany) }

// PostalCode returns metadata["zip"], then metadata["postal_code"].
func (l LeadInput) PostalCode() string {
	if z := l.Metadata.String(MetaZip); z != "" {
		return z
	}
	return l.Metadata.String(MetaPostalCode)
}

// Location joins city, state and postal code as "City, ST 12345".
// Returns "" when none are known.
func (l LeadInput) Location() string {
	var cityState []string
	for _, p := range []string{l.City(), l.State()} {
		if p != "" {
			cityState = append(cityState, p)
		}
	}
	var parts []string
	if len(cityState) > 0 {
		parts = append(parts, strings.Join(cityState, ", "))
	}
	if zip := l.PostalCode(); zip != "" {
		parts = append(parts, zip)
	}
	return strings.Join(parts, " ")
}

// Emails returns metadata["emails"], or the primary email when the list is
// absent.
func (l LeadInput) Emails() []string {
	if list := l.Metadata.Strings(MetaEmails); len(list) > 0 {
		return list
	}
	if e := strings.TrimSpace(l.Email); e != "" {
		return []string{e}
	}
	return nil
}

// Phones returns metadata["phones"], or the primary phone when the list is
// absent.
func (l LeadInput) Phones() []string {
	if list := l.Metadata.Strings(MetaPhones); len(list) > 0 {
		return list
	}
	if p := strings.TrimSpace(l.Phone); p != "" {
		return []string{p}
	}
	return nil
}

// Key identifies a lead by value over its core fields and every non-empty
// metadata entry, in key order. Two leads with equal keys are treated as
// the same lead, so anything a scraper reads must be part of it.
func (l LeadInput) Key() string {
	fields := []string{l.DisplayName(), l.Phone, l.Email}
	for i, f := range fields {
		fields[i] = strings.ToLower(strings.TrimSpace(f))
	}

	meta := make([]string, 0, len(l.Metadata))
	for k := range l.Metadata {
		v := l.Metadata.String(k)
		if v == "" {
			v = strings.Join(l.Metadata.Strings(k), ";")
		}
		if v == "" {
			continue
		}
		meta = append(meta, strings.ToLower(strings.TrimSpace(k))+"="+strings.ToLower(v))
	}
	slices.Sort(meta)
	return strings.Join(append(fields, meta...), "|")
}

// String implements fmt.Stringer for log output.
func (l LeadInput) String() string {
	name := l.DisplayName()
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("%s <%s, %s>", name, l.Email, l.Phone)
}

// lookup finds key exactly, then ignoring case and surrounding space, so
// metadata from a "Website" header answers a "website" read.
func (m Metadata) lookup(key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return v, true
		}
	}
	return nil, false
}

// String returns the value under key rendered as a trimmed string.
// Lists and missing keys yield "".
func (m Metadata) String(key string) string {
	v, ok := m.lookup(key)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []string, []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Strings returns the value under key as a list. A plain string is split on
// ";" so spreadsheet cells like "a@x.com; b@x.com" round-trip.
func (m Metadata) Strings(key string) []string {
	v, ok := m.lookup(key)
	if !ok || v == nil {
		return nil
	}
	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			if item != nil {
				raw = append(raw, fmt.Sprint(item))
			}
		}
	case string:
		raw = strings.Split(t, ";")
	default:
		raw = []string{fmt.Sprint(t)}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Clone returns a shallow copy safe to extend without touching the original.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
