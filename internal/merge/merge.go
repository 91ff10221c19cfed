// Package merge reduces per-source verifications for one lead into a single
// deduplicated, source-attributed contact list.
package merge

import (
	"strings"
	"unicode"

	"github.com/sells-group/lead-verifier/internal/model"
)

// Func is the merge signature the orchestrator accepts.
type Func func(lead model.LeadInput, results []*model.LeadVerification) *model.AggregatedLeadResult

// NormalizeValue returns the comparison form of a contact value:
// digits only for phones, lower-cased trimmed text otherwise.
func NormalizeValue(contactType, value string) string {
	value = strings.TrimSpace(value)
	if strings.EqualFold(contactType, model.ContactPhone) {
		var b strings.Builder
		for _, r := range value {
			if unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	return strings.ToLower(value)
}

// DedupKey returns "type::normalized-value", or "" when the value normalizes
// to nothing.
func DedupKey(c model.ContactDetail) string {
	norm := NormalizeValue(c.Type, c.Value)
	if norm == "" {
		return ""
	}
	return strings.ToLower(c.Type) + "::" + norm
}

// Merge walks results in order and folds every contact into the aggregated
// list. The first occurrence of a dedup key fixes the displayed type and
// value; later occurrences only add their source. Nil results and contacts
// without a usable value are skipped. Order of results matters: callers must
// pass them in configured scraper order.
func Merge(lead model.LeadInput, results []*model.LeadVerification) *model.AggregatedLeadResult {
	index := make(map[string]int)
	var contacts []model.AggregatedContact

	for _, result := range results {
		if result == nil {
			continue
		}
		for _, c := range result.Contacts {
			key := DedupKey(c)
			if key == "" {
				continue
			}
			pos, ok := index[key]
			if !ok {
				index[key] = len(contacts)
				contacts = append(contacts, model.AggregatedContact{
					Type:    c.Type,
					Value:   c.Value,
					Sources: []string{result.Source},
				})
				continue
			}
			if !containsString(contacts[pos].Sources, result.Source) {
				contacts[pos].Sources = append(contacts[pos].Sources, result.Source)
			}
		}
	}

	if contacts == nil {
		contacts = []model.AggregatedContact{}
	}
	raw := make([]*model.LeadVerification, len(results))
	copy(raw, results)

	return &model.AggregatedLeadResult{
		Lead:       lead,
		Contacts:   contacts,
		RawResults: raw,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
