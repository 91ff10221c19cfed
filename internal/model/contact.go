package model

// Canonical contact type tags. Other tags are allowed.
const (
	ContactPhone = "phone"
	ContactEmail = "email"
)

// RawErrorKey is the raw-data key carrying a scraper failure message.
const RawErrorKey = "error"

// ContactDetail is one discovered contact fact.
type ContactDetail struct {
	Type     string         `json:"type"`
	Value    string         `json:"value"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// LeadVerification is the output of one scraper for one lead.
type LeadVerification struct {
	Source   string          `json:"source"`
	Contacts []ContactDetail `json:"contacts"`
	RawData  map[string]any  `json:"raw_data,omitempty"`
}

// FailedVerification builds the placeholder recorded when a scraper fails.
func FailedVerification(source string, err error) *LeadVerification {
	return &LeadVerification{
		Source:   source,
		Contacts: []ContactDetail{},
		RawData:  map[string]any{RawErrorKey: err.Error()},
	}
}

// Error returns the recorded error message, or "".
func (v *LeadVerification) Error() string {
	if v == nil || v.RawData == nil {
		return ""
	}
	if msg, ok := v.RawData[RawErrorKey].(string); ok {
		return msg
	}
	return ""
}

// Failed reports whether the verification carries an error annotation.
func (v *LeadVerification) Failed() bool {
	return v.Error() != ""
}

// AggregatedContact is one deduplicated contact with the sources that
// reported it, in first-seen order.
type AggregatedContact struct {
	Type    string   `json:"type"`
	Value   string   `json:"value"`
	Sources []string `json:"sources"`
}

// AggregatedLeadResult is the final per-lead output of the merge engine.
type AggregatedLeadResult struct {
	Lead       LeadInput           `json:"lead"`
	Contacts   []AggregatedContact `json:"contacts"`
	RawResults []*LeadVerification `json:"raw_results"`
}

// Sources returns the distinct sources across all contacts, in first-seen
// order.
func (r *AggregatedLeadResult) Sources() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range r.Contacts {
		for _, s := range c.Sources {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Failures returns the raw results that carry an error annotation.
func (r *AggregatedLeadResult) Failures() []*LeadVerification {
	var out []*LeadVerification
	for _, v := range r.RawResults {
		if v.Failed() {
			out = append(out, v)
		}
	}
	return out
}
