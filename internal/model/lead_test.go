package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadInput_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		lead LeadInput
		want string
	}{
		{"full name wins", LeadInput{Name: " Ada Lovelace ", FirstName: "A"}, "Ada Lovelace"},
		{"first and last", LeadInput{FirstName: "Jane", LastName: "Doe"}, "Jane Doe"},
		{"first only", LeadInput{FirstName: "Jane"}, "Jane"},
		{"empty", LeadInput{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.lead.DisplayName())
		})
	}
}

func TestLeadInput_LocationAccessors(t *testing.T) {
	lead := LeadInput{Metadata: Metadata{"city": "London", "state": "UK", "zip": "SW1A"}}
	assert.Equal(t, "London", lead.City())
	assert.Equal(t, "UK", lead.State())
	assert.Equal(t, "SW1A", lead.PostalCode())
	assert.Equal(t, "London, UK SW1A", lead.Location())

	stateOnly := LeadInput{Metadata: Metadata{"state": "TX", "postal_code": 75001}}
	assert.Equal(t, "75001", stateOnly.PostalCode())
	assert.Equal(t, "TX 75001", stateOnly.Location())

	assert.Empty(t, LeadInput{}.Location())
	assert.Empty(t, LeadInput{}.Company())
}

func TestLeadInput_EmailsAndPhones(t *testing.T) {
	lead := LeadInput{
		Email: "primary@example.com",
		Phone: "555-0000",
		Metadata: Metadata{
			"emails": []string{"a@example.com", " ", "b@example.com"},
			"phones": "555-1111; 555-2222",
		},
	}
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, lead.Emails())
	assert.Equal(t, []string{"555-1111", "555-2222"}, lead.Phones())

	fallback := LeadInput{Email: "primary@example.com", Phone: "555-0000"}
	assert.Equal(t, []string{"primary@example.com"}, fallback.Emails())
	assert.Equal(t, []string{"555-0000"}, fallback.Phones())
	assert.Nil(t, LeadInput{}.Emails())
}

func TestMetadata_StringIgnoresLists(t *testing.T) {
	m := Metadata{"emails": []any{"x@example.com"}, "age": 42, "nil": nil}
	assert.Empty(t, m.String("emails"))
	assert.Equal(t, "42", m.String("age"))
	assert.Empty(t, m.String("nil"))
	assert.Equal(t, []string{"x@example.com"}, m.Strings("emails"))
}

func TestLeadInput_KeyIsValueIdentity(t *testing.T) {
	a := LeadInput{FirstName: "Jane", LastName: "Doe", Email: "JANE@example.com", Metadata: Metadata{"city": "Austin", "blank": ""}}
	b := LeadInput{Name: "jane doe", Email: "jane@example.com ", Metadata: Metadata{"City": " austin"}}
	c := LeadInput{Name: "Jane Doe", Email: "other@example.com", Metadata: Metadata{"city": "Austin"}}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestLeadInput_KeyCoversEveryMetadataField(t *testing.T) {
	a := LeadInput{Name: "Jane Doe", Metadata: Metadata{MetaWebsite: "a.com"}}
	b := LeadInput{Name: "Jane Doe", Metadata: Metadata{MetaWebsite: "b.com"}}
	assert.NotEqual(t, a.Key(), b.Key())

	zip1 := LeadInput{Name: "Jane Doe", Metadata: Metadata{MetaZip: "78701"}}
	zip2 := LeadInput{Name: "Jane Doe", Metadata: Metadata{MetaZip: "10001"}}
	assert.NotEqual(t, zip1.Key(), zip2.Key())

	listA := LeadInput{Name: "Jane Doe", Metadata: Metadata{MetaEmails: []string{"a@x.com", "b@x.com"}}}
	listB := LeadInput{Name: "Jane Doe", Metadata: Metadata{MetaEmails: []string{"a@x.com", "c@x.com"}}}
	assert.NotEqual(t, listA.Key(), listB.Key())
}

func TestMetadata_LookupIgnoresKeyCase(t *testing.T) {
	m := Metadata{"Website": "example.com", " Zip ": "78701"}
	assert.Equal(t, "example.com", m.String(MetaWebsite))
	assert.Equal(t, "78701", m.String(MetaZip))
	assert.Equal(t, []string{"example.com"}, m.Strings("WEBSITE"))
	assert.Equal(t, "", m.String("missing"))
}

func TestMetadata_CloneIsIndependent(t *testing.T) {
	orig := Metadata{"city": "Austin"}
	cp := orig.Clone()
	cp["city"] = "Dallas"
	assert.Equal(t, "Austin", orig.String("city"))
	assert.Nil(t, Metadata(nil).Clone())
}

func TestLeadVerification_Failure(t *testing.T) {
	v := FailedVerification("broken", errors.New("boom"))
	assert.Equal(t, "broken", v.Source)
	assert.Empty(t, v.Contacts)
	assert.Equal(t, "boom", v.RawData["error"])
	assert.True(t, v.Failed())

	ok := &LeadVerification{Source: "fine"}
	assert.False(t, ok.Failed())

	var missing *LeadVerification
	assert.False(t, missing.Failed())
}

func TestAggregatedLeadResult_SourcesAndFailures(t *testing.T) {
	res := &AggregatedLeadResult{
		Contacts: []AggregatedContact{
			{Type: "phone", Value: "1", Sources: []string{"a", "b"}},
			{Type: "email", Value: "x", Sources: []string{"b", "c"}},
		},
		RawResults: []*LeadVerification{
			{Source: "a"},
			FailedVerification("d", errors.New("down")),
			nil,
		},
	}
	assert.Equal(t, []string{"a", "b", "c"}, res.Sources())
	failures := res.Failures()
	if assert.Len(t, failures, 1) {
		assert.Equal(t, "d", failures[0].Source)
	}
}
