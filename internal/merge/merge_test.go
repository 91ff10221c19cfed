package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-verifier/internal/model"
)

func phone(v string) model.ContactDetail { return model.ContactDetail{Type: "phone", Value: v} }
func email(v string) model.ContactDetail { return model.ContactDetail{Type: "email", Value: v} }

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		typ, in, want string
	}{
		{"phone", " (555) 111-1111 ", "5551111111"},
		{"PHONE", "+1 555.111.1111", "15551111111"},
		{"phone", "n/a", ""},
		{"email", "  Jane@Example.COM ", "jane@example.com"},
		{"linkedin", " HTTPS://LinkedIn.com/in/Jane ", "https://linkedin.com/in/jane"},
		{"email", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeValue(tt.typ, tt.in))
		})
	}
}

func TestDedupKey(t *testing.T) {
	assert.Equal(t, "phone::5551111111", DedupKey(phone("555-111-1111")))
	assert.Equal(t, "email::a@b.co", DedupKey(model.ContactDetail{Type: "Email", Value: "A@B.co"}))
	assert.Empty(t, DedupKey(phone("---")))
	assert.Empty(t, DedupKey(email("")))
}

func TestMerge_PhoneFormatsCollapse(t *testing.T) {
	lead := model.LeadInput{Name: "Jane Doe"}
	results := []*model.LeadVerification{
		{Source: "A", Contacts: []model.ContactDetail{phone("555-111-1111")}},
		{Source: "B", Contacts: []model.ContactDetail{phone("5551111111")}},
	}

	got := Merge(lead, results)

	require.Len(t, got.Contacts, 1)
	assert.Equal(t, "phone", got.Contacts[0].Type)
	assert.Equal(t, "555-111-1111", got.Contacts[0].Value, "first-seen literal is kept")
	assert.Equal(t, []string{"A", "B"}, got.Contacts[0].Sources)
	assert.Equal(t, lead, got.Lead)
}

func TestMerge_FirstSeenOrderAcrossSources(t *testing.T) {
	results := []*model.LeadVerification{
		{Source: "A", Contacts: []model.ContactDetail{email("x@example.com"), phone("111")}},
		{Source: "B", Contacts: []model.ContactDetail{phone("222"), email("X@Example.com"), phone("1-1-1")}},
	}

	got := Merge(model.LeadInput{}, results)

	require.Len(t, got.Contacts, 3)
	assert.Equal(t, []model.AggregatedContact{
		{Type: "email", Value: "x@example.com", Sources: []string{"A", "B"}},
		{Type: "phone", Value: "111", Sources: []string{"A", "B"}},
		{Type: "phone", Value: "222", Sources: []string{"B"}},
	}, got.Contacts)
}

func TestMerge_NoDuplicateSourceEntries(t *testing.T) {
	results := []*model.LeadVerification{
		{Source: "A", Contacts: []model.ContactDetail{email("a@x.com"), email("A@X.COM")}},
		{Source: "A", Contacts: []model.ContactDetail{email("a@x.com")}},
	}

	got := Merge(model.LeadInput{}, results)

	require.Len(t, got.Contacts, 1)
	assert.Equal(t, []string{"A"}, got.Contacts[0].Sources)
}

func TestMerge_TypeIsPartOfKey(t *testing.T) {
	results := []*model.LeadVerification{
		{Source: "A", Contacts: []model.ContactDetail{
			{Type: "phone", Value: "555"},
			{Type: "fax", Value: "555"},
		}},
	}
	got := Merge(model.LeadInput{}, results)
	assert.Len(t, got.Contacts, 2)
}

func TestMerge_SkipsNilAndEmpty(t *testing.T) {
	failed := &model.LeadVerification{Source: "broken", Contacts: []model.ContactDetail{}, RawData: map[string]any{"error": "boom"}}
	results := []*model.LeadVerification{
		nil,
		{Source: "A", Contacts: []model.ContactDetail{email("  "), phone("no digits"), email("ok@x.com")}},
		failed,
	}

	got := Merge(model.LeadInput{}, results)

	require.Len(t, got.Contacts, 1)
	assert.Equal(t, "ok@x.com", got.Contacts[0].Value)
	assert.Len(t, got.RawResults, 3, "raw results are preserved as given")
	assert.Same(t, failed, got.RawResults[2])
}

func TestMerge_EmptyInput(t *testing.T) {
	got := Merge(model.LeadInput{Name: "x"}, nil)
	assert.NotNil(t, got.Contacts)
	assert.Empty(t, got.Contacts)
	assert.Empty(t, got.RawResults)
}

func TestMerge_Idempotent(t *testing.T) {
	results := []*model.LeadVerification{
		{Source: "A", Contacts: []model.ContactDetail{phone("555-1"), email("a@x.com")}},
		{Source: "B", Contacts: []model.ContactDetail{phone("5551"), email("b@x.com")}},
	}
	first := Merge(model.LeadInput{Name: "n"}, results)
	second := Merge(model.LeadInput{Name: "n"}, results)
	assert.Equal(t, first, second)
}

func TestMerge_DoesNotAliasInputSlice(t *testing.T) {
	results := []*model.LeadVerification{{Source: "A"}}
	got := Merge(model.LeadInput{}, results)
	results[0] = nil
	assert.NotNil(t, got.RawResults[0])
}
