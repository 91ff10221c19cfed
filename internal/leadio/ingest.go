// Package leadio turns spreadsheets into leads and aggregated results back
// into spreadsheets or JSON.
package leadio

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/lead-verifier/internal/model"
	"github.com/sells-group/lead-verifier/internal/sheet"
)

// ErrUnsupportedFormat is returned for input or output paths whose extension
// has no adapter.
var ErrUnsupportedFormat = sheet.ErrUnsupportedFormat

// Lead fields a column can map to.
const (
	FieldName      = "name"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldPhone     = "phone"
	FieldEmail     = "email"
	FieldCompany   = "company"
	FieldCity      = "city"
	FieldState     = "state"
	FieldZip       = "zip"
	FieldWebsite   = "website"
)

// fieldOrder fixes which field claims a column first when synonyms overlap.
var fieldOrder = []string{
	FieldName, FieldFirstName, FieldLastName, FieldPhone, FieldEmail,
	FieldCompany, FieldCity, FieldState, FieldZip, FieldWebsite,
}

var synonyms = map[string][]string{
	FieldName:      {"name", "full_name"},
	FieldFirstName: {"first_name", "firstname", "first"},
	FieldLastName:  {"last_name", "lastname", "last"},
	FieldPhone:     {"phone", "phone_number", "primary_phone", "phones"},
	FieldEmail:     {"email", "email_address", "primary_email", "emails"},
	FieldCompany:   {"company", "organisation", "organization", "employer"},
	FieldCity:      {"city"},
	FieldState:     {"state"},
	FieldZip:       {"zip", "zip_code", "zipcode", "postal_code", "postcode"},
	FieldWebsite:   {"website", "url", "domain", "company_website", "web_site"},
}

// metaKeys maps location, company and website fields to the metadata keys
// scrapers read.
var metaKeys = map[string]string{
	FieldCompany: model.MetaCompany,
	FieldCity:    model.MetaCity,
	FieldState:   model.MetaState,
	FieldZip:     model.MetaZip,
	FieldWebsite: model.MetaWebsite,
}

// IngestOptions configures lead ingestion.
type IngestOptions struct {
	// SheetIndex picks the worksheet of XLSX inputs.
	SheetIndex int
	// ColumnMapping overrides synonym detection: field -> column names,
	// first present column wins.
	ColumnMapping map[string][]string
}

// ReadLeads loads leads from a CSV, TSV or XLSX file. Rows without any
// non-empty cell are skipped; an empty file yields no leads.
func ReadLeads(ctx context.Context, path string, opts IngestOptions) ([]model.LeadInput, error) {
	if _, err := sheet.FormatOf(path); err != nil {
		return nil, eris.Wrap(err, "leadio: read leads")
	}
	tbl, err := sheet.Read(ctx, path, sheet.ReadOptions{SheetIndex: opts.SheetIndex})
	if err != nil {
		return nil, eris.Wrapf(err, "leadio: read %s", path)
	}
	leads := LeadsFromTable(tbl, opts)
	zap.L().Info("leadio: leads loaded",
		zap.String("path", path),
		zap.Int("rows", len(tbl.Rows)),
		zap.Int("leads", len(leads)),
	)
	return leads, nil
}

// NormalizeHeader returns the comparison form of a column header: NFKC
// normalised, trimmed, lower-cased, inner whitespace and hyphens turned
// into underscores.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(norm.NFKC.String(h)))
	h = strings.ReplaceAll(h, "-", " ")
	return strings.Join(strings.Fields(h), "_")
}

// columnPlan says what each column index feeds.
type columnPlan struct {
	fields   map[string]int // field -> column
	emails   []int
	phones   []int
	extra    []int
	original []string
}

func planColumns(header []string, mapping map[string][]string) columnPlan {
	p := columnPlan{fields: make(map[string]int), original: header}
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = NormalizeHeader(h)
	}
	indexOf := func(names []string) (int, bool) {
		for _, n := range names {
			n = NormalizeHeader(n)
			for i, h := range normalized {
				if h == n && h != "" {
					return i, true
				}
			}
		}
		return 0, false
	}

	claimed := make(map[int]bool)
	for _, field := range fieldOrder {
		names := synonyms[field]
		if override, ok := mapping[field]; ok && len(override) > 0 {
			names = override
		}
		if i, ok := indexOf(names); ok && !claimed[i] {
			p.fields[field] = i
			claimed[i] = true
		}
	}

	for i, h := range normalized {
		if claimed[i] || h == "" {
			continue
		}
		switch {
		case strings.HasPrefix(h, "email_"):
			p.emails = append(p.emails, i)
		case strings.HasPrefix(h, "phone_"):
			p.phones = append(p.phones, i)
		default:
			p.extra = append(p.extra, i)
		}
	}
	return p
}

// LeadsFromTable converts a read table into leads.
func LeadsFromTable(tbl *sheet.Table, opts IngestOptions) []model.LeadInput {
	if tbl == nil || len(tbl.Header) == 0 {
		return nil
	}
	plan := planColumns(tbl.Header, opts.ColumnMapping)

	leads := make([]model.LeadInput, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		if lead, ok := plan.lead(row); ok {
			leads = append(leads, lead)
		}
	}
	return leads
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(norm.NFKC.String(row[i]))
}

func blank(row []string) bool {
	for i := range row {
		if cell(row, i) != "" {
			return false
		}
	}
	return true
}

func (p columnPlan) get(row []string, field string) string {
	i, ok := p.fields[field]
	if !ok {
		return ""
	}
	return cell(row, i)
}

func (p columnPlan) lead(row []string) (model.LeadInput, bool) {
	if blank(row) {
		return model.LeadInput{}, false
	}

	meta := model.Metadata{}
	lead := model.LeadInput{
		Name:      p.get(row, FieldName),
		FirstName: p.get(row, FieldFirstName),
		LastName:  p.get(row, FieldLastName),
	}

	phones := splitList(p.get(row, FieldPhone))
	emails := splitList(p.get(row, FieldEmail))
	for _, i := range p.phones {
		phones = append(phones, splitList(cell(row, i))...)
	}
	for _, i := range p.emails {
		emails = append(emails, splitList(cell(row, i))...)
	}
	if len(phones) > 0 {
		lead.Phone = phones[0]
	}
	if len(emails) > 0 {
		lead.Email = emails[0]
	}
	if phones = dedupe(phones); len(phones) > 1 {
		meta[model.MetaPhones] = phones
	}
	if emails = dedupe(emails); len(emails) > 1 {
		meta[model.MetaEmails] = emails
	}

	for field, key := range metaKeys {
		if v := p.get(row, field); v != "" {
			meta[key] = v
		}
	}
	for _, i := range p.extra {
		if v := cell(row, i); v != "" {
			meta[strings.TrimSpace(p.original[i])] = v
		}
	}

	if lead.FirstName == "" && lead.LastName == "" && lead.Name != "" {
		lead.FirstName, lead.LastName = SplitName(lead.Name)
	}
	if len(meta) > 0 {
		lead.Metadata = meta
	}
	return lead, true
}

// SplitName splits a full name on whitespace into first and last parts.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := list[:0:0]
	for _, v := range list {
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
