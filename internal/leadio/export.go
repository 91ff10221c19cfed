package leadio

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-verifier/internal/model"
	"github.com/sells-group/lead-verifier/internal/sheet"
)

// Columns is the fixed export column set.
var Columns = []string{
	"first_name", "last_name", "city", "state",
	"input_phone", "input_email", "contacts", "metadata",
}

// DiagnosticsColumn is appended when diagnostics are requested.
const DiagnosticsColumn = "diagnostics"

// ExportOptions configures WriteResults.
type ExportOptions struct {
	// SheetName names the XLSX worksheet. Defaults to "Results".
	SheetName string
	// IncludeDiagnostics appends a column listing failed sources.
	IncludeDiagnostics bool
}

// WriteResults writes one row per result to path. The extension picks the
// format: .csv, .tsv, .xlsx or .xlsm write the flat column set; .json writes
// the complete results including raw verifications.
func WriteResults(path string, results []*model.AggregatedLeadResult, opts ExportOptions) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return writeJSON(path, results)
	}
	if _, err := sheet.FormatOf(path); err != nil {
		return eris.Wrap(err, "leadio: write results")
	}

	header, rows := Rows(results, opts.IncludeDiagnostics)
	name := opts.SheetName
	if name == "" {
		name = "Results"
	}
	if err := sheet.Write(path, name, header, rows); err != nil {
		return eris.Wrapf(err, "leadio: write %s", path)
	}
	zap.L().Info("leadio: results written", zap.String("path", path), zap.Int("rows", len(rows)))
	return nil
}

func writeJSON(path string, results []*model.AggregatedLeadResult) error {
	if results == nil {
		results = []*model.AggregatedLeadResult{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return eris.Wrap(err, "leadio: encode results")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec
		return eris.Wrapf(err, "leadio: write %s", path)
	}
	zap.L().Info("leadio: results written", zap.String("path", path), zap.Int("results", len(results)))
	return nil
}

// Rows flattens results into the export header and rows.
func Rows(results []*model.AggregatedLeadResult, diagnostics bool) ([]string, [][]string) {
	header := append([]string(nil), Columns...)
	if diagnostics {
		header = append(header, DiagnosticsColumn)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		lead := r.Lead
		first, last := lead.FirstName, lead.LastName
		if first == "" && last == "" {
			first, last = SplitName(lead.Name)
		}
		row := []string{
			first,
			last,
			lead.City(),
			lead.State(),
			lead.Phone,
			lead.Email,
			FormatContacts(r.Contacts),
			FormatMetadata(lead.Metadata),
		}
		if diagnostics {
			row = append(row, FormatDiagnostics(r))
		}
		rows = append(rows, row)
	}
	return header, rows
}

// FormatContacts renders contacts as "type:value [s1, s2]" joined by "; ".
func FormatContacts(contacts []model.AggregatedContact) string {
	parts := make([]string, 0, len(contacts))
	for _, c := range contacts {
		parts = append(parts, c.Type+":"+c.Value+" ["+strings.Join(c.Sources, ", ")+"]")
	}
	return strings.Join(parts, "; ")
}

// columnKeys are metadata keys already exported in their own column.
var columnKeys = []string{model.MetaCity, model.MetaState}

// FormatMetadata renders metadata as compact JSON with sorted keys and
// unescaped HTML characters, leaving out keys that have their own column.
// Empty metadata renders as "{}".
func FormatMetadata(m model.Metadata) string {
	rest := make(map[string]any, len(m))
	for k, v := range m {
		if !slices.Contains(columnKeys, strings.ToLower(strings.TrimSpace(k))) {
			rest[k] = v
		}
	}
	if len(rest) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rest); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

// FormatDiagnostics lists failed sources as "source: error" joined by "; ",
// in scraper order.
func FormatDiagnostics(r *model.AggregatedLeadResult) string {
	failures := r.Failures()
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, f.Source+": "+f.Error())
	}
	return strings.Join(parts, "; ")
}
