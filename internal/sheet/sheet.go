// Package sheet reads and writes tabular files (CSV, TSV, XLSX) as a header
// row plus string rows.
package sheet

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnsupportedFormat is returned for file extensions no reader or writer
// handles.
var ErrUnsupportedFormat = eris.New("unsupported file format")

// Format is a tabular file format.
type Format string

const (
	CSV  Format = "csv"
	TSV  Format = "tsv"
	XLSX Format = "xlsx"
)

// FormatOf infers the format from the path extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return CSV, nil
	case ".tsv":
		return TSV, nil
	case ".xlsx", ".xlsm":
		return XLSX, nil
	default:
		return "", eris.Wrapf(ErrUnsupportedFormat, "sheet: %q", filepath.Base(path))
	}
}

// ReadOptions configures Read.
type ReadOptions struct {
	SheetIndex int    // XLSX only
	SheetName  string // XLSX only, overrides SheetIndex
}

// Table is a fully read file.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read loads the file at path. The first row becomes the header; an empty
// file yields an empty table.
func Read(ctx context.Context, path string, opts ReadOptions) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	var rowCh <-chan []string
	var errCh <-chan error
	switch format {
	case XLSX:
		rowCh, errCh = StreamXLSX(ctx, path, XLSXOptions{SheetIndex: opts.SheetIndex, SheetName: opts.SheetName})
	default:
		rowCh, errCh, err = StreamCSVFile(ctx, path, CSVOptions{Delimiter: delimiter(format)})
		if err != nil {
			return nil, err
		}
	}

	t := &Table{}
	first := true
	for row := range rowCh {
		if first {
			t.Header = row
			first = false
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return t, nil
}

// Write stores header and rows at path in the format implied by its
// extension. sheetName names the XLSX worksheet.
func Write(path, sheetName string, header []string, rows [][]string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if format == XLSX {
		return WriteXLSXFile(path, sheetName, header, rows)
	}
	return WriteCSVFile(path, delimiter(format), header, rows)
}

func delimiter(f Format) rune {
	if f == TSV {
		return '\t'
	}
	return ','
}
