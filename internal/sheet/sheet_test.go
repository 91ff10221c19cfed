package sheet

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"leads.csv", CSV},
		{"LEADS.CSV", CSV},
		{"leads.tsv", TSV},
		{"leads.xlsx", XLSX},
		{"leads.xlsm", XLSX},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FormatOf("leads.pdf")
	assert.True(t, eris.Is(err, ErrUnsupportedFormat))
}

func TestRead_CSVWithBOM(t *testing.T) {
	path := writeFile(t, "in.csv", "\xef\xbb\xbfname,email\nJane,jane@example.com\n\"Doe, John\",\n")

	tbl, err := Read(context.Background(), path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email"}, tbl.Header)
	assert.Equal(t, [][]string{{"Jane", "jane@example.com"}, {"Doe, John", ""}}, tbl.Rows)
}

func TestRead_TSVVariableWidth(t *testing.T) {
	path := writeFile(t, "in.tsv", "a\tb\tc\n1\t2\n")

	tbl, err := Read(context.Background(), path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tbl.Header)
	assert.Equal(t, [][]string{{"1", "2"}}, tbl.Rows)
}

func TestRead_EmptyFile(t *testing.T) {
	tbl, err := Read(context.Background(), writeFile(t, "in.csv", ""), ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, tbl.Header)
	assert.Empty(t, tbl.Rows)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), ReadOptions{})
	assert.Error(t, err)
}

func TestRead_Unsupported(t *testing.T) {
	_, err := Read(context.Background(), "in.doc", ReadOptions{})
	assert.True(t, eris.Is(err, ErrUnsupportedFormat))
}

func TestRead_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Leads": {
			{"Name", "Phone"},
			{"Jane Doe", "5551234567"},
		},
	})

	tbl, err := Read(context.Background(), path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Phone"}, tbl.Header)
	assert.Equal(t, [][]string{{"Jane Doe", "5551234567"}}, tbl.Rows)
}

func TestRead_XLSXSheetSelection(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Other": {{"x"}},
	})

	_, err := Read(context.Background(), path, ReadOptions{SheetName: "Missing"})
	assert.ErrorContains(t, err, `sheet "Missing" not found`)

	_, err = Read(context.Background(), path, ReadOptions{SheetIndex: 3})
	assert.ErrorContains(t, err, "out of range")

	tbl, err := Read(context.Background(), path, ReadOptions{SheetName: "Other"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, tbl.Header)
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, errs := StreamCSV(ctx, strings.NewReader("a\nb\n"), CSVOptions{})
	for range rows {
	}
	err := <-errs
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, 0, []string{"a", "b"}, [][]string{{"1", "x, y"}})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x, y\"\n", buf.String())
}

func TestWrite_RoundTrip(t *testing.T) {
	header := []string{"first_name", "contacts"}
	rows := [][]string{{"Jane", "phone:5551234567 [echo]"}}

	for _, name := range []string{"out.csv", "out.tsv", "out.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Write(path, "Results", header, rows))

			tbl, err := Read(context.Background(), path, ReadOptions{})
			require.NoError(t, err)
			assert.Equal(t, header, tbl.Header)
			assert.Equal(t, rows, tbl.Rows)
		})
	}
}

func TestWriteXLSX_SheetName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSXFile(path, "Results", []string{"h"}, nil))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	_, ok := f.Sheet["Results"]
	assert.True(t, ok)
}

func TestWrite_Unsupported(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "out.pdf"), "", nil, nil)
	assert.True(t, eris.Is(err, ErrUnsupportedFormat))
}
