package sheet

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

const utf8BOM = "\xef\xbb\xbf"

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	LazyQuotes bool
}

// StreamCSV reads delimited rows from r and sends them on the row channel,
// header included. A leading UTF-8 byte order mark is dropped. Both channels
// are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		br := bufio.NewReader(r)
		if head, err := br.Peek(len(utf8BOM)); err == nil && string(head) == utf8BOM {
			_, _ = br.Discard(len(utf8BOM))
		}

		reader := csv.NewReader(br)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// StreamCSVFile opens path and streams it with StreamCSV. The file is closed
// once the stream ends.
func StreamCSVFile(ctx context.Context, path string, opts CSVOptions) (<-chan []string, <-chan error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "csv: open %s", path)
	}

	rows, errs := StreamCSV(ctx, f, opts)
	out := make(chan []string)
	outErr := make(chan error, 1)
	go func() {
		defer close(outErr)
		defer close(out)
		defer f.Close() //nolint:errcheck
		for row := range rows {
			out <- row
		}
		if err := <-errs; err != nil {
			outErr <- err
		}
	}()
	return out, outErr, nil
}

// WriteCSV writes header and rows to w.
func WriteCSV(w io.Writer, delim rune, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}
	if len(header) > 0 {
		if err := cw.Write(header); err != nil {
			return eris.Wrap(err, "csv: write header")
		}
	}
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "csv: write row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

// WriteCSVFile creates (or truncates) path and writes header and rows to it.
func WriteCSVFile(path string, delim rune, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "csv: create %s", path)
	}
	if err := WriteCSV(f, delim, header, rows); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "csv: close %s", path)
}
