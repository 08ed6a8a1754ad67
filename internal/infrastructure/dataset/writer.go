package dataset

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/linkrx/formident/pkg/errors"
)

// UniqueRowWriter writes CSV rows, silently dropping rows already written.
// Summary files combine many release files that repeat most of their rows,
// so deduplication happens at the write boundary rather than in every
// caller.
type UniqueRowWriter struct {
	csv    *csv.Writer
	seen   map[string]struct{}
	fields int
}

// NewUniqueRowWriter returns a deduplicating CSV writer over w.
func NewUniqueRowWriter(w io.Writer) *UniqueRowWriter {
	return &UniqueRowWriter{
		csv:  csv.NewWriter(w),
		seen: make(map[string]struct{}),
	}
}

// WriteHeader writes the header row and fixes the column count for all
// subsequent rows.
func (w *UniqueRowWriter) WriteHeader(header []string) error {
	w.fields = len(header)
	if err := w.csv.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatasetParseError, "failed to write header row")
	}
	return nil
}

// WriteRow writes row unless an identical row has been written before.
func (w *UniqueRowWriter) WriteRow(row []string) error {
	if w.fields == 0 {
		return errors.New(errors.ErrCodeDatasetParseError, "row written before header")
	}
	if len(row) != w.fields {
		return errors.Newf(errors.ErrCodeDatasetParseError,
			"row has %d fields, header has %d", len(row), w.fields)
	}
	key := strings.Join(row, "\x1f")
	if _, dup := w.seen[key]; dup {
		return nil
	}
	w.seen[key] = struct{}{}
	if err := w.csv.Write(row); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatasetParseError, "failed to write row")
	}
	return nil
}

// Flush writes buffered rows to the underlying writer.
func (w *UniqueRowWriter) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatasetParseError, "failed to flush rows")
	}
	return nil
}
