// Package dataset reads the delimited release files of the two source
// corpora and reduces them to clean record streams: Orange Book product and
// patent rows keyed by application, and NDC product rows consolidated per
// (product code, application) identifier.
package dataset

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/linkrx/formident/pkg/errors"
)

// Reader is a header-keyed delimited-file reader.  The first row names the
// columns (lower-cased); subsequent rows are accessed by column name.  Field
// counts may vary per row, matching the loose quoting of the agency exports.
type Reader struct {
	csv    *csv.Reader
	header map[string]int
}

// NewReader wraps r as a header-keyed reader with the given field delimiter.
func NewReader(r io.Reader, delim rune) *Reader {
	c := csv.NewReader(r)
	c.Comma = delim
	c.FieldsPerRecord = -1
	c.LazyQuotes = true
	return &Reader{csv: c}
}

// Columns returns the column names after the header has been read.
func (r *Reader) Columns() ([]string, error) {
	if err := r.readHeader(); err != nil {
		return nil, err
	}
	out := make([]string, len(r.header))
	for name, i := range r.header {
		out[i] = name
	}
	return out, nil
}

// Require verifies that every named column is present in the header.
func (r *Reader) Require(cols ...string) error {
	if err := r.readHeader(); err != nil {
		return err
	}
	for _, c := range cols {
		if _, ok := r.header[c]; !ok {
			return errors.Newf(errors.ErrCodeDatasetHeaderError, "missing column %q", c)
		}
	}
	return nil
}

func (r *Reader) readHeader() error {
	if r.header != nil {
		return nil
	}
	h, err := r.csv.Read()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatasetHeaderError, "failed to read header row")
	}
	r.header = make(map[string]int, len(h))
	for i, name := range h {
		r.header[strings.ToLower(name)] = i
	}
	return nil
}

// Next returns the next data row, or io.EOF when the file is exhausted.
func (r *Reader) Next() (Row, error) {
	if err := r.readHeader(); err != nil {
		return Row{}, err
	}
	fields, err := r.csv.Read()
	if err == io.EOF {
		return Row{}, io.EOF
	}
	if err != nil {
		return Row{}, errors.Wrap(err, errors.ErrCodeDatasetParseError, "failed to read data row")
	}
	return Row{header: r.header, fields: fields}, nil
}

// Each reads all remaining rows, calling fn for each.
func (r *Reader) Each(fn func(Row) error) error {
	for {
		row, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// Row is one data row with access by lower-cased column name.  A name or
// index beyond the row's fields yields the empty string, which is how the
// source files represent absent values anyway.
type Row struct {
	header map[string]int
	fields []string
}

// Get returns the field in the named column.
func (r Row) Get(name string) string {
	i, ok := r.header[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// Fields returns the raw field slice.
func (r Row) Fields() []string { return r.fields }
