// Package reader streams typed records out of delimited text files in
// fixed-size batches.
package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"
)

// BatchReader yields items of T until the stream is exhausted.
type BatchReader[T any] interface {
	EndOfStream() bool
	ReadBatch(ctx context.Context, max int) ([]T, error)
}

// ErrorHandler receives record-level failures. When a handler is attached
// the failing record is skipped and reading continues.
type ErrorHandler func(err error)

// Options controls how a source file is tokenized.
type Options struct {
	Delimiter        rune
	Comment          rune
	TrimLeadingSpace bool
	LazyQuotes       bool
	// Header names the columns when the file has no header line.
	Header []string
}

// WithDefaults fills the fields o leaves unset from d. Flags set in either
// are kept.
func (o Options) WithDefaults(d Options) Options {
	if o.Delimiter == 0 {
		o.Delimiter = d.Delimiter
	}
	if o.Comment == 0 {
		o.Comment = d.Comment
	}
	if o.Header == nil {
		o.Header = d.Header
	}
	o.TrimLeadingSpace = o.TrimLeadingSpace || d.TrimLeadingSpace
	o.LazyQuotes = o.LazyQuotes || d.LazyQuotes
	return o
}

// RecordError describes a single record that could not be decoded.
type RecordError struct {
	Source string
	Record int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: record %d: %v", e.Source, e.Record, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// CSVReader decodes records into T using csvutil struct tags.
type CSVReader[T any] struct {
	source  string
	src     *trackingReader
	dec     *csvutil.Decoder
	onError ErrorHandler
	record  int
	eof     bool
}

// NewCSV prepares a reader over r. An empty input yields a reader that is
// already at end of stream. source is only used in error messages.
func NewCSV[T any](r io.Reader, source string, opts Options, onError ErrorHandler) (*CSVReader[T], error) {
	src := &trackingReader{r: r}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false
	cr.TrimLeadingSpace = opts.TrimLeadingSpace
	cr.LazyQuotes = opts.LazyQuotes
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		cr.Comment = opts.Comment
	}

	reader := &CSVReader[T]{source: source, src: src, onError: onError}

	dec, err := csvutil.NewDecoder(cr, opts.Header...)
	if err != nil {
		if errors.Is(err, io.EOF) {
			reader.eof = true
			return reader, nil
		}
		return nil, fmt.Errorf("read header of %s: %w", source, err)
	}
	reader.dec = dec
	return reader, nil
}

// EndOfStream reports whether the last read reached the end of the input.
func (r *CSVReader[T]) EndOfStream() bool {
	return r.eof
}

// ReadBatch returns up to max decoded items. A short batch is returned
// together with EndOfStream() == true once the input is exhausted.
func (r *CSVReader[T]) ReadBatch(ctx context.Context, max int) ([]T, error) {
	if max <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", max)
	}
	if r.eof {
		return nil, nil
	}

	batch := make([]T, 0, max)
	for len(batch) < max {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var item T
		err := r.dec.Decode(&item)
		if errors.Is(err, io.EOF) {
			r.eof = true
			break
		}
		r.record++
		if err != nil {
			// I/O failures of the underlying source are never record errors
			if r.src.err != nil {
				return nil, fmt.Errorf("read %s: %w", r.source, r.src.err)
			}
			recErr := &RecordError{Source: r.source, Record: r.record, Err: err}
			if r.onError == nil {
				return nil, recErr
			}
			r.onError(recErr)
			continue
		}
		batch = append(batch, item)
	}
	return batch, nil
}

// trackingReader remembers the first non-EOF error of the wrapped reader so
// that source failures can be told apart from malformed records.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
