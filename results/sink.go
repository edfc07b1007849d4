// Package results provides the sinks that record the progress of training: an append-only text
// stream, and a SQLite table.
package results

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Result is a single measurement taken at the end of a training iteration
type Result struct {
	Phase     string
	Iteration int

	// Set names the data the measurement was made on, e.g. "train", "valid" or "test"
	Set string

	// Average cost over the set
	Cost float64

	// The fraction of examples misclassified. Only meaningful if HasClassError is true.
	ClassError    float64
	HasClassError bool

	// The average unweighted cost of each criterion, for phases with more than one
	SubCosts []float64
}

// Sink receives Results. Sinks are not safe for concurrent use.
type Sink interface {
	Record(Result) error
	Close() error
}

// Text is a Sink writing one line per Result, with tab-separated fields:
//	phase	iteration	set	cost	class-error	sub-costs
// where a missing class error is written as "-" and sub-costs are separated by commas.
type Text struct {
	bw     *bufio.Writer
	closer io.Closer
}

// NewText returns a Text Sink writing to 'w'. Close flushes, but does not close 'w'.
func NewText(w io.Writer) *Text {
	return &Text{bw: bufio.NewWriter(w)}
}

// AppendText opens (or creates) the file at 'path' for appending, and returns a Text Sink writing
// to it. Close closes the file.
func AppendText(path string) (*Text, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open file %q\n", path)
	}

	t := NewText(f)
	t.closer = f
	return t, nil
}

func (t *Text) Record(r Result) error {
	line := make([]byte, 0, 64)
	line = append(line, r.Phase...)
	line = append(line, '\t')
	line = strconv.AppendInt(line, int64(r.Iteration), 10)
	line = append(line, '\t')
	line = append(line, r.Set...)
	line = append(line, '\t')
	line = strconv.AppendFloat(line, r.Cost, 'g', -1, 64)
	line = append(line, '\t')

	if r.HasClassError {
		line = strconv.AppendFloat(line, r.ClassError, 'g', -1, 64)
	} else {
		line = append(line, '-')
	}

	line = append(line, '\t')
	for i, c := range r.SubCosts {
		if i != 0 {
			line = append(line, ',')
		}

		line = strconv.AppendFloat(line, c, 'g', -1, 64)
	}

	line = append(line, '\n')
	if _, err := t.bw.Write(line); err != nil {
		return errors.Wrapf(err, "Writing result failed\n")
	}

	// each result is flushed so that the stream can be followed while training
	if err := t.bw.Flush(); err != nil {
		return errors.Wrapf(err, "Flushing result failed\n")
	}

	return nil
}

func (t *Text) Close() error {
	if err := t.bw.Flush(); err != nil {
		return errors.Wrapf(err, "Flushing results failed\n")
	}

	if t.closer != nil {
		return t.closer.Close()
	}

	return nil
}

type multi []Sink

// Multi returns a Sink that records each Result to every one of 'sinks', in order. Nil sinks are
// skipped.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}

	return m
}

func (m multi) Record(r Result) error {
	for _, s := range m {
		if err := s.Record(r); err != nil {
			return err
		}
	}

	return nil
}

func (m multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}

type nopCloser struct {
	Sink
}

func (nopCloser) Close() error {
	return nil
}

// NopCloser returns a Sink that records to 's', but does nothing on Close. It lets one long-lived
// Sink be shared by several that are closed after each phase.
func NopCloser(s Sink) Sink {
	return nopCloser{s}
}
