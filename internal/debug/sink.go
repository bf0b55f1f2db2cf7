package debug

import (
	"bufio"
	"fmt"
	"io"

	"github.com/banshee-data/contour.predict/internal/fsutil"
	"github.com/banshee-data/contour.predict/internal/model"
)

// Sink receives a dump of each fraction: its name on a line ending in ':',
// every point as "x y z", then a blank line. The format is for people, not
// for parsing.
type Sink struct {
	w      *bufio.Writer
	closer io.Closer
	count  int
}

// NewSink wraps w. Close flushes but does not close w.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: bufio.NewWriter(w)}
}

// CreateSink creates (or truncates) path on fsys and returns a sink that
// owns the file. The caller must Close it.
func CreateSink(fsys fsutil.FileSystem, path string) (*Sink, error) {
	f, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("debug sink: %w", err)
	}
	return &Sink{w: bufio.NewWriter(f), closer: f}, nil
}

// WriteFraction appends one fraction to the dump.
func (s *Sink) WriteFraction(f *model.Fraction) error {
	if _, err := fmt.Fprintf(s.w, "%s:\n%s\n", f.Name, f.String()); err != nil {
		return err
	}
	s.count++
	return nil
}

// WriteFractions appends each fraction in order.
func (s *Sink) WriteFractions(fractions []model.Fraction) error {
	for i := range fractions {
		if err := s.WriteFraction(&fractions[i]); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of fractions written.
func (s *Sink) Count() int {
	return s.count
}

// Close flushes buffered output and closes the underlying file, if owned.
func (s *Sink) Close() error {
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}

// With opens a sink on path, passes it to fn, and closes it afterwards.
// An empty path runs fn with a nil sink.
func With(fsys fsutil.FileSystem, path string, fn func(*Sink) error) (err error) {
	if path == "" {
		return fn(nil)
	}
	s, err := CreateSink(fsys, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
