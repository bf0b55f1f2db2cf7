// Package roi reads and rewrites the plain-text planning (.roi) files that
// carry contour vertex blocks.
//
// A structure instance is announced by a marker line containing the
// structure name. Somewhere after it a `number_of_vertices = N;` line
// declares the vertex count and a `vertices={` line opens the block; the
// next N lines each hold one "x y z" vertex.
package roi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/contour.predict/internal/model"
)

const (
	// VertexCountKey introduces the declared vertex count of a contour.
	VertexCountKey = "number_of_vertices"
	// VertexBlockKey opens a vertex block.
	VertexBlockKey = "vertices={"
)

// DefaultExcludeMarkers are substrings that disqualify a line from being a
// structure marker even when it contains the structure name.
var DefaultExcludeMarkers = []string{"org", "//", "SC", "IC"}

var (
	ErrNoFractions        = errors.New("roi: no structure markers found")
	ErrMissingVertexCount = errors.New("roi: missing number_of_vertices")
	ErrMissingVertexBlock = errors.New("roi: missing vertices={ block")
	ErrMalformedVertex    = errors.New("roi: malformed vertex line")
	ErrTruncatedBlock     = errors.New("roi: vertex block ends before declared count")
)

// Options selects which structure to extract.
type Options struct {
	Structure      string
	ExcludeMarkers []string
}

// isMarker reports whether line announces an instance of the structure.
func (o Options) isMarker(line string) bool {
	if !strings.Contains(line, o.Structure) {
		return false
	}
	for _, ex := range o.ExcludeMarkers {
		if ex != "" && strings.Contains(line, ex) {
			return false
		}
	}
	return true
}

// document is a planning file split into lines, with the byte offset just
// past each line.
type document struct {
	lines []string // line content without the trailing newline
	raw   []string // line content as read, newline included
	ends  []int64
}

func readDocument(r io.Reader) (*document, error) {
	doc := &document{}
	br := bufio.NewReader(r)
	var off int64
	for {
		s, err := br.ReadString('\n')
		if len(s) > 0 {
			off += int64(len(s))
			doc.raw = append(doc.raw, s)
			doc.lines = append(doc.lines, strings.TrimRight(s, "\r\n"))
			doc.ends = append(doc.ends, off)
		}
		if err == io.EOF {
			return doc, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Parse extracts every instance of the structure, in file order.
//
// The first pass finds marker lines. The second pass scans forward from
// each marker independently for the vertex count and block, so a marker
// is always paired with the first block that follows it.
func Parse(r io.Reader, opts Options) ([]model.Fraction, error) {
	if opts.Structure == "" {
		return nil, errors.New("roi: structure name is required")
	}
	doc, err := readDocument(r)
	if err != nil {
		return nil, fmt.Errorf("roi: read: %w", err)
	}

	var markers []int
	for i, line := range doc.lines {
		if opts.isMarker(line) {
			diagf("found %s on line %d: %s", opts.Structure, i+1, strings.TrimSpace(line))
			markers = append(markers, i)
		}
	}
	if len(markers) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoFractions, opts.Structure)
	}

	fractions := make([]model.Fraction, 0, len(markers))
	for _, i := range markers {
		f, err := doc.fractionAt(i)
		if err != nil {
			return nil, err
		}
		fractions = append(fractions, f)
	}
	return fractions, nil
}

func (d *document) fractionAt(marker int) (model.Fraction, error) {
	f := model.Fraction{
		Name:   fractionName(d.lines[marker]),
		Offset: d.ends[marker],
		Line:   marker + 1,
	}

	count := -1
	block := -1
	for j := marker + 1; j < len(d.lines); j++ {
		line := d.lines[j]
		if count < 0 && strings.Contains(line, VertexCountKey) {
			n, err := parseVertexCount(line)
			if err != nil {
				return f, fmt.Errorf("fraction %q line %d: %w", f.Name, j+1, err)
			}
			count = n
		}
		if strings.Contains(line, VertexBlockKey) {
			block = j
			break
		}
	}
	if block < 0 {
		return f, fmt.Errorf("fraction %q (line %d): %w", f.Name, f.Line, ErrMissingVertexBlock)
	}
	if count < 0 {
		return f, fmt.Errorf("fraction %q (line %d): %w", f.Name, f.Line, ErrMissingVertexCount)
	}

	f.VertexCount = count
	f.Points = make([]model.Point, 0, count)
	for k := 0; k < count; k++ {
		j := block + 1 + k
		if j >= len(d.lines) {
			return f, fmt.Errorf("fraction %q: %w (%d of %d)", f.Name, ErrTruncatedBlock, k, count)
		}
		p, err := ParsePoint(d.lines[j])
		if err != nil {
			return f, fmt.Errorf("fraction %q line %d: %w", f.Name, j+1, err)
		}
		f.Points = append(f.Points, p)
	}
	tracef("fraction %q: %d vertices from line %d", f.Name, count, block+2)
	return f, nil
}

// fractionName returns the second field of the marker line, falling back
// to the trimmed line when it has a single field.
func fractionName(line string) string {
	fields := strings.Fields(line)
	if len(fields) > 1 {
		return strings.TrimRight(fields[1], ";")
	}
	return strings.TrimSpace(line)
}

// parseVertexCount reads N from a line such as "number_of_vertices = N;".
func parseVertexCount(line string) (int, error) {
	idx := strings.Index(line, VertexCountKey)
	rest := strings.TrimSpace(line[idx+len(VertexCountKey):])
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "="))
	rest = strings.TrimSpace(strings.TrimRight(rest, "; \t"))
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMissingVertexCount, strings.TrimSpace(line))
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrMissingVertexCount, n)
	}
	return n, nil
}

// ParsePoint parses the first three whitespace-separated fields of line.
func ParsePoint(line string) (model.Point, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return model.Point{}, fmt.Errorf("%w: %q", ErrMalformedVertex, line)
	}
	var v [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return model.Point{}, fmt.Errorf("%w: %q: %v", ErrMalformedVertex, line, err)
		}
		v[i] = f
	}
	return model.Point{X: v[0], Y: v[1], Z: v[2]}, nil
}
