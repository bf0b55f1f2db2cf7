// Package model holds the per-fraction contour data and assembles the
// predicted structure by filtering every vertex's coordinate series.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/contour.predict/internal/kalman"
)

// PredictedName is the name given to the synthetic predicted fraction.
const PredictedName = "Model"

// Axis identifies one coordinate of a Point.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists the coordinates in filter order.
var Axes = [...]Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "axis(" + strconv.Itoa(int(a)) + ")"
}

// Point is a single contour vertex.
type Point struct {
	X, Y, Z float64
}

// Coord returns the value of p on axis a.
func (p Point) Coord(a Axis) float64 {
	switch a {
	case AxisY:
		return p.Y
	case AxisZ:
		return p.Z
	}
	return p.X
}

// String formats p as "x y z" using the shortest exact representation.
func (p Point) String() string {
	return formatFloat(p.X) + " " + formatFloat(p.Y) + " " + formatFloat(p.Z)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Fraction is one observation of the structure's vertex set.
type Fraction struct {
	Name        string
	Offset      int64 // Byte offset just past the structure marker line
	Line        int   // 1-based line number of the structure marker
	VertexCount int   // Declared number_of_vertices
	Points      []Point
}

// NewFraction returns a fraction whose declared vertex count matches pts.
func NewFraction(name string, pts ...Point) Fraction {
	return Fraction{Name: name, VertexCount: len(pts), Points: pts}
}

// String returns every point as "x y z", one per line, each line
// terminated by a newline.
func (f *Fraction) String() string {
	var b strings.Builder
	for _, p := range f.Points {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Series returns the values of one axis for vertex n across fractions, in
// fraction order.
func Series(fractions []Fraction, n int, axis Axis) []float64 {
	out := make([]float64, len(fractions))
	for m := range fractions {
		out[m] = fractions[m].Points[n].Coord(axis)
	}
	return out
}

// ErrSizeMismatch matches any *SizeMismatchError.
var ErrSizeMismatch = errors.New("size mismatch")

// SizeMismatchError reports fractions whose point counts disagree.
type SizeMismatchError struct {
	Fractions   int // Number of fractions
	VertexCount int // Vertex count of the first fraction
	Total       int // Stored points across all fractions
	Offender    string
}

func (e *SizeMismatchError) Error() string {
	msg := fmt.Sprintf("size mismatch: %d points stored across %d fractions, want %d×%d=%d",
		e.Total, e.Fractions, e.Fractions, e.VertexCount, e.Fractions*e.VertexCount)
	if e.Offender != "" {
		msg += " (first mismatch in fraction " + strconv.Quote(e.Offender) + ")"
	}
	return msg
}

// Is reports whether target is ErrSizeMismatch.
func (e *SizeMismatchError) Is(target error) bool {
	return target == ErrSizeMismatch
}

// Observer receives the raw and filtered series for every vertex and axis
// during Predict.
type Observer interface {
	ObserveSeries(vertex int, axis Axis, raw []float64, steps []kalman.Step)
}

// Model is an ordered collection of fractions.
type Model struct {
	Fractions []Fraction
}

// New returns a Model over the given fractions.
func New(fractions ...Fraction) *Model {
	return &Model{Fractions: fractions}
}

// AddFraction appends a fraction in time order.
func (m *Model) AddFraction(f Fraction) {
	m.Fractions = append(m.Fractions, f)
}

// NumFractions returns the number of fractions held.
func (m *Model) NumFractions() int {
	return len(m.Fractions)
}

// VertexCount returns the point count of the first fraction, or 0 when
// there are no fractions.
func (m *Model) VertexCount() int {
	if len(m.Fractions) == 0 {
		return 0
	}
	return len(m.Fractions[0].Points)
}

// CheckSize reports whether every fraction holds the same number of points
// and the total equals vertex count × fraction count.
func (m *Model) CheckSize() bool {
	return m.sizeError() == nil
}

func (m *Model) sizeError() *SizeMismatchError {
	if len(m.Fractions) == 0 {
		return &SizeMismatchError{}
	}
	v := len(m.Fractions[0].Points)
	total := 0
	offender := ""
	for i := range m.Fractions {
		f := &m.Fractions[i]
		total += len(f.Points)
		if offender == "" && (len(f.Points) != v || f.VertexCount != len(f.Points)) {
			offender = f.Name
		}
	}
	if offender != "" || total != v*len(m.Fractions) {
		return &SizeMismatchError{
			Fractions:   len(m.Fractions),
			VertexCount: v,
			Total:       total,
			Offender:    offender,
		}
	}
	return nil
}

// Predict filters each vertex's x, y and z series independently and returns
// the predicted fraction whose n-th point is the last estimate of vertex n.
// Nothing is returned unless every series filters successfully. obs may be
// nil.
func (m *Model) Predict(params kalman.Params, obs Observer) (*Fraction, error) {
	if serr := m.sizeError(); serr != nil {
		opsf("prediction skipped: %v", serr)
		return nil, serr
	}

	v := m.VertexCount()
	pred := &Fraction{
		Name:        PredictedName,
		Line:        1,
		VertexCount: v,
		Points:      make([]Point, 0, v),
	}

	diagf("predicting %d vertices over %d fractions", v, len(m.Fractions))
	for n := 0; n < v; n++ {
		var final [3]float64
		for _, axis := range Axes {
			raw := Series(m.Fractions, n, axis)
			steps, err := kalman.Trace(raw, params)
			if err != nil {
				return nil, fmt.Errorf("vertex %d axis %s: %w", n, axis, err)
			}
			if obs != nil {
				obs.ObserveSeries(n, axis, raw, steps)
			}
			last := steps[len(steps)-1]
			tracef("vertex=%d axis=%s last=%g residual=%g gain=%g", n, axis, last.Estimate, last.Residual, last.Gain)
			final[axis] = last.Estimate
		}
		pred.Points = append(pred.Points, Point{X: final[AxisX], Y: final[AxisY], Z: final[AxisZ]})
	}
	return pred, nil
}
