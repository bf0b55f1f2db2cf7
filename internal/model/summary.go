package model

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes how far the predicted structure moved relative to a
// reference fraction (normally the most recent observed fraction).
type Summary struct {
	Vertices          int
	MeanDisplacement  float64 // Mean Euclidean vertex displacement
	StdDisplacement   float64
	MaxDisplacement   float64
	MaxVertex         int        // Vertex index with the largest displacement
	MeanShift         [3]float64 // Mean signed shift per axis (x, y, z)
	ReferenceFraction string
	Displacements     []float64 // Per-vertex Euclidean displacement
}

// Summarize compares pred against ref vertex by vertex.
func Summarize(ref, pred *Fraction) (Summary, error) {
	if len(ref.Points) != len(pred.Points) {
		return Summary{}, fmt.Errorf("summarize: reference has %d points, prediction has %d",
			len(ref.Points), len(pred.Points))
	}
	s := Summary{Vertices: len(pred.Points), ReferenceFraction: ref.Name}
	if s.Vertices == 0 {
		return s, nil
	}

	dist := make([]float64, s.Vertices)
	shifts := [3][]float64{
		make([]float64, s.Vertices),
		make([]float64, s.Vertices),
		make([]float64, s.Vertices),
	}
	for i := range pred.Points {
		a := []float64{ref.Points[i].X, ref.Points[i].Y, ref.Points[i].Z}
		b := []float64{pred.Points[i].X, pred.Points[i].Y, pred.Points[i].Z}
		dist[i] = floats.Distance(a, b, 2)
		for ax := range shifts {
			shifts[ax][i] = b[ax] - a[ax]
		}
	}

	if s.Vertices > 1 {
		s.MeanDisplacement, s.StdDisplacement = stat.MeanStdDev(dist, nil)
	} else {
		s.MeanDisplacement = dist[0]
	}
	s.Displacements = dist
	s.MaxVertex = floats.MaxIdx(dist)
	s.MaxDisplacement = dist[s.MaxVertex]
	for ax := range shifts {
		s.MeanShift[ax] = stat.Mean(shifts[ax], nil)
	}
	return s, nil
}

func (s Summary) String() string {
	return fmt.Sprintf("vertices=%d ref=%q mean=%.4f std=%.4f max=%.4f@%d shift=(%.4f, %.4f, %.4f)",
		s.Vertices, s.ReferenceFraction, s.MeanDisplacement, s.StdDisplacement,
		s.MaxDisplacement, s.MaxVertex, s.MeanShift[0], s.MeanShift[1], s.MeanShift[2])
}
