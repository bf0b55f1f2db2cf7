package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	ref := NewFraction("fx3", Point{0, 0, 0}, Point{1, 1, 1}, Point{5, 5, 5})
	pred := NewFraction(PredictedName, Point{3, 4, 0}, Point{1, 1, 1}, Point{5, 5, 6})

	s, err := Summarize(&ref, &pred)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Vertices)
	assert.Equal(t, "fx3", s.ReferenceFraction)
	assert.InDelta(t, 2.0, s.MeanDisplacement, 1e-12) // (5 + 0 + 1) / 3
	assert.InDelta(t, math.Sqrt(7), s.StdDisplacement, 1e-12)
	assert.Equal(t, 0, s.MaxVertex)
	assert.InDelta(t, 5.0, s.MaxDisplacement, 1e-12)
	assert.InDelta(t, 1.0, s.MeanShift[0], 1e-12)
	assert.InDelta(t, 4.0/3, s.MeanShift[1], 1e-12)
	assert.InDelta(t, 1.0/3, s.MeanShift[2], 1e-12)
	assert.Equal(t, []float64{5, 0, 1}, s.Displacements)
	assert.Contains(t, s.String(), "max=5.0000@0")
}

func TestSummarize_SingleVertex(t *testing.T) {
	t.Parallel()

	ref := NewFraction("a", Point{0, 0, 0})
	pred := NewFraction("b", Point{0, 0, 2})

	s, err := Summarize(&ref, &pred)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, s.MeanDisplacement, 1e-12)
	assert.Equal(t, 0.0, s.StdDisplacement)
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	ref := NewFraction("a")
	pred := NewFraction("b")
	s, err := Summarize(&ref, &pred)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Vertices)
}

func TestSummarize_LengthMismatch(t *testing.T) {
	t.Parallel()

	ref := NewFraction("a", Point{})
	pred := NewFraction("b", Point{}, Point{})
	_, err := Summarize(&ref, &pred)
	assert.Error(t, err)
}
