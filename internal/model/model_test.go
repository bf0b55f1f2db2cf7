package model

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/banshee-data/contour.predict/internal/kalman"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeFractions builds f fractions of v points whose coordinates drift
// linearly with the fraction index.
func makeFractions(f, v int) []Fraction {
	out := make([]Fraction, f)
	for m := 0; m < f; m++ {
		pts := make([]Point, v)
		for n := 0; n < v; n++ {
			pts[n] = Point{
				X: float64(n) + 0.1*float64(m),
				Y: -float64(n) + 0.2*float64(m),
				Z: 10 + 0.05*float64(m),
			}
		}
		out[m] = NewFraction("fx"+string(rune('A'+m)), pts...)
	}
	return out
}

type recordingObserver struct {
	calls []string
	steps int
}

func (r *recordingObserver) ObserveSeries(vertex int, axis Axis, raw []float64, steps []kalman.Step) {
	r.calls = append(r.calls, axis.String())
	r.steps += len(steps)
}

func TestCheckSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fractions []Fraction
		want      bool
	}{
		{name: "no fractions", fractions: nil, want: false},
		{name: "single fraction", fractions: makeFractions(1, 4), want: true},
		{name: "consistent", fractions: makeFractions(5, 7), want: true},
		{
			name: "three vs four vertices",
			fractions: []Fraction{
				NewFraction("a", Point{}, Point{}, Point{}),
				NewFraction("b", Point{}, Point{}, Point{}, Point{}),
			},
			want: false,
		},
		{
			// Totals agree (3+5 == 4+4) but individual counts do not.
			name: "compensating counts",
			fractions: []Fraction{
				NewFraction("a", make([]Point, 4)...),
				NewFraction("b", make([]Point, 3)...),
				NewFraction("c", make([]Point, 5)...),
			},
			want: false,
		},
		{
			name: "declared count disagrees with stored points",
			fractions: []Fraction{
				NewFraction("a", make([]Point, 2)...),
				{Name: "b", VertexCount: 3, Points: make([]Point, 2)},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := New(tt.fractions...)
			assert.Equal(t, tt.want, m.CheckSize())
		})
	}
}

func TestPredict_OutputLength(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ f, v int }{{1, 1}, {2, 3}, {6, 12}, {3, 0}} {
		m := New(makeFractions(tc.f, tc.v)...)
		pred, err := m.Predict(kalman.DefaultParams(), nil)
		require.NoError(t, err)
		assert.Len(t, pred.Points, tc.v, "f=%d v=%d", tc.f, tc.v)
		assert.Equal(t, tc.v, pred.VertexCount)
		assert.Equal(t, PredictedName, pred.Name)
	}
}

func TestPredict_TwoFractionExample(t *testing.T) {
	t.Parallel()

	m := New(
		NewFraction("A", Point{0, 0, 0}),
		NewFraction("B", Point{2, 0, 0}),
	)
	pred, err := m.Predict(kalman.DefaultParams(), nil)
	require.NoError(t, err)
	require.Len(t, pred.Points, 1)

	assert.InDelta(t, 2/2.1, pred.Points[0].X, 1e-12)
	assert.Equal(t, 0.0, pred.Points[0].Y)
	assert.Equal(t, 0.0, pred.Points[0].Z)
}

func TestPredict_MatchesPerAxisFilter(t *testing.T) {
	t.Parallel()

	fractions := makeFractions(4, 3)
	m := New(fractions...)
	params := kalman.DefaultParams()

	pred, err := m.Predict(params, nil)
	require.NoError(t, err)

	for n := 0; n < 3; n++ {
		for _, axis := range Axes {
			want, err := kalman.Last(Series(fractions, n, axis), params)
			require.NoError(t, err)
			assert.Equal(t, want, pred.Points[n].Coord(axis), "vertex %d axis %s", n, axis)
		}
	}
}

func TestPredict_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	fractions := makeFractions(3, 4)
	before := makeFractions(3, 4)
	m := New(fractions...)

	_, err := m.Predict(kalman.DefaultParams(), nil)
	require.NoError(t, err)

	if diff := cmp.Diff(before, m.Fractions); diff != "" {
		t.Errorf("input fractions mutated (-want +got):\n%s", diff)
	}
}

func TestPredict_SizeMismatch(t *testing.T) {
	t.Parallel()

	m := New(
		NewFraction("a", make([]Point, 3)...),
		NewFraction("b", make([]Point, 4)...),
	)
	pred, err := m.Predict(kalman.DefaultParams(), nil)
	require.Error(t, err)
	assert.Nil(t, pred)
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	var serr *SizeMismatchError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 2, serr.Fractions)
	assert.Equal(t, 3, serr.VertexCount)
	assert.Equal(t, 7, serr.Total)
	assert.Equal(t, "b", serr.Offender)
	assert.Contains(t, serr.Error(), "want 2×3=6")
}

func TestPredict_DegenerateParamsProduceNoOutput(t *testing.T) {
	t.Parallel()

	m := New(makeFractions(2, 2)...)
	pred, err := m.Predict(kalman.Params{A: 1}, nil)
	require.Error(t, err)
	assert.Nil(t, pred)
	assert.ErrorIs(t, err, kalman.ErrDegenerateInnovation)
	assert.Contains(t, err.Error(), "vertex 0 axis x")
}

func TestPredict_Observer(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	m := New(makeFractions(5, 2)...)
	_, err := m.Predict(kalman.DefaultParams(), obs)
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y", "z", "x", "y", "z"}, obs.calls)
	assert.Equal(t, 2*3*5, obs.steps)
}

func TestSeries(t *testing.T) {
	t.Parallel()

	fractions := []Fraction{
		NewFraction("a", Point{1, 2, 3}, Point{4, 5, 6}),
		NewFraction("b", Point{7, 8, 9}, Point{10, 11, 12}),
	}
	assert.Equal(t, []float64{4, 10}, Series(fractions, 1, AxisX))
	assert.Equal(t, []float64{2, 8}, Series(fractions, 0, AxisY))
	assert.Equal(t, []float64{6, 12}, Series(fractions, 1, AxisZ))
}

func TestFractionString(t *testing.T) {
	t.Parallel()

	f := NewFraction("a", Point{1, 2.5, -3}, Point{0.1, 0, 1e-7})
	assert.Equal(t, "1 2.5 -3\n0.1 0 1e-07\n", f.String())
}

func TestAxisString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x", AxisX.String())
	assert.Equal(t, "z", AxisZ.String())
	assert.Equal(t, "axis(7)", Axis(7).String())
}

func TestModelAccessors(t *testing.T) {
	t.Parallel()

	m := New()
	assert.Equal(t, 0, m.NumFractions())
	assert.Equal(t, 0, m.VertexCount())

	m.AddFraction(NewFraction("a", Point{}, Point{}))
	assert.Equal(t, 1, m.NumFractions())
	assert.Equal(t, 2, m.VertexCount())
}

func TestLogStreams(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLogWriters(nil, nil, nil)

	_, err := New(makeFractions(2, 1)...).Predict(kalman.DefaultParams(), nil)
	require.NoError(t, err)
	_, err = New(NewFraction("a", Point{}), NewFraction("b")).Predict(kalman.DefaultParams(), nil)
	require.Error(t, err)

	assert.Contains(t, diag.String(), "predicting 1 vertices over 2 fractions")
	assert.Equal(t, 3, strings.Count(trace.String(), "vertex=0"))
	assert.Contains(t, ops.String(), "prediction skipped")
}
