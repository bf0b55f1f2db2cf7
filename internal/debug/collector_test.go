package debug

import (
	"testing"

	"github.com/banshee-data/contour.predict/internal/kalman"
	"github.com/banshee-data/contour.predict/internal/model"
	"github.com/banshee-data/contour.predict/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_DisabledIsNoop(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	assert.False(t, c.IsEnabled())

	c.Begin()
	c.ObserveSeries(0, model.AxisX, []float64{1}, []kalman.Step{{Estimate: 1}})
	assert.Nil(t, c.Emit())
}

func TestCollector_RequiresBegin(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.SetEnabled(true)
	c.ObserveSeries(0, model.AxisX, []float64{1}, []kalman.Step{{Estimate: 1}})
	assert.Nil(t, c.Emit())
}

func TestCollector_RecordsPredictRun(t *testing.T) {
	t.Parallel()

	m := model.New(testutil.DriftingFractions(4, 3, 0.5)...)
	c := NewCollector()
	c.SetEnabled(true)
	c.Begin()

	pred, err := m.Predict(kalman.DefaultParams(), c)
	require.NoError(t, err)

	traces := c.Emit()
	require.Len(t, traces, 3*3)

	for _, tr := range traces {
		assert.Len(t, tr.Raw, 4)
		assert.Len(t, tr.Estimates, 4)
		assert.Len(t, tr.Residuals, 4)
		assert.Len(t, tr.Gains, 4)
		assert.Equal(t, pred.Points[tr.Vertex].Coord(tr.Axis), tr.Final())
	}

	grouped := ByVertex(traces)
	require.Len(t, grouped, 3)
	for v, trs := range grouped {
		require.Len(t, trs, 3)
		for i, tr := range trs {
			assert.Equal(t, v, tr.Vertex)
			assert.Equal(t, model.Axes[i], tr.Axis)
		}
	}

	// Emit resets.
	assert.Nil(t, c.Emit())
}

func TestCollector_CopiesRaw(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.SetEnabled(true)
	c.Begin()

	raw := []float64{1, 2}
	c.ObserveSeries(0, model.AxisY, raw, []kalman.Step{{Estimate: 1}, {Estimate: 2}})
	raw[0] = 99

	traces := c.Emit()
	require.Len(t, traces, 1)
	assert.Equal(t, []float64{1, 2}, traces[0].Raw)
}

func TestCollector_Reset(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.SetEnabled(true)
	c.Begin()
	c.ObserveSeries(1, model.AxisZ, []float64{3}, []kalman.Step{{Estimate: 3}})
	c.Reset()
	assert.Nil(t, c.Emit())
}

func TestSeriesTrace_FinalEmpty(t *testing.T) {
	t.Parallel()
	assert.Zero(t, SeriesTrace{}.Final())
}
