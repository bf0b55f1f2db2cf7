package report

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/banshee-data/contour.predict/internal/debug"
	"github.com/banshee-data/contour.predict/internal/fsutil"
	"github.com/banshee-data/contour.predict/internal/kalman"
	"github.com/banshee-data/contour.predict/internal/model"
	"github.com/banshee-data/contour.predict/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectTraces(t *testing.T, f, v int) ([]debug.SeriesTrace, *model.Summary) {
	t.Helper()

	fractions := testutil.DriftingFractions(f, v, 0.5)
	m := model.New(fractions...)
	c := debug.NewCollector()
	c.SetEnabled(true)
	c.Begin()
	pred, err := m.Predict(kalman.DefaultParams(), c)
	require.NoError(t, err)

	s, err := model.Summarize(&fractions[len(fractions)-1], pred)
	require.NoError(t, err)
	return c.Emit(), &s
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestPlotVertexSeries(t *testing.T) {
	t.Parallel()

	traces, _ := collectTraces(t, 4, 5)
	fsys := fsutil.NewMemoryFileSystem()

	n, err := PlotVertexSeries(fsys, "plots", traces, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, fsys.Exists("plots"))

	assert.Equal(t, []string{
		filepath.Join("plots", VertexPlotName(0)),
		filepath.Join("plots", VertexPlotName(1)),
		filepath.Join("plots", VertexPlotName(2)),
	}, fsys.Files("plots"))

	data, err := fsys.ReadFile(filepath.Join("plots", VertexPlotName(0)))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic), "not a PNG")
}

func TestPlotVertexSeries_AllVertices(t *testing.T) {
	t.Parallel()

	traces, _ := collectTraces(t, 2, 4)
	fsys := fsutil.NewMemoryFileSystem()

	n, err := PlotVertexSeries(fsys, "out", traces, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPlotVertexSeries_NoTraces(t *testing.T) {
	t.Parallel()

	fsys := fsutil.NewMemoryFileSystem()
	n, err := PlotVertexSeries(fsys, "plots", nil, 3)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, fsys.Exists("plots"))
}

func TestRenderChart(t *testing.T) {
	t.Parallel()

	traces, summary := collectTraces(t, 3, 4)

	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, "CTV12 prediction", traces, summary, 2))

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "CTV12 prediction")
	assert.Contains(t, html, "Vertex 0")
	assert.Contains(t, html, "Vertex 1")
	assert.NotContains(t, html, "Vertex 2")
	assert.Contains(t, html, "Kalman gain")
	assert.Contains(t, html, "Displacement per vertex")
}

func TestRenderChart_WithoutSummary(t *testing.T) {
	t.Parallel()

	traces, _ := collectTraces(t, 2, 1)

	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, "t", traces, nil, 0))
	assert.NotContains(t, buf.String(), "Displacement per vertex")
}

func TestRenderChart_NoTraces(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	assert.Error(t, RenderChart(&buf, "t", nil, nil, 0))
	assert.Zero(t, buf.Len())
}
