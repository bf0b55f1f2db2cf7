// Package report renders per-vertex filter traces as PNG plots and as an
// interactive HTML chart page.
package report

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/contour.predict/internal/debug"
	"github.com/banshee-data/contour.predict/internal/fsutil"
)

// axisColors is indexed by model.Axis.
var axisColors = [...]color.Color{
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 255},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255},
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255},
}

// selectVertices returns the sorted vertex indices present in grouped,
// capped at maxVertices when maxVertices > 0.
func selectVertices(grouped map[int][]debug.SeriesTrace, maxVertices int) []int {
	vs := make([]int, 0, len(grouped))
	for v := range grouped {
		vs = append(vs, v)
	}
	sort.Ints(vs)
	if maxVertices > 0 && len(vs) > maxVertices {
		vs = vs[:maxVertices]
	}
	return vs
}

// VertexPlotName is the file name used for vertex v.
func VertexPlotName(v int) string {
	return fmt.Sprintf("vertex_%04d.png", v)
}

// PlotVertexSeries writes one PNG per vertex to outDir showing the observed
// coordinates (markers) and filtered estimates (lines) for each axis across
// fractions. It returns the number of plots written.
func PlotVertexSeries(fsys fsutil.FileSystem, outDir string, traces []debug.SeriesTrace, maxVertices int) (int, error) {
	if len(traces) == 0 {
		return 0, nil
	}
	if err := fsys.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create plot dir: %w", err)
	}

	grouped := debug.ByVertex(traces)
	count := 0
	for _, v := range selectVertices(grouped, maxVertices) {
		p, err := vertexPlot(v, grouped[v])
		if err != nil {
			return count, fmt.Errorf("vertex %d: %w", v, err)
		}
		if err := savePNG(fsys, p, filepath.Join(outDir, VertexPlotName(v))); err != nil {
			return count, fmt.Errorf("vertex %d: %w", v, err)
		}
		count++
	}
	return count, nil
}

func vertexPlot(v int, traces []debug.SeriesTrace) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Vertex %d - Observed vs Filtered", v)
	p.X.Label.Text = "Fraction"
	p.Y.Label.Text = "Coordinate"

	for _, tr := range traces {
		raw := make(plotter.XYs, len(tr.Raw))
		est := make(plotter.XYs, len(tr.Estimates))
		for i, z := range tr.Raw {
			raw[i] = plotter.XY{X: float64(i), Y: z}
		}
		for i, x := range tr.Estimates {
			est[i] = plotter.XY{X: float64(i), Y: x}
		}

		c := axisColors[int(tr.Axis)%len(axisColors)]

		obs, err := plotter.NewScatter(raw)
		if err != nil {
			return nil, err
		}
		obs.GlyphStyle.Color = c
		obs.GlyphStyle.Shape = draw.CircleGlyph{}
		obs.GlyphStyle.Radius = vg.Points(2.5)

		line, err := plotter.NewLine(est)
		if err != nil {
			return nil, err
		}
		line.Color = c
		line.Width = vg.Points(1)

		p.Add(obs, line)
		p.Legend.Add(tr.Axis.String()+" observed", obs)
		p.Legend.Add(tr.Axis.String()+" filtered", line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

func savePNG(fsys fsutil.FileSystem, p *plot.Plot, path string) (err error) {
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := wt.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
