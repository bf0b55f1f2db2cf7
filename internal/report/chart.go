package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/contour.predict/internal/debug"
	"github.com/banshee-data/contour.predict/internal/model"
)

// echartsAssetsHost serves the echarts JS for rendered pages.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var axisHex = [...]string{"#d62728", "#2ca02c", "#1f77b4"}

// RenderChart writes an HTML page to w with, for each selected vertex, a
// line chart of observed and filtered coordinates per axis, then the
// per-step gain of the first selected vertex. A non-nil summary adds a bar
// chart of displacement per vertex.
func RenderChart(w io.Writer, title string, traces []debug.SeriesTrace, summary *model.Summary, maxVertices int) error {
	if len(traces) == 0 {
		return fmt.Errorf("render chart: no traces")
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.PageTitle = title

	grouped := debug.ByVertex(traces)
	vertices := selectVertices(grouped, maxVertices)
	for _, v := range vertices {
		page.AddCharts(vertexLine(v, grouped[v]))
	}
	page.AddCharts(gainLine(grouped[vertices[0]]))

	if summary != nil && len(summary.Displacements) > 0 {
		page.AddCharts(displacementBar(summary))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func fractionLabels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

func vertexLine(v int, traces []debug.SeriesTrace) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Vertex %d", v), Subtitle: "observed (dashed) vs filtered"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Fraction", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Coordinate"}),
	)

	n := 0
	for _, tr := range traces {
		if len(tr.Raw) > n {
			n = len(tr.Raw)
		}
	}
	line.SetXAxis(fractionLabels(n))

	for _, tr := range traces {
		c := axisHex[int(tr.Axis)%len(axisHex)]
		line.AddSeries(tr.Axis.String()+" observed", lineData(tr.Raw),
			charts.WithLineStyleOpts(opts.LineStyle{Color: c, Type: "dashed"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: c}),
		)
		line.AddSeries(tr.Axis.String()+" filtered", lineData(tr.Estimates),
			charts.WithLineStyleOpts(opts.LineStyle{Color: c, Width: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: c}),
		)
	}
	return line
}

func gainLine(traces []debug.SeriesTrace) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "300px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Kalman gain", Subtitle: "per step, first vertex"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	if len(traces) == 0 {
		return line
	}
	line.SetXAxis(fractionLabels(len(traces[0].Gains)))
	for _, tr := range traces {
		line.AddSeries(tr.Axis.String(), lineData(tr.Gains),
			charts.WithLineStyleOpts(opts.LineStyle{Color: axisHex[int(tr.Axis)%len(axisHex)]}),
		)
	}
	return line
}

func displacementBar(s *model.Summary) *charts.Bar {
	x := make([]string, len(s.Displacements))
	y := make([]opts.BarData, len(s.Displacements))
	for i, d := range s.Displacements {
		x[i] = strconv.Itoa(i)
		y[i] = opts.BarData{Value: d}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Displacement per vertex", Subtitle: s.String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Vertex"}),
	)
	bar.SetXAxis(x).AddSeries("displacement", y)
	return bar
}

func lineData(vs []float64) []opts.LineData {
	out := make([]opts.LineData, len(vs))
	for i, v := range vs {
		out[i] = opts.LineData{Value: v}
	}
	return out
}
