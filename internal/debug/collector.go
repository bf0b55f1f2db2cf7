// Package debug provides instrumentation for the contour prediction run.
// The Collector captures filter internals (raw series, estimates, residuals,
// gains) for plotting and tuning; the Sink writes a human-readable dump of
// every fraction.
package debug

import (
	"github.com/banshee-data/contour.predict/internal/kalman"
	"github.com/banshee-data/contour.predict/internal/model"
)

// defaultTraceCapacity is the typical vertex count of a CTV contour times
// three axes.
const defaultTraceCapacity = 3 * 64

// SeriesTrace is the filter record for one vertex and axis.
type SeriesTrace struct {
	Vertex    int
	Axis      model.Axis
	Raw       []float64 // Observed values, fraction order
	Estimates []float64 // Filtered values, one per observation
	Residuals []float64 // z_k - H*x' per step
	Gains     []float64 // Kalman gain per step
}

// Final returns the last filtered estimate, or 0 for an empty trace.
func (s SeriesTrace) Final() float64 {
	if len(s.Estimates) == 0 {
		return 0
	}
	return s.Estimates[len(s.Estimates)-1]
}

// Collector accumulates series traces during a single prediction run.
// When disabled, ObserveSeries is a no-op.
//
// The collector is stateful: call Begin before model.Predict, pass the
// collector as the observer, then Emit to extract the traces.
type Collector struct {
	enabled bool
	current []SeriesTrace
	began   bool
}

// NewCollector creates a collector that's initially disabled.
func NewCollector() *Collector {
	return &Collector{}
}

// SetEnabled controls whether the collector records traces.
func (c *Collector) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// IsEnabled returns true if the collector is actively recording.
func (c *Collector) IsEnabled() bool {
	return c.enabled
}

// Begin starts a new run, discarding anything not yet emitted.
func (c *Collector) Begin() {
	if !c.enabled {
		return
	}
	c.current = make([]SeriesTrace, 0, defaultTraceCapacity)
	c.began = true
}

// ObserveSeries implements model.Observer.
func (c *Collector) ObserveSeries(vertex int, axis model.Axis, raw []float64, steps []kalman.Step) {
	if !c.enabled || !c.began {
		return
	}
	tr := SeriesTrace{
		Vertex:    vertex,
		Axis:      axis,
		Raw:       append([]float64(nil), raw...),
		Estimates: make([]float64, len(steps)),
		Residuals: make([]float64, len(steps)),
		Gains:     make([]float64, len(steps)),
	}
	for i, st := range steps {
		tr.Estimates[i] = st.Estimate
		tr.Residuals[i] = st.Residual
		tr.Gains[i] = st.Gain
	}
	c.current = append(c.current, tr)
}

// Emit returns the accumulated traces and resets the collector.
// Returns nil if collection is disabled or Begin was not called.
func (c *Collector) Emit() []SeriesTrace {
	if !c.enabled || !c.began {
		return nil
	}
	out := c.current
	c.Reset()
	return out
}

// Reset clears any pending traces without emitting them.
func (c *Collector) Reset() {
	c.current = nil
	c.began = false
}

// ByVertex groups traces by vertex index, each entry ordered x, y, z.
func ByVertex(traces []SeriesTrace) map[int][]SeriesTrace {
	out := make(map[int][]SeriesTrace)
	for _, tr := range traces {
		out[tr.Vertex] = append(out[tr.Vertex], tr)
	}
	return out
}
