// Package pipeline runs one prediction end to end: parse the plan, dump the
// fractions, filter every vertex, splice the prediction into the template,
// and optionally record, plot and chart the run.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/contour.predict/internal/db"
	"github.com/banshee-data/contour.predict/internal/debug"
	"github.com/banshee-data/contour.predict/internal/fsutil"
	"github.com/banshee-data/contour.predict/internal/kalman"
	"github.com/banshee-data/contour.predict/internal/model"
	"github.com/banshee-data/contour.predict/internal/report"
	"github.com/banshee-data/contour.predict/internal/roi"
	"github.com/banshee-data/contour.predict/internal/timeutil"
	"github.com/banshee-data/contour.predict/internal/version"
)

// Defaults for unset Options paths.
const (
	DefaultOutputPath = "newartplan.roi"
	DefaultDebugPath  = "output.txt"
)

// RunRecorder persists a finished run. *db.RunStore satisfies it.
type RunRecorder interface {
	InsertRun(r db.NewRun) (string, error)
}

// Options configures a Run.
type Options struct {
	PlanPath       string // Input planning file (required)
	TemplatePath   string // Splice template; defaults to PlanPath
	OutputPath     string // Predicted plan; defaults to DefaultOutputPath
	DebugPath      string // Fraction dump; empty disables it
	Structure      string // Structure name (required)
	ExcludeMarkers []string
	Params         kalman.Params

	PlotDir     string // PNG per vertex when set
	ChartPath   string // HTML chart when set
	MaxVertices int    // Cap on plotted/charted vertices; 0 plots all

	Recorder RunRecorder // Optional run history
}

// Result describes a successful run.
type Result struct {
	Fractions []model.Fraction
	Predicted *model.Fraction
	Summary   model.Summary
	RunID     string // Empty without a Recorder
	Plots     int
	Elapsed   float64 // Seconds
}

// Pipeline runs predictions against a filesystem.
type Pipeline struct {
	fsys  fsutil.FileSystem
	clock timeutil.Clock
}

// New returns a pipeline on fsys. A nil clock uses the wall clock.
func New(fsys fsutil.FileSystem, clock timeutil.Clock) *Pipeline {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Pipeline{fsys: fsys, clock: clock}
}

func (o *Options) normalize() error {
	if o.PlanPath == "" {
		return errors.New("pipeline: plan path is required")
	}
	if o.Structure == "" {
		return errors.New("pipeline: structure is required")
	}
	if o.TemplatePath == "" {
		o.TemplatePath = o.PlanPath
	}
	if o.OutputPath == "" {
		o.OutputPath = DefaultOutputPath
	}
	if o.ExcludeMarkers == nil {
		o.ExcludeMarkers = roi.DefaultExcludeMarkers
	}
	if o.Params == (kalman.Params{}) {
		o.Params = kalman.DefaultParams()
	}
	if err := o.Params.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if filepath.Clean(o.OutputPath) == filepath.Clean(o.PlanPath) {
		return fmt.Errorf("pipeline: output %q would overwrite the input plan", o.OutputPath)
	}
	return nil
}

// Run executes one prediction. The predicted plan is written only when
// every earlier stage succeeds.
func (p *Pipeline) Run(opts Options) (*Result, error) {
	start := p.clock.Now()
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	plan, err := p.fsys.ReadFile(opts.PlanPath)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	tracef("read %d bytes from %s", len(plan), opts.PlanPath)

	fractions, err := roi.Parse(bytes.NewReader(plan), roi.Options{
		Structure:      opts.Structure,
		ExcludeMarkers: opts.ExcludeMarkers,
	})
	if err != nil {
		opsf("parse %s: %v", opts.PlanPath, err)
		return nil, err
	}
	diagf("parsed %d %s fractions from %s", len(fractions), opts.Structure, opts.PlanPath)

	collector := debug.NewCollector()
	collector.SetEnabled(opts.PlotDir != "" || opts.ChartPath != "")

	var pred *model.Fraction
	err = debug.With(p.fsys, opts.DebugPath, func(sink *debug.Sink) error {
		if sink != nil {
			if err := sink.WriteFractions(fractions); err != nil {
				return fmt.Errorf("debug dump: %w", err)
			}
		}

		m := model.New(fractions...)
		collector.Begin()
		var perr error
		pred, perr = m.Predict(opts.Params, collector)
		if perr != nil {
			return perr
		}

		if sink != nil {
			if err := sink.WriteFraction(pred); err != nil {
				return fmt.Errorf("debug dump: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		opsf("prediction aborted: %v", err)
		return nil, err
	}

	if err := p.splice(opts, pred); err != nil {
		opsf("splice: %v", err)
		return nil, err
	}
	diagf("wrote %d predicted vertices to %s", len(pred.Points), opts.OutputPath)

	res := &Result{Fractions: fractions, Predicted: pred}
	res.Summary, err = model.Summarize(&fractions[len(fractions)-1], pred)
	if err != nil {
		return nil, err
	}
	diagf("summary: %s", res.Summary)

	if opts.Recorder != nil {
		res.RunID, err = opts.Recorder.InsertRun(db.NewRun{
			Structure:     opts.Structure,
			PlanPath:      opts.PlanPath,
			OutputPath:    opts.OutputPath,
			FractionCount: len(fractions),
			Params:        opts.Params,
			Version:       version.Version,
			Predicted:     pred,
			Summary:       &res.Summary,
		})
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		diagf("recorded run %s", res.RunID)
	}

	traces := collector.Emit()
	if opts.PlotDir != "" {
		res.Plots, err = report.PlotVertexSeries(p.fsys, opts.PlotDir, traces, opts.MaxVertices)
		if err != nil {
			return nil, fmt.Errorf("plots: %w", err)
		}
		diagf("wrote %d plots to %s", res.Plots, opts.PlotDir)
	}
	if opts.ChartPath != "" {
		if err := p.chart(opts, traces, &res.Summary); err != nil {
			return nil, err
		}
		diagf("wrote chart to %s", opts.ChartPath)
	}

	res.Elapsed = p.clock.Since(start).Seconds()
	tracef("run finished in %.3fs", res.Elapsed)
	return res, nil
}

func (p *Pipeline) splice(opts Options, pred *model.Fraction) error {
	template, err := p.fsys.ReadFile(opts.TemplatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	var out bytes.Buffer
	if err := roi.Splice(bytes.NewReader(template), &out, pred); err != nil {
		return err
	}
	if err := p.fsys.WriteFileAtomic(opts.OutputPath, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.OutputPath, err)
	}
	return nil
}

func (p *Pipeline) chart(opts Options, traces []debug.SeriesTrace, s *model.Summary) error {
	var buf bytes.Buffer
	title := fmt.Sprintf("%s prediction", opts.Structure)
	if err := report.RenderChart(&buf, title, traces, s, opts.MaxVertices); err != nil {
		return err
	}
	if err := p.fsys.WriteFileAtomic(opts.ChartPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
