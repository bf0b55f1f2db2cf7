// Command contour-predict predicts the next-fraction contour of a structure
// from the fractions recorded in a .roi planning file and writes the
// prediction into a new planning file.
//
// Usage:
//
//	contour-predict [flags] -plan patient.roi
//	contour-predict [-db runs.db] runs [run-id]
//	contour-predict [-db runs.db] migrate up|down|status|force <v>
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/contour.predict/internal/config"
	"github.com/banshee-data/contour.predict/internal/db"
	"github.com/banshee-data/contour.predict/internal/fsutil"
	"github.com/banshee-data/contour.predict/internal/model"
	"github.com/banshee-data/contour.predict/internal/pipeline"
	"github.com/banshee-data/contour.predict/internal/roi"
	"github.com/banshee-data/contour.predict/internal/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) || errors.Is(err, db.ErrUsage) {
			os.Exit(2)
		}
		log.Fatalf("contour-predict: %v", err)
	}
}

type cliFlags struct {
	plan        string
	template    string
	out         string
	structure   string
	exclude     string
	configPath  string
	debugOut    string
	dbPath      string
	plotDir     string
	chart       string
	maxVertices int
	runsLimit   int
	trace       bool
	quiet       bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, *flag.FlagSet, error) {
	var f cliFlags
	fs := flag.NewFlagSet("contour-predict", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.plan, "plan", "", "input planning file (.roi)")
	fs.StringVar(&f.template, "template", "", "planning file to splice the prediction into (default: -plan)")
	fs.StringVar(&f.out, "out", "", "predicted planning file (default "+pipeline.DefaultOutputPath+")")
	fs.StringVar(&f.structure, "structure", "", "structure name to extract (default CTV12)")
	fs.StringVar(&f.exclude, "exclude", "", "comma-separated markers that disqualify a structure line")
	fs.StringVar(&f.configPath, "config", "", "JSON config file (see config/predict.defaults.json)")
	fs.StringVar(&f.debugOut, "debug-out", "", "fraction dump path; \"-\" disables (default "+pipeline.DefaultDebugPath+")")
	fs.StringVar(&f.dbPath, "db", "", "sqlite run history; empty disables recording")
	fs.StringVar(&f.plotDir, "plot-dir", "", "write a PNG per vertex to this directory")
	fs.StringVar(&f.chart, "chart", "", "write an HTML chart of the filter traces")
	fs.IntVar(&f.maxVertices, "max-vertices", 12, "vertices to plot or chart; 0 for all")
	fs.IntVar(&f.runsLimit, "limit", 20, "rows shown by the runs subcommand")
	fs.BoolVar(&f.trace, "trace", false, "log one line per filtered series")
	fs.BoolVar(&f.quiet, "quiet", false, "suppress diagnostic logging")
	fs.BoolVar(&f.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return &f, fs, nil
}

func setLogWriters(f *cliFlags, stderr io.Writer) {
	diag := stderr
	if f.quiet {
		diag = nil
	}
	var trace io.Writer
	if f.trace {
		trace = stderr
	}
	roi.SetLogWriters(stderr, diag, trace)
	model.SetLogWriters(stderr, diag, trace)
	pipeline.SetLogWriters(stderr, diag, trace)
}

// buildOptions merges the config file (or built-in defaults) with the flags
// that were set explicitly.
func buildOptions(f *cliFlags, fs *flag.FlagSet) (pipeline.Options, error) {
	cfg := config.EmptyPredictConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadPredictConfig(f.configPath); err != nil {
			return pipeline.Options{}, err
		}
	}

	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	opts := pipeline.Options{
		PlanPath:       f.plan,
		TemplatePath:   f.template,
		OutputPath:     cfg.GetOutputPath(),
		DebugPath:      cfg.GetDebugOutput(),
		Structure:      cfg.GetStructure(),
		ExcludeMarkers: cfg.GetExcludeMarkers(),
		Params:         cfg.FilterParams(),
		PlotDir:        f.plotDir,
		ChartPath:      f.chart,
		MaxVertices:    f.maxVertices,
	}
	if set["out"] {
		opts.OutputPath = f.out
	}
	if set["structure"] {
		opts.Structure = f.structure
	}
	if set["exclude"] {
		opts.ExcludeMarkers = splitList(f.exclude)
	}
	if set["debug-out"] {
		opts.DebugPath = f.debugOut
	}
	if opts.DebugPath == "-" {
		opts.DebugPath = ""
	}
	if opts.PlanPath == "" {
		return opts, errors.New("-plan is required")
	}
	return opts, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func run(args []string, stdout, stderr io.Writer) error {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if f.showVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	setLogWriters(f, stderr)

	switch fs.Arg(0) {
	case "migrate":
		if f.dbPath == "" {
			return errors.New("migrate requires -db")
		}
		return db.RunMigrateCommand(fs.Args()[1:], f.dbPath, stdout)
	case "runs":
		if f.dbPath == "" {
			return errors.New("runs requires -db")
		}
		return db.RunRunsCommand(fs.Args()[1:], f.dbPath, f.runsLimit, stdout)
	case "":
	default:
		return fmt.Errorf("unknown command %q", fs.Arg(0))
	}

	opts, err := buildOptions(f, fs)
	if err != nil {
		return err
	}

	if f.dbPath != "" {
		database, err := db.NewDB(f.dbPath)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer database.Close()
		opts.Recorder = db.NewRunStore(database, nil)
	}

	res, err := pipeline.New(fsutil.OSFileSystem{}, nil).Run(opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %d fractions, %d vertices -> %s\n",
		opts.Structure, len(res.Fractions), len(res.Predicted.Points), opts.OutputPath)
	fmt.Fprintf(stdout, "%s\n", res.Summary)
	if res.RunID != "" {
		fmt.Fprintf(stdout, "run %s\n", res.RunID)
	}
	return nil
}
