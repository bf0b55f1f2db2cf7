package db

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"strconv"
	"text/tabwriter"
)

// ErrUsage is returned by the subcommands when arguments are missing or
// unknown. The help text has already been printed.
var ErrUsage = errors.New("usage error")

// RunMigrateCommand handles the 'migrate' subcommand.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return ErrUsage
	}

	migFS, err := MigrationsFS()
	if err != nil {
		return err
	}

	// Open without migrating: the subcommand owns the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		return handleMigrateUp(database, migFS, out)
	case "down":
		return handleMigrateDown(database, migFS, out)
	case "status":
		return handleMigrateStatus(database, migFS, out)
	case "force":
		if len(args) < 2 {
			fmt.Fprintln(out, "Usage: contour-predict migrate force <version_number>")
			return ErrUsage
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.MigrateForce(migFS, v); err != nil {
			return err
		}
		fmt.Fprintf(out, "Forced version to %d\n", v)
		return nil
	case "help":
		PrintMigrateHelp(out)
		return nil
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return ErrUsage
	}
}

func handleMigrateUp(database *DB, migFS fs.FS, out io.Writer) error {
	log.Printf("Running migrations...")
	if err := database.MigrateUp(migFS); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func handleMigrateDown(database *DB, migFS fs.FS, out io.Writer) error {
	log.Printf("Rolling back one migration...")
	if err := database.MigrateDown(migFS); err != nil {
		return err
	}
	version, dirty, err := database.MigrateVersion(migFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func handleMigrateStatus(database *DB, migFS fs.FS, out io.Writer) error {
	version, dirty, err := database.MigrateVersion(migFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := LatestMigrationVersion(migFS)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", version)
	fmt.Fprintf(out, "Latest version: %d\n", latest)
	fmt.Fprintf(out, "Dirty: %v\n", dirty)
	switch {
	case dirty:
		fmt.Fprintln(out, "Database is dirty; inspect it, then run 'migrate force <version>'.")
	case version < latest:
		fmt.Fprintf(out, "%d migration(s) pending; run 'migrate up'.\n", latest-version)
	default:
		fmt.Fprintln(out, "Schema is up to date.")
	}
	return nil
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: contour-predict [-db path] migrate <action>

Actions:
  up               Apply all pending migrations
  down             Roll back the most recent migration
  status           Show current and latest schema versions
  force <version>  Set the recorded version without migrating (recovery only)
  help             Show this help
`)
}

// RunRunsCommand handles the 'runs' subcommand: with no arguments it lists
// recent runs; with a run id it prints that run's predicted points.
func RunRunsCommand(args []string, dbPath string, limit int, out io.Writer) error {
	database, err := NewDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	store := NewRunStore(database, nil)

	if len(args) > 0 {
		run, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		pred, err := store.PointsForRun(run.RunID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s %s fractions=%d vertices=%d\n",
			run.RunID, run.Structure, run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			run.FractionCount, run.VertexCount)
		fmt.Fprint(out, pred.String())
		return nil
	}

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTRUCTURE\tFRACTIONS\tVERTICES\tMEAN DISP\tCREATED\tPLAN")
	for _, r := range runs {
		mean := "-"
		if r.MeanDisplacement.Valid {
			mean = strconv.FormatFloat(r.MeanDisplacement.Float64, 'f', 4, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			r.RunID, r.Structure, r.FractionCount, r.VertexCount, mean,
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.PlanPath)
	}
	return tw.Flush()
}
