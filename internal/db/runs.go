package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/contour.predict/internal/kalman"
	"github.com/banshee-data/contour.predict/internal/model"
	"github.com/banshee-data/contour.predict/internal/timeutil"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("prediction run not found")

// Run is one stored prediction.
type Run struct {
	RunID            string
	Structure        string
	PlanPath         string
	OutputPath       string
	FractionCount    int
	VertexCount      int
	Params           kalman.Params
	Version          string
	CreatedAt        time.Time
	MeanDisplacement sql.NullFloat64
	MaxDisplacement  sql.NullFloat64
}

// NewRun is the input to InsertRun.
type NewRun struct {
	Structure     string
	PlanPath      string
	OutputPath    string
	FractionCount int
	Params        kalman.Params
	Version       string
	Predicted     *model.Fraction
	Summary       *model.Summary // optional
}

// paramsJSON is the stored form of kalman.Params, keyed like the config file.
type paramsJSON struct {
	A  float64 `json:"state_transition"`
	B  float64 `json:"control_gain"`
	U  float64 `json:"control_input"`
	W  float64 `json:"process_noise"`
	Q  float64 `json:"process_noise_cov"`
	R  float64 `json:"measurement_noise_cov"`
	H  float64 `json:"observation_gain"`
	P0 float64 `json:"initial_covariance"`
}

// RunStore records prediction runs and their predicted points.
type RunStore struct {
	db    *DB
	clock timeutil.Clock
}

// NewRunStore returns a store on database. A nil clock uses the wall clock.
func NewRunStore(database *DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: database, clock: clock}
}

// InsertRun stores r and its predicted points in one transaction and
// returns the new run id.
func (s *RunStore) InsertRun(r NewRun) (string, error) {
	if r.Predicted == nil {
		return "", errors.New("insert run: no predicted fraction")
	}
	p := r.Params
	params, err := json.Marshal(paramsJSON{A: p.A, B: p.B, U: p.U, W: p.W, Q: p.Q, R: p.R, H: p.H, P0: p.P0})
	if err != nil {
		return "", fmt.Errorf("insert run: encode params: %w", err)
	}

	var meanDisp, maxDisp sql.NullFloat64
	if r.Summary != nil {
		meanDisp = sql.NullFloat64{Float64: r.Summary.MeanDisplacement, Valid: true}
		maxDisp = sql.NullFloat64{Float64: r.Summary.MaxDisplacement, Valid: true}
	}

	id := uuid.New().String()
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("insert run: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.Exec(`INSERT INTO prediction_runs (
			run_id, structure, plan_path, output_path, fraction_count,
			vertex_count, params_json, version, created_at,
			mean_displacement, max_displacement
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Structure, r.PlanPath, r.OutputPath, r.FractionCount,
		len(r.Predicted.Points), string(params), r.Version, s.clock.Now().UTC(),
		meanDisp, maxDisp,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO predicted_points (run_id, vertex_index, x, y, z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("insert run: prepare points: %w", err)
	}
	defer stmt.Close()
	for i, pt := range r.Predicted.Points {
		if _, err := stmt.Exec(id, i, pt.X, pt.Y, pt.Z); err != nil {
			return "", fmt.Errorf("insert run: point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("insert run: commit: %w", err)
	}
	return id, nil
}

const runColumns = `run_id, structure, plan_path, output_path, fraction_count,
	vertex_count, params_json, version, created_at, mean_displacement, max_displacement`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r      Run
		params string
	)
	if err := row.Scan(&r.RunID, &r.Structure, &r.PlanPath, &r.OutputPath, &r.FractionCount,
		&r.VertexCount, &params, &r.Version, &r.CreatedAt, &r.MeanDisplacement, &r.MaxDisplacement); err != nil {
		return Run{}, err
	}
	var pj paramsJSON
	if err := json.Unmarshal([]byte(params), &pj); err != nil {
		return Run{}, fmt.Errorf("run %s: decode params: %w", r.RunID, err)
	}
	r.Params = kalman.Params{A: pj.A, B: pj.B, U: pj.U, W: pj.W, Q: pj.Q, R: pj.R, H: pj.H, P0: pj.P0}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *RunStore) ListRuns(limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM prediction_runs ORDER BY created_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns the run with id.
func (s *RunStore) GetRun(id string) (Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM prediction_runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// PointsForRun returns the predicted fraction stored for id, in vertex order.
func (s *RunStore) PointsForRun(id string) (*model.Fraction, error) {
	rows, err := s.db.Query(`SELECT x, y, z FROM predicted_points WHERE run_id = ? ORDER BY vertex_index`, id)
	if err != nil {
		return nil, fmt.Errorf("points for run: %w", err)
	}
	defer rows.Close()

	f := model.NewFraction(model.PredictedName)
	for rows.Next() {
		var p model.Point
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, fmt.Errorf("points for run: %w", err)
		}
		f.Points = append(f.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(f.Points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	f.VertexCount = len(f.Points)
	return &f, nil
}
