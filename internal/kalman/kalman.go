// Package kalman implements the scalar Kalman filter used to smooth each
// coordinate series of a contour vertex across treatment fractions.
//
// The model is a one-dimensional random walk by default (A = 1, no control
// term, no process noise) observed directly (H = 1) with measurement
// variance R = 0.1. Every series gets a fresh filter seeded from its own
// first observation.
package kalman

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptySeries is returned when a series has no observations to seed
	// the initial estimate from.
	ErrEmptySeries = errors.New("kalman: series has no observations")

	// ErrDegenerateInnovation is returned when the innovation covariance
	// S = H*P'*H + R evaluates to zero and the gain is undefined.
	ErrDegenerateInnovation = errors.New("kalman: innovation covariance is zero")

	// ErrNonFiniteEstimate is returned when an update yields NaN or ±Inf.
	ErrNonFiniteEstimate = errors.New("kalman: estimate is not finite")
)

// Params holds the scalar model coefficients.
type Params struct {
	A  float64 // State transition
	B  float64 // Control gain
	U  float64 // Control input (uk)
	W  float64 // Process noise (wk)
	Q  float64 // Process noise covariance
	R  float64 // Measurement noise covariance
	H  float64 // Observation gain
	P0 float64 // Initial estimate covariance
}

// DefaultParams returns the fixed random-walk parameters.
func DefaultParams() Params {
	return Params{
		A:  1.0,
		B:  0,
		U:  0,
		W:  0,
		Q:  0,
		R:  0.1,
		H:  1.0,
		P0: 1.0,
	}
}

// Validate rejects parameter sets that are not finite.
func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"A": p.A, "B": p.B, "U": p.U, "W": p.W,
		"Q": p.Q, "R": p.R, "H": p.H, "P0": p.P0,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("kalman: parameter %s is not finite: %v", name, v)
		}
	}
	return nil
}

// Step captures the intermediate quantities of one predict/update cycle.
type Step struct {
	Index      int     // Position of the consumed observation in the series
	Observed   float64 // z_k
	Predicted  float64 // x' (a priori estimate)
	Residual   float64 // v = z_k - H*x'
	Innovation float64 // S
	Gain       float64 // K
	Estimate   float64 // x (a posteriori estimate)
	Covariance float64 // P (a posteriori covariance)
}

// Filter is a scalar Kalman filter. It is not safe for concurrent use.
type Filter struct {
	params Params
	x      float64 // current estimate
	p      float64 // current covariance
	steps  int
}

// NewFilter returns a filter seeded with the initial estimate x0 and the
// initial covariance from params.
func NewFilter(x0 float64, params Params) *Filter {
	return &Filter{
		params: params,
		x:      x0,
		p:      params.P0,
	}
}

// Step consumes one observation and returns the resulting update.
// The filter state is left untouched when an error is returned.
func (f *Filter) Step(z float64) (Step, error) {
	pr := f.params

	// Time update
	xPred := pr.A*f.x + pr.B*pr.U + pr.W
	zPred := pr.H * xPred
	pPred := pr.A*f.p*pr.A + pr.Q

	// Measurement update
	v := z - zPred
	s := pr.H*pPred*pr.H + pr.R
	if s == 0 {
		return Step{}, fmt.Errorf("step %d: %w", f.steps, ErrDegenerateInnovation)
	}
	k := pPred * pr.H / s
	x := xPred + k*v
	p := (1 - k*pr.H) * pPred

	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Step{}, fmt.Errorf("step %d: %w", f.steps, ErrNonFiniteEstimate)
	}

	st := Step{
		Index:      f.steps,
		Observed:   z,
		Predicted:  xPred,
		Residual:   v,
		Innovation: s,
		Gain:       k,
		Estimate:   x,
		Covariance: p,
	}
	f.x, f.p = x, p
	f.steps++
	return st, nil
}

// State returns the current estimate and covariance.
func (f *Filter) State() (x, p float64) {
	return f.x, f.p
}

// Steps returns the number of observations consumed so far.
func (f *Filter) Steps() int {
	return f.steps
}

// Run filters the whole series zk, seeding the estimate with zk[0], and
// returns one estimate per observation in time order. Every element of zk
// is consumed, including the first.
func Run(zk []float64, params Params) ([]float64, error) {
	steps, err := Trace(zk, params)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(steps))
	for i, st := range steps {
		out[i] = st.Estimate
	}
	return out, nil
}

// Trace is Run but returns the full per-step record.
func Trace(zk []float64, params Params) ([]Step, error) {
	if len(zk) == 0 {
		return nil, ErrEmptySeries
	}
	f := NewFilter(zk[0], params)
	steps := make([]Step, 0, len(zk))
	for _, z := range zk {
		st, err := f.Step(z)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// Last returns the final estimate of zk, the value used as the smoothed
// prediction for the series.
func Last(zk []float64, params Params) (float64, error) {
	out, err := Run(zk, params)
	if err != nil {
		return 0, err
	}
	return out[len(out)-1], nil
}
