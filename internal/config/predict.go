package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/contour.predict/internal/kalman"
)

// DefaultConfigPath is the path to the canonical prediction defaults file.
const DefaultConfigPath = "config/predict.defaults.json"

// PredictConfig is the root configuration for a prediction run. Every field
// is optional; the Get* methods supply the built-in default when a field is
// absent.
type PredictConfig struct {
	// Extraction
	Structure      *string  `json:"structure,omitempty"`
	ExcludeMarkers []string `json:"exclude_markers,omitempty"`

	// Outputs
	OutputPath  *string `json:"output_path,omitempty"`
	DebugOutput *string `json:"debug_output,omitempty"`

	// Filter coefficients
	StateTransition     *float64 `json:"state_transition,omitempty"`
	ControlGain         *float64 `json:"control_gain,omitempty"`
	ControlInput        *float64 `json:"control_input,omitempty"`
	ProcessNoise        *float64 `json:"process_noise,omitempty"`
	ProcessNoiseCov     *float64 `json:"process_noise_cov,omitempty"`
	MeasurementNoiseCov *float64 `json:"measurement_noise_cov,omitempty"`
	ObservationGain     *float64 `json:"observation_gain,omitempty"`
	InitialCovariance   *float64 `json:"initial_covariance,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyPredictConfig returns a PredictConfig with all fields unset.
func EmptyPredictConfig() *PredictConfig {
	return &PredictConfig{}
}

// DefaultPredictConfig returns a config with every field populated from the
// built-in defaults.
func DefaultPredictConfig() *PredictConfig {
	p := kalman.DefaultParams()
	return &PredictConfig{
		Structure:           ptrString("CTV12"),
		ExcludeMarkers:      []string{"org", "//", "SC", "IC"},
		OutputPath:          ptrString("newartplan.roi"),
		DebugOutput:         ptrString("output.txt"),
		StateTransition:     ptrFloat64(p.A),
		ControlGain:         ptrFloat64(p.B),
		ControlInput:        ptrFloat64(p.U),
		ProcessNoise:        ptrFloat64(p.W),
		ProcessNoiseCov:     ptrFloat64(p.Q),
		MeasurementNoiseCov: ptrFloat64(p.R),
		ObservationGain:     ptrFloat64(p.H),
		InitialCovariance:   ptrFloat64(p.P0),
	}
}

// LoadPredictConfig loads a PredictConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to defaults through the Get* methods.
func LoadPredictConfig(path string) (*PredictConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPredictConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *PredictConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/contour-predict/...
	}
	for _, path := range candidates {
		if cfg, err := LoadPredictConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *PredictConfig) Validate() error {
	if c.Structure != nil && strings.TrimSpace(*c.Structure) == "" {
		return fmt.Errorf("structure must not be empty")
	}
	for i, m := range c.ExcludeMarkers {
		if m == "" {
			return fmt.Errorf("exclude_markers[%d] must not be empty", i)
		}
	}

	floats := []struct {
		name string
		v    *float64
	}{
		{"state_transition", c.StateTransition},
		{"control_gain", c.ControlGain},
		{"control_input", c.ControlInput},
		{"process_noise", c.ProcessNoise},
		{"process_noise_cov", c.ProcessNoiseCov},
		{"measurement_noise_cov", c.MeasurementNoiseCov},
		{"observation_gain", c.ObservationGain},
		{"initial_covariance", c.InitialCovariance},
	}
	for _, f := range floats {
		if f.v != nil && (math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			return fmt.Errorf("%s must be finite, got %v", f.name, *f.v)
		}
	}

	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"process_noise_cov", c.ProcessNoiseCov},
		{"measurement_noise_cov", c.MeasurementNoiseCov},
		{"initial_covariance", c.InitialCovariance},
	} {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", f.name, *f.v)
		}
	}

	return nil
}

// GetStructure returns the structure name or the default.
func (c *PredictConfig) GetStructure() string {
	if c.Structure == nil {
		return "CTV12"
	}
	return *c.Structure
}

// GetExcludeMarkers returns the exclude markers or the default set.
func (c *PredictConfig) GetExcludeMarkers() []string {
	if c.ExcludeMarkers == nil {
		return []string{"org", "//", "SC", "IC"}
	}
	return append([]string(nil), c.ExcludeMarkers...)
}

// GetOutputPath returns the predicted plan path or the default.
func (c *PredictConfig) GetOutputPath() string {
	if c.OutputPath == nil {
		return "newartplan.roi"
	}
	return *c.OutputPath
}

// GetDebugOutput returns the debug dump path or the default. An explicit
// empty string disables the dump.
func (c *PredictConfig) GetDebugOutput() string {
	if c.DebugOutput == nil {
		return "output.txt"
	}
	return *c.DebugOutput
}

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// FilterParams assembles the filter coefficients, defaulting any that are
// unset.
func (c *PredictConfig) FilterParams() kalman.Params {
	d := kalman.DefaultParams()
	return kalman.Params{
		A:  getFloat(c.StateTransition, d.A),
		B:  getFloat(c.ControlGain, d.B),
		U:  getFloat(c.ControlInput, d.U),
		W:  getFloat(c.ProcessNoise, d.W),
		Q:  getFloat(c.ProcessNoiseCov, d.Q),
		R:  getFloat(c.MeasurementNoiseCov, d.R),
		H:  getFloat(c.ObservationGain, d.H),
		P0: getFloat(c.InitialCovariance, d.P0),
	}
}
