package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/banshee-data/contour.predict/internal/kalman"
)

func TestDefaultPredictConfig(t *testing.T) {
	cfg := DefaultPredictConfig()

	if cfg.Structure == nil || *cfg.Structure != "CTV12" {
		t.Errorf("Expected Structure CTV12, got %v", cfg.Structure)
	}
	if cfg.MeasurementNoiseCov == nil || *cfg.MeasurementNoiseCov != 0.1 {
		t.Errorf("Expected MeasurementNoiseCov 0.1, got %v", cfg.MeasurementNoiseCov)
	}
	if got := cfg.FilterParams(); got != kalman.DefaultParams() {
		t.Errorf("FilterParams() = %+v, want %+v", got, kalman.DefaultParams())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyPredictConfig()

	if got := cfg.GetStructure(); got != "CTV12" {
		t.Errorf("GetStructure() = %q, want CTV12", got)
	}
	if got := cfg.GetExcludeMarkers(); !reflect.DeepEqual(got, []string{"org", "//", "SC", "IC"}) {
		t.Errorf("GetExcludeMarkers() = %v", got)
	}
	if got := cfg.GetOutputPath(); got != "newartplan.roi" {
		t.Errorf("GetOutputPath() = %q", got)
	}
	if got := cfg.GetDebugOutput(); got != "output.txt" {
		t.Errorf("GetDebugOutput() = %q", got)
	}
	if got := cfg.FilterParams(); got != kalman.DefaultParams() {
		t.Errorf("FilterParams() = %+v, want defaults", got)
	}
}

func TestGetDebugOutputExplicitEmpty(t *testing.T) {
	cfg := &PredictConfig{DebugOutput: ptrString("")}
	if got := cfg.GetDebugOutput(); got != "" {
		t.Errorf("GetDebugOutput() = %q, want empty", got)
	}
}

func TestGetExcludeMarkersReturnsCopy(t *testing.T) {
	cfg := &PredictConfig{ExcludeMarkers: []string{"org"}}
	got := cfg.GetExcludeMarkers()
	got[0] = "changed"
	if cfg.ExcludeMarkers[0] != "org" {
		t.Errorf("GetExcludeMarkers() aliases the config slice")
	}
}

func TestLoadPredictConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "predict.json")

	testJSON := `{
  "structure": "GTV1",
  "exclude_markers": ["org"],
  "measurement_noise_cov": 0.5,
  "process_noise_cov": 0.01,
  "initial_covariance": 2
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadPredictConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetStructure() != "GTV1" {
		t.Errorf("GetStructure() = %q, want GTV1", cfg.GetStructure())
	}
	if !reflect.DeepEqual(cfg.GetExcludeMarkers(), []string{"org"}) {
		t.Errorf("GetExcludeMarkers() = %v", cfg.GetExcludeMarkers())
	}

	want := kalman.DefaultParams()
	want.R = 0.5
	want.Q = 0.01
	want.P0 = 2
	if got := cfg.FilterParams(); got != want {
		t.Errorf("FilterParams() = %+v, want %+v", got, want)
	}
}

func TestLoadPredictConfigMissing(t *testing.T) {
	if _, err := LoadPredictConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadPredictConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"structure": `},
		{"empty structure", `{"structure": "  "}`},
		{"negative R", `{"measurement_noise_cov": -0.1}`},
		{"negative P0", `{"initial_covariance": -1}`},
		{"empty marker", `{"exclude_markers": ["org", ""]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.json")
			if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadPredictConfig(path); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestLoadPredictConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadPredictConfig("config.yaml")
	if err == nil || !strings.Contains(err.Error(), ".json") {
		t.Errorf("Expected extension error, got %v", err)
	}
}

func TestLoadPredictConfigRejectsLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.json")
	data := make([]byte, 1024*1024+1)
	for i := range data {
		data[i] = ' '
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadPredictConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected size error, got %v", err)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if got := cfg.FilterParams(); got != kalman.DefaultParams() {
		t.Errorf("defaults file FilterParams() = %+v, want %+v", got, kalman.DefaultParams())
	}
	if !reflect.DeepEqual(cfg.GetExcludeMarkers(), DefaultPredictConfig().GetExcludeMarkers()) {
		t.Errorf("defaults file exclude markers = %v", cfg.GetExcludeMarkers())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadPredictConfig("../../config/predict.example.json")
	if err != nil {
		t.Fatalf("Failed to load example config: %v", err)
	}
	if cfg.GetStructure() != "GTV1" {
		t.Errorf("GetStructure() = %q, want GTV1", cfg.GetStructure())
	}
	if cfg.GetOutputPath() != "newartplan.roi" {
		t.Errorf("GetOutputPath() = %q, want default", cfg.GetOutputPath())
	}
}
