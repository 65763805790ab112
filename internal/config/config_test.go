package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := Default()
	if cfg.StatePath != def.StatePath {
		t.Errorf("Expected default state path, got %q", cfg.StatePath)
	}
	if cfg.Correction.MergeThreshold != def.Correction.MergeThreshold {
		t.Errorf("Expected default merge threshold, got %f", cfg.Correction.MergeThreshold)
	}
}

func TestLoadPartialFileBackfillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docmind.yaml")
	content := `
state_path: /tmp/custom
correction:
  recall_threshold: 0.7
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StatePath != "/tmp/custom" {
		t.Errorf("Expected overridden state path, got %q", cfg.StatePath)
	}
	if cfg.Correction.RecallThreshold != 0.7 {
		t.Errorf("Expected overridden recall threshold, got %f", cfg.Correction.RecallThreshold)
	}
	// Untouched fields come from defaults
	if cfg.Correction.MergeThreshold != 0.95 {
		t.Errorf("Expected default merge threshold, got %f", cfg.Correction.MergeThreshold)
	}
	if cfg.Ollama.URL == "" {
		t.Error("Expected default ollama URL")
	}
	if cfg.Graph.EdgeIncrement != 0.1 {
		t.Errorf("Expected default edge increment, got %f", cfg.Graph.EdgeIncrement)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{{not yaml"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}
