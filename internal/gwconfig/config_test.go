package gwconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PipelineID != "myndy-gateway" || cfg.Port != 8080 {
		t.Fatalf("expected baked-in defaults, got %+v", cfg)
	}
}

func TestLoadYAMLFileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_BACKEND_KEY", "secret-from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte("pipeline_id: custom\nbackend:\n  api_key: ${TEST_BACKEND_KEY}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PipelineID != "custom" {
		t.Fatalf("expected pipeline_id from file, got %q", cfg.PipelineID)
	}
	if cfg.Backend.APIKey != "secret-from-env" {
		t.Fatalf("expected env-expanded api key, got %q", cfg.Backend.APIKey)
	}
}

func TestEnvOverridesTakePriorityOverFile(t *testing.T) {
	t.Setenv("MYNDY_PIPELINE_ID", "env-wins")
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte("pipeline_id: file-value\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PipelineID != "env-wins" {
		t.Fatalf("expected env override to win, got %q", cfg.PipelineID)
	}
}
