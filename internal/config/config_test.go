package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CheapModel != "gpt-4o-mini" || cfg.ExpensiveModel != "gpt-4o" {
		t.Errorf("unexpected model defaults: %q / %q", cfg.CheapModel, cfg.ExpensiveModel)
	}
	if cfg.MaxBatches != 3 || cfg.ConsolidationBudget != 3000 {
		t.Errorf("unexpected batching defaults: %d / %d", cfg.MaxBatches, cfg.ConsolidationBudget)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %g, want 0.7", cfg.Temperature)
	}
	if cfg.DBPath == "" || cfg.ReportDir == "" {
		t.Error("path defaults must be set")
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "openai_api_key: file-key\ncheap_model: gpt-4.1-mini\nmax_batches: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("MARKETPULSE_MAX_BATCHES", "4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAIAPIKey != "env-key" {
		t.Errorf("OpenAIAPIKey = %q, env must win over file", cfg.OpenAIAPIKey)
	}
	if cfg.CheapModel != "gpt-4.1-mini" {
		t.Errorf("CheapModel = %q, want file value", cfg.CheapModel)
	}
	if cfg.MaxBatches != 4 {
		t.Errorf("MaxBatches = %d, want env value 4", cfg.MaxBatches)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MARKETPULSE_MAX_BATCHES", "not-a-number")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for non-numeric override")
	}

	t.Setenv("MARKETPULSE_MAX_BATCHES", "-1")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for negative max_batches")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("cheap_model: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
