// Package config loads worker configuration from a YAML file with
// environment-variable overrides. Every tunable has a default; only the
// OpenAI key is required.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	OpenAIAPIKey string `yaml:"openai_api_key"`

	CheapModel     string `yaml:"cheap_model"`
	ExpensiveModel string `yaml:"expensive_model"`

	MaxBatches          int     `yaml:"max_batches"`
	ConsolidationBudget int     `yaml:"consolidation_budget"`
	BatchCallCeiling    int     `yaml:"batch_call_ceiling"`
	SynthesisCeiling    int     `yaml:"synthesis_ceiling"`
	Temperature         float64 `yaml:"temperature"`

	DBPath       string `yaml:"db_path"`
	ReportDir    string `yaml:"report_dir"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ChromePath   string `yaml:"chrome_path"`
}

// Load reads path (when it exists), applies env overrides, then defaults.
// A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	var cfg Config
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.CheapModel, "MARKETPULSE_CHEAP_MODEL")
	envOverride(&cfg.ExpensiveModel, "MARKETPULSE_EXPENSIVE_MODEL")
	if err := envOverrideInt(&cfg.MaxBatches, "MARKETPULSE_MAX_BATCHES"); err != nil {
		return Config{}, err
	}
	if err := envOverrideInt(&cfg.ConsolidationBudget, "MARKETPULSE_CONSOLIDATION_BUDGET"); err != nil {
		return Config{}, err
	}
	if err := envOverrideInt(&cfg.BatchCallCeiling, "MARKETPULSE_BATCH_CALL_CEILING"); err != nil {
		return Config{}, err
	}
	if err := envOverrideInt(&cfg.SynthesisCeiling, "MARKETPULSE_SYNTHESIS_CEILING"); err != nil {
		return Config{}, err
	}
	if err := envOverrideFloat(&cfg.Temperature, "MARKETPULSE_TEMPERATURE"); err != nil {
		return Config{}, err
	}
	envOverride(&cfg.DBPath, "MARKETPULSE_DB_PATH")
	envOverride(&cfg.ReportDir, "MARKETPULSE_REPORT_DIR")
	envOverride(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	envOverride(&cfg.ChromePath, "MARKETPULSE_CHROME_PATH")

	cfg.applyDefaults()

	if cfg.MaxBatches < 1 {
		return Config{}, fmt.Errorf("max_batches must be >= 1, got %d", cfg.MaxBatches)
	}
	if cfg.ConsolidationBudget < 1 {
		return Config{}, fmt.Errorf("consolidation_budget must be >= 1, got %d", cfg.ConsolidationBudget)
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return Config{}, fmt.Errorf("temperature must be within [0, 2], got %g", cfg.Temperature)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CheapModel == "" {
		c.CheapModel = "gpt-4o-mini"
	}
	if c.ExpensiveModel == "" {
		c.ExpensiveModel = "gpt-4o"
	}
	if c.MaxBatches == 0 {
		c.MaxBatches = 3
	}
	if c.ConsolidationBudget == 0 {
		c.ConsolidationBudget = 3000
	}
	if c.BatchCallCeiling == 0 {
		c.BatchCallCeiling = 3500
	}
	if c.SynthesisCeiling == 0 {
		c.SynthesisCeiling = 3000
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.DBPath == "" {
		c.DBPath = "./marketpulse.db"
	}
	if c.ReportDir == "" {
		c.ReportDir = "./reports"
	}
}

func envOverride(field *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*field = v
	}
}

func envOverrideInt(field *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*field = parsed
	return nil
}

func envOverrideFloat(field *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*field = parsed
	return nil
}
