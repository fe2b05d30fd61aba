// Package config loads the gateway configuration from an optional YAML file
// with RYOKAI_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

const (
	StorageMemory    = "memory"
	StorageSQLite    = "sqlite"
	StorageFirestore = "firestore"
)

type Config struct {
	Mode Mode   `yaml:"mode"`
	Port string `yaml:"port"`

	GCPProjectID string `yaml:"gcp_project"`

	StorageBackend string `yaml:"storage_backend"` // "memory", "sqlite" or "firestore"
	SQLitePath     string `yaml:"sqlite_path"`
	UseMockLLM     bool   `yaml:"use_mock_llm"`

	// APIKey seeds the stored credential on first start.
	APIKey   string `yaml:"api_key"`
	LogLevel string `yaml:"log_level"`

	Models  ModelConfig   `yaml:"models"`
	Retry   RetryConfig   `yaml:"retry"`
	Pacing  PacingConfig  `yaml:"pacing"`
	Persona PersonaConfig `yaml:"persona"`
}

type ModelConfig struct {
	Gateway  string `yaml:"gateway"`
	Step     string `yaml:"step"`
	FastStep string `yaml:"fast_step"`
	Image    string `yaml:"image"`
	Video    string `yaml:"video"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

type PacingConfig struct {
	StepPause         time.Duration `yaml:"step_pause"`
	FastPause         time.Duration `yaml:"fast_pause"`
	ChainLead         time.Duration `yaml:"chain_lead"`
	VideoPollInterval time.Duration `yaml:"video_poll_interval"`
	VideoMaxPolls     int           `yaml:"video_max_polls"`
	// RunTimeout bounds a whole submission, including hung backend calls.
	RunTimeout        time.Duration `yaml:"run_timeout"`
}

type PersonaConfig struct {
	// SummaryCap bounds the persona summary in runes. 0 keeps it unbounded.
	SummaryCap int `yaml:"summary_cap"`
}

// Load reads path (if non-empty), applies env overrides and defaults and validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "RYOKAI_PORT")
	setString(&c.GCPProjectID, "RYOKAI_GCP_PROJECT")
	setString(&c.StorageBackend, "RYOKAI_STORAGE_BACKEND")
	setString(&c.SQLitePath, "RYOKAI_SQLITE_PATH")
	setString(&c.APIKey, "RYOKAI_API_KEY")
	setString(&c.LogLevel, "RYOKAI_LOG_LEVEL")
	setString(&c.Models.Gateway, "RYOKAI_MODEL_GATEWAY")
	setString(&c.Models.Step, "RYOKAI_MODEL_STEP")

	if v := os.Getenv("RYOKAI_MODE"); v != "" {
		c.Mode = Mode(strings.ToLower(v))
	}
	if v := os.Getenv("RYOKAI_USE_MOCK_LLM"); v != "" {
		c.UseMockLLM = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RYOKAI_PERSONA_SUMMARY_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RYOKAI_PERSONA_SUMMARY_CAP: %w", err)
		}
		c.Persona.SummaryCap = n
	}
	if v := os.Getenv("RYOKAI_STEP_PAUSE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: RYOKAI_STEP_PAUSE: %w", err)
		}
		c.Pacing.StepPause = d
	}
	if v := os.Getenv("RYOKAI_RUN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: RYOKAI_RUN_TIMEOUT: %w", err)
		}
		c.Pacing.RunTimeout = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// applyDefaults fills in unset values.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeLocal
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.StorageBackend == "" {
		c.StorageBackend = StorageMemory
	}
	if c.StorageBackend == StorageSQLite && c.SQLitePath == "" {
		c.SQLitePath = "ryokai.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Models.Gateway == "" {
		c.Models.Gateway = "gemini-2.0-flash-exp"
	}
	if c.Models.Step == "" {
		c.Models.Step = "gemini-1.5-pro"
	}
	if c.Models.FastStep == "" {
		c.Models.FastStep = "gemini-1.5-flash"
	}
	if c.Models.Image == "" {
		c.Models.Image = "gemini-2.0-flash-exp"
	}
	if c.Models.Video == "" {
		c.Models.Video = "veo-2.0-generate-001"
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 2
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = time.Second
	}

	if c.Pacing.StepPause == 0 {
		c.Pacing.StepPause = 1500 * time.Millisecond
	}
	if c.Pacing.FastPause == 0 {
		c.Pacing.FastPause = 50 * time.Millisecond
	}
	if c.Pacing.ChainLead == 0 {
		c.Pacing.ChainLead = time.Second
	}
	if c.Pacing.VideoPollInterval == 0 {
		c.Pacing.VideoPollInterval = 10 * time.Second
	}
	if c.Pacing.VideoMaxPolls == 0 {
		c.Pacing.VideoMaxPolls = 60
	}
	if c.Pacing.RunTimeout == 0 {
		c.Pacing.RunTimeout = 15 * time.Minute
	}
}

func (c *Config) validate() error {
	var errs []string
	switch c.Mode {
	case ModeLocal, ModeGCP:
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q", c.Mode))
	}
	switch c.StorageBackend {
	case StorageMemory, StorageSQLite:
	case StorageFirestore:
		if c.GCPProjectID == "" {
			errs = append(errs, "gcp_project is required for firestore storage")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown storage_backend %q", c.StorageBackend))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be at least 1")
	}
	if c.Pacing.FastPause > c.Pacing.StepPause {
		errs = append(errs, "pacing.fast_pause must not exceed pacing.step_pause")
	}
	if c.Pacing.RunTimeout < 0 {
		errs = append(errs, "pacing.run_timeout must not be negative")
	}
	if c.Persona.SummaryCap < 0 {
		errs = append(errs, "persona.summary_cap must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
