// Package config resolves run settings from defaults, IDEAFORGE_* environment
// variables and an optional YAML file, in that order.
package config

// #region imports
import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region types

// Provider names the text-generation backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGRPC   Provider = "grpc"
	ProviderMock   Provider = "mock"
)

// Config is every setting a run needs.
type Config struct {
	Provider          Provider      `yaml:"provider"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	GRPCAddr          string        `yaml:"grpc_addr"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	PitchCount        int           `yaml:"pitch_count"`
	MinPitches        int           `yaml:"min_pitches"`
	Threshold         float64       `yaml:"threshold"`
	MaxRevisions      int           `yaml:"max_revisions"`
	MaxRetries        int           `yaml:"max_retries"`
	Concurrency       int           `yaml:"concurrency"`
	RunTimeout        time.Duration `yaml:"run_timeout"`
	OutputDir         string        `yaml:"output_dir"`
	DBPath            string        `yaml:"db_path"`
	LogLevel          string        `yaml:"log_level"`
	LogFile           string        `yaml:"log_file"`
	RenderHTML        bool          `yaml:"render_html"`
}

// #endregion

// #region defaults

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Provider:          ProviderOpenAI,
		Model:             "openai/gpt-4o-mini",
		BaseURL:           "https://openrouter.ai/api/v1",
		APIKeyEnv:         "OPENROUTER_API_KEY",
		GRPCAddr:          "localhost:50051",
		Temperature:       0.8,
		MaxTokens:         2048,
		RequestsPerMinute: 0,
		PitchCount:        3,
		MinPitches:        2,
		Threshold:         6.0,
		MaxRevisions:      2,
		MaxRetries:        2,
		Concurrency:       4,
		RunTimeout:        5 * time.Minute,
		OutputDir:         "ideas",
		DBPath:            "ideaforge.db",
		LogLevel:          "info",
		LogFile:           "logs/ideaforge.log",
	}
}

// #endregion

// #region env

// FromEnv returns Default with IDEAFORGE_* overrides applied.
func FromEnv() (Config, error) {
	cfg := Default()
	return cfg, cfg.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	var provider string
	str("IDEAFORGE_PROVIDER", &provider)
	if provider != "" {
		c.Provider = Provider(strings.ToLower(provider))
	}
	str("IDEAFORGE_MODEL", &c.Model)
	str("IDEAFORGE_BASE_URL", &c.BaseURL)
	str("IDEAFORGE_API_KEY_ENV", &c.APIKeyEnv)
	str("IDEAFORGE_GRPC_ADDR", &c.GRPCAddr)
	float("IDEAFORGE_TEMPERATURE", &c.Temperature)
	integer("IDEAFORGE_MAX_TOKENS", &c.MaxTokens)
	integer("IDEAFORGE_REQUESTS_PER_MINUTE", &c.RequestsPerMinute)
	integer("IDEAFORGE_PITCH_COUNT", &c.PitchCount)
	integer("IDEAFORGE_MIN_PITCHES", &c.MinPitches)
	float("IDEAFORGE_THRESHOLD", &c.Threshold)
	integer("IDEAFORGE_MAX_REVISIONS", &c.MaxRevisions)
	integer("IDEAFORGE_MAX_RETRIES", &c.MaxRetries)
	integer("IDEAFORGE_CONCURRENCY", &c.Concurrency)
	if v := getenv("IDEAFORGE_RUN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IDEAFORGE_RUN_TIMEOUT: %w", err))
		} else {
			c.RunTimeout = d
		}
	}
	str("IDEAFORGE_OUTPUT_DIR", &c.OutputDir)
	str("IDEAFORGE_DB", &c.DBPath)
	str("IDEAFORGE_LOG_LEVEL", &c.LogLevel)
	str("IDEAFORGE_LOG_FILE", &c.LogFile)
	if v := getenv("IDEAFORGE_RENDER_HTML"); v != "" {
		c.RenderHTML = v == "true" || v == "1"
	}
	return errors.Join(errs...)
}

// #endregion

// #region file

// Load resolves defaults, then the environment, then the YAML file at path.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// #endregion

// #region validate

// APIKey reads the key from the environment variable named by APIKeyEnv.
func (c Config) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Validate rejects settings no run could honour.
func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderOpenAI:
		if c.Model == "" {
			errs = append(errs, errors.New("model is required for the openai provider"))
		}
	case ProviderGRPC:
		if c.GRPCAddr == "" {
			errs = append(errs, errors.New("grpc_addr is required for the grpc provider"))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.PitchCount < 1 {
		errs = append(errs, fmt.Errorf("pitch_count must be at least 1, got %d", c.PitchCount))
	}
	if c.MinPitches < 1 || c.MinPitches > c.PitchCount {
		errs = append(errs, fmt.Errorf("min_pitches must be between 1 and pitch_count (%d), got %d", c.PitchCount, c.MinPitches))
	}
	if c.Threshold < 0 || c.Threshold > 10 {
		errs = append(errs, fmt.Errorf("threshold must be within 0-10, got %g", c.Threshold))
	}
	if c.MaxRevisions < 0 {
		errs = append(errs, fmt.Errorf("max_revisions must not be negative, got %d", c.MaxRevisions))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.RunTimeout < 0 {
		errs = append(errs, fmt.Errorf("run_timeout must not be negative, got %s", c.RunTimeout))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("requests_per_minute must not be negative, got %d", c.RequestsPerMinute))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within 0-2, got %g", c.Temperature))
	}
	return errors.Join(errs...)
}

// #endregion
