// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/momentum/services/llm"
	"github.com/AleutianAI/momentum/services/orchestrator/middleware"
	"github.com/AleutianAI/momentum/services/orchestrator/observability"
	"github.com/AleutianAI/momentum/services/orchestrator/planner"
	"github.com/AleutianAI/momentum/services/orchestrator/screening"
	"github.com/AleutianAI/momentum/services/orchestrator/store"
	"github.com/AleutianAI/momentum/services/orchestrator/synthesis"
)

// DefaultPort is the HTTP port used when none is configured.
const DefaultPort = 8000

// DefaultEnvFile is loaded by LoadConfig when present.
const DefaultEnvFile = ".env"

// Config is the complete service configuration.
//
// # Description
//
// Zero values are filled in by applyConfigDefaults. LoadConfig builds a
// Config from a .env file, an optional YAML file and the environment, in
// that order of increasing precedence.
//
// # Examples
//
//	port: 8000
//	store:
//	  driver: sqlite
//	  path: ./data/momentum.db
//	llm:
//	  backend: ollama
//	  model: llama3.1
//	synthesis:
//	  timeout: 90s
//	rate_limit:
//	  requests_per_minute: 30
//	  burst: 5
type Config struct {
	// Port is the HTTP server port. Default: 8000
	Port int `yaml:"port"`

	// GinMode is debug, release or test. Empty keeps gin's own default.
	GinMode string `yaml:"gin_mode"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Store     store.Config                `yaml:"store"`
	LLM       llm.Config                  `yaml:"llm"`
	Synthesis synthesis.Config            `yaml:"synthesis"`
	Planner   planner.Config              `yaml:"planner"`
	Screening ScreeningConfig             `yaml:"screening"`
	RateLimit middleware.RateLimitConfig  `yaml:"rate_limit"`
	Tracing   observability.TracingConfig `yaml:"tracing"`
	Log       LogConfig                   `yaml:"log"`
}

// ScreeningConfig controls goal screening before synthesis.
type ScreeningConfig struct {
	// Enabled turns screening on. Default: false
	Enabled bool `yaml:"enabled"`

	// MinConfidence is low, medium or high. Default: medium
	MinConfidence screening.ConfidenceLevel `yaml:"min_confidence"`

	// RulesPath replaces the built-in rules with a YAML file.
	RulesPath string `yaml:"rules_path"`
}

// IsEnabled reports whether screening runs. Supplying a rules file
// enables it.
func (c ScreeningConfig) IsEnabled() bool {
	return c.Enabled || c.RulesPath != ""
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`

	// Dir enables JSON file logging into this directory.
	Dir string `yaml:"dir"`

	// JSON switches console output to JSON.
	JSON bool `yaml:"json"`
}

// LoadConfig builds the service configuration.
//
// # Description
//
// Loads DefaultEnvFile into the environment if it exists (existing variables
// win), then decodes the YAML file at path when path is non-empty, then
// applies environment overrides and defaults.
//
// # Inputs
//
//   - path: YAML config file. Empty skips the file.
//
// # Outputs
//
//   - Config: Configuration with defaults applied.
//   - error: Non-nil if a file is unreadable, the YAML is invalid or an
//     override has the wrong type.
func LoadConfig(path string) (Config, error) {
	if err := loadEnvFile(DefaultEnvFile); err != nil {
		return Config{}, err
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if cfg, err = parseConfig(data); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return applyConfigDefaults(cfg), nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	slog.Debug("Loaded environment file", "path", path)
	return nil
}

// parseConfig decodes YAML, rejecting unknown keys so typos surface.
func parseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides copies recognised environment variables into cfg.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MOMENTUM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MOMENTUM_PORT: %q is not a port number", v)
		}
		cfg.Port = port
	}
	setString(&cfg.Store.Driver, "MOMENTUM_STORE_DRIVER")
	setString(&cfg.Store.Path, "MOMENTUM_STORE_PATH")
	setString(&cfg.LLM.Backend, "LLM_BACKEND_TYPE")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Log.Level, "MOMENTUM_LOG_LEVEL")

	backend := strings.ToLower(strings.TrimSpace(cfg.LLM.Backend))
	switch backend {
	case "", llm.BackendGemini:
		cfg.LLM.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	case llm.BackendOpenAI:
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case llm.BackendAnthropic:
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case llm.BackendOllama:
		if cfg.LLM.BaseURL == "" {
			setString(&cfg.LLM.BaseURL, "OLLAMA_BASE_URL")
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = store.DriverSQLite
	}
	if cfg.Screening.MinConfidence == "" {
		cfg.Screening.MinConfidence = screening.Medium
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "momentum"
	}
	return cfg
}
