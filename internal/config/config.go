// Package config provides centralized configuration for the harness.
// It merges a small JSON settings file with environment variables, validates
// required fields, and provides sensible defaults. The resulting Config is
// built once at process start and passed to components; nothing re-reads it
// mid-run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kuitang/e2ekit/internal/errs"
)

// ExecutionMode selects parallel or single-worker test execution.
type ExecutionMode string

// BrowserMode selects headless or headed browser launch.
type BrowserMode string

// Environment names the target deployment under test.
type Environment string

const (
	ExecutionParallel   ExecutionMode = "parallel"
	ExecutionSequential ExecutionMode = "sequential"

	BrowserHeadless BrowserMode = "headless"
	BrowserHeaded   BrowserMode = "headed"

	EnvLocal      Environment = "local"
	EnvDev        Environment = "dev"
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
)

// Default file names under the state directory.
const (
	OutcomeFileName  = "outcome.json"
	SnapshotFileName = "storage-state.json"
	ScreenshotDir    = "screenshots"
)

// Settings is the JSON settings file shape. Absent keys fall back to
// defaults; unknown keys are rejected to catch typos early.
type Settings struct {
	ExecutionMode ExecutionMode `json:"executionMode,omitempty"`
	BrowserMode   BrowserMode   `json:"browserMode,omitempty"`
	Environment   Environment   `json:"environment,omitempty"`
}

// Config holds all harness configuration.
type Config struct {
	Settings

	// Target and credentials, from environment variables.
	BaseURL         string
	LoginEmail      string
	LoginPassword   string
	InvalidEmail    string
	InvalidPassword string
	APIToken        string

	// StateDir holds the outcome file, the session snapshot, and
	// failure screenshots.
	StateDir string
}

// ValidationError aggregates configuration problems.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// DefaultSettings returns the documented fallback settings.
func DefaultSettings() Settings {
	return Settings{
		ExecutionMode: ExecutionParallel,
		BrowserMode:   BrowserHeadless,
		Environment:   EnvStaging,
	}
}

// LoadSettingsFile reads the JSON settings file at path and merges it over
// the defaults. A missing file yields pure defaults; a present but malformed
// file is an error, never a silent fallback.
func LoadSettingsFile(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, errs.Wrap(errs.IO, "open settings file", err)
	}
	defer f.Close()

	var fromFile Settings
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fromFile); err != nil {
		return settings, errs.Wrap(errs.Config, fmt.Sprintf("parse settings file %s", path), err)
	}

	if fromFile.ExecutionMode != "" {
		settings.ExecutionMode = fromFile.ExecutionMode
	}
	if fromFile.BrowserMode != "" {
		settings.BrowserMode = fromFile.BrowserMode
	}
	if fromFile.Environment != "" {
		settings.Environment = fromFile.Environment
	}
	return settings, nil
}

// Load builds the harness configuration from the settings file named by
// E2E_SETTINGS_FILE (default "e2e.settings.json") and environment variables,
// then validates it.
func Load() (Config, error) {
	settingsPath := os.Getenv("E2E_SETTINGS_FILE")
	if settingsPath == "" {
		settingsPath = "e2e.settings.json"
	}

	settings, err := LoadSettingsFile(settingsPath)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Settings:        settings,
		BaseURL:         strings.TrimRight(os.Getenv("E2E_BASE_URL"), "/"),
		LoginEmail:      os.Getenv("E2E_LOGIN_EMAIL"),
		LoginPassword:   os.Getenv("E2E_LOGIN_PASSWORD"),
		InvalidEmail:    os.Getenv("E2E_INVALID_EMAIL"),
		InvalidPassword: os.Getenv("E2E_INVALID_PASSWORD"),
		APIToken:        os.Getenv("E2E_API_TOKEN"),
		StateDir:        os.Getenv("E2E_STATE_DIR"),
	}
	if cfg.StateDir == "" {
		cfg.StateDir = ".e2e-state"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and enum values, collecting all problems.
func (c Config) Validate() error {
	var problems []string

	if c.BaseURL == "" {
		problems = append(problems, "E2E_BASE_URL is required")
	}
	if c.LoginEmail == "" {
		problems = append(problems, "E2E_LOGIN_EMAIL is required")
	}
	if c.LoginPassword == "" {
		problems = append(problems, "E2E_LOGIN_PASSWORD is required")
	}

	switch c.ExecutionMode {
	case ExecutionParallel, ExecutionSequential:
	default:
		problems = append(problems, fmt.Sprintf("executionMode %q is not one of parallel, sequential", c.ExecutionMode))
	}
	switch c.BrowserMode {
	case BrowserHeadless, BrowserHeaded:
	default:
		problems = append(problems, fmt.Sprintf("browserMode %q is not one of headless, headed", c.BrowserMode))
	}
	switch c.Environment {
	case EnvLocal, EnvDev, EnvStaging, EnvProduction:
	default:
		problems = append(problems, fmt.Sprintf("environment %q is not one of local, dev, staging, production", c.Environment))
	}

	if len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}

// OutcomePath is the shared outcome file location.
func (c Config) OutcomePath() string {
	return filepath.Join(c.StateDir, OutcomeFileName)
}

// SnapshotPath is the session snapshot location.
func (c Config) SnapshotPath() string {
	return filepath.Join(c.StateDir, SnapshotFileName)
}

// ScreenshotPath is the directory failure screenshots are written to.
func (c Config) ScreenshotPath() string {
	return filepath.Join(c.StateDir, ScreenshotDir)
}

// Headless reports whether the browser should launch headless.
func (c Config) Headless() bool {
	return c.BrowserMode != BrowserHeaded
}
