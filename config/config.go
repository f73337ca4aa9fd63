/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PivotLLM/Foreman/global"
)

// Config provides access to application configuration
type Config struct {
	configPath string      // resolved path to config file
	data       *configData // parsed configuration
	firstRun   bool        // true if config was just created
	baseDir    string      // resolved base directory
	toolsDir   string      // resolved tools directory
	outputDir  string      // resolved output root directory
	cacheFile  string      // resolved registry cache file path
}

// configData holds the parsed configuration (internal)
type configData struct {
	Version   int     `json:"version"`
	BaseDir   string  `json:"base_dir,omitempty"`
	ToolsDir  string  `json:"tools_dir,omitempty"`
	OutputDir string  `json:"output_dir,omitempty"`
	CacheFile string  `json:"cache_file,omitempty"`
	Python    string  `json:"python,omitempty"`
	Runner    Runner  `json:"runner,omitempty"`
	Logging   Logging `json:"logging"`
}

// Logging represents logging configuration
type Logging struct {
	File  string `json:"file"`
	Level string `json:"level"`
}

// Runner represents job runner configuration
type Runner struct {
	MaxConcurrent     int       `json:"max_concurrent,omitempty"`      // simultaneously running jobs (default: 3)
	QueueSize         int       `json:"queue_size,omitempty"`          // pending queue capacity (default: 64)
	JobTimeoutSeconds int       `json:"job_timeout_seconds,omitempty"` // per-job wall clock limit (default: 600)
	RetentionHours    int       `json:"retention_hours,omitempty"`     // terminal job retention (default: 24)
	SweepSeconds      int       `json:"sweep_seconds,omitempty"`       // retention sweep interval (default: 600)
	RateLimit         RateLimit `json:"rate_limit,omitempty"`
}

// RateLimit represents spawn rate limiting configuration
type RateLimit struct {
	MaxRequests   int `json:"max_requests,omitempty"`
	PeriodSeconds int `json:"period_seconds,omitempty"`
}

// Option is a functional option for configuring Config
type Option func(*Config)

// New creates a new Config instance with optional configuration
func New(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithConfigPath sets an explicit config file path
func WithConfigPath(path string) Option {
	return func(c *Config) {
		c.configPath = path
	}
}

// Load loads and validates configuration from file.
// If the base directory or config file doesn't exist, it creates them with defaults.
func (c *Config) Load() error {
	configPath, err := c.resolveConfigPath()
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	c.configPath = configPath

	baseDir := global.ExpandTilde(global.DefaultBaseDir)
	if !global.DirExists(baseDir) {
		if err := os.MkdirAll(baseDir, 0755); err != nil {
			return fmt.Errorf("failed to create base directory %s: %w", baseDir, err)
		}
	}

	// Create default config if it doesn't exist
	if !global.FileExists(configPath) {
		c.firstRun = true
		if err := c.writeDefaultConfig(configPath); err != nil {
			return fmt.Errorf("failed to create default config at %s: %w", configPath, err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// First pass: detect unknown fields using strict parsing
	var cfg configData
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		if strings.Contains(err.Error(), "unknown field") {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: config file %s: %v\n", configPath, err)
			// Re-parse without strict mode to still load the config
			if err := json.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		} else {
			return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	c.data = &cfg

	if err := c.normalizePaths(); err != nil {
		return fmt.Errorf("failed to normalize paths: %w", err)
	}

	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// resolveConfigPath determines the config file location: explicit option,
// then the FOREMAN_CONFIG environment variable, then the default base dir.
func (c *Config) resolveConfigPath() (string, error) {
	if c.configPath != "" {
		return global.ExpandTilde(c.configPath), nil
	}
	if envPath := os.Getenv(global.ConfigEnvVar); envPath != "" {
		return global.ExpandTilde(envPath), nil
	}
	return filepath.Join(global.ExpandTilde(global.DefaultBaseDir), global.DefaultConfigFileName), nil
}

// writeDefaultConfig creates a default config file
func (c *Config) writeDefaultConfig(configPath string) error {
	defaults := configData{
		Version:   1,
		ToolsDir:  global.DefaultToolsDir,
		OutputDir: global.DefaultOutputDir,
		Python:    global.DefaultPython,
		Runner: Runner{
			MaxConcurrent:     global.DefaultMaxConcurrent,
			JobTimeoutSeconds: global.DefaultJobTimeout,
			RetentionHours:    global.DefaultRetentionHours,
		},
		Logging: Logging{
			File:  filepath.Join(global.DefaultBaseDir, "foreman.log"),
			Level: global.LogLevelInfo,
		},
	}

	content, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	return global.AtomicWrite(configPath, append(content, '\n'))
}

// normalizePaths resolves all configured paths (relative paths resolve
// against base_dir) and creates the directories that must exist.
func (c *Config) normalizePaths() error {
	baseDir := c.data.BaseDir
	if baseDir == "" {
		baseDir = global.DefaultBaseDir
	}
	baseDir = global.ExpandTilde(baseDir)
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base_dir: %w", err)
	}
	c.baseDir = absBase

	resolve := func(path, fallback string) string {
		if path == "" {
			path = fallback
		}
		path = global.ExpandTilde(path)
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.baseDir, path)
		}
		return path
	}

	c.toolsDir = resolve(c.data.ToolsDir, global.DefaultToolsDir)
	c.outputDir = resolve(c.data.OutputDir, global.DefaultOutputDir)
	c.cacheFile = resolve(c.data.CacheFile, global.DefaultCacheFileName)

	for _, dir := range []string{c.baseDir, c.toolsDir, c.outputDir} {
		if err := global.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// validate checks configuration values for consistency
func (c *Config) validate() error {
	r := c.data.Runner
	if r.MaxConcurrent < 0 {
		return fmt.Errorf("runner.max_concurrent must not be negative")
	}
	if r.QueueSize < 0 {
		return fmt.Errorf("runner.queue_size must not be negative")
	}
	if r.JobTimeoutSeconds != 0 {
		if _, err := global.ValidateJobTimeout(r.JobTimeoutSeconds); err != nil {
			return fmt.Errorf("runner.job_timeout_seconds: %w", err)
		}
	}
	if r.RetentionHours < 0 {
		return fmt.Errorf("runner.retention_hours must not be negative")
	}

	if c.data.Logging.Level != "" {
		switch strings.ToUpper(c.data.Logging.Level) {
		case global.LogLevelDebug, global.LogLevelInfo, global.LogLevelWarn, global.LogLevelError, global.LogLevelFatal:
		default:
			return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, FATAL")
		}
	}

	return nil
}

// ConfigPath returns the resolved config file path
func (c *Config) ConfigPath() string {
	return c.configPath
}

// IsFirstRun returns true if the config file was created during Load
func (c *Config) IsFirstRun() bool {
	return c.firstRun
}

// BaseDir returns the resolved base directory
func (c *Config) BaseDir() string {
	return c.baseDir
}

// ToolsDir returns the resolved tools directory
func (c *Config) ToolsDir() string {
	return c.toolsDir
}

// OutputDir returns the resolved output root directory
func (c *Config) OutputDir() string {
	return c.outputDir
}

// CacheFile returns the resolved registry cache file path
func (c *Config) CacheFile() string {
	return c.cacheFile
}

// Python returns the configured Python interpreter
func (c *Config) Python() string {
	if c.data == nil || c.data.Python == "" {
		return global.DefaultPython
	}
	return c.data.Python
}

// LogFile returns the configured log file path
func (c *Config) LogFile() string {
	if c.data == nil {
		return ""
	}
	return c.data.Logging.File
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() string {
	if c.data == nil || c.data.Logging.Level == "" {
		return global.LogLevelInfo
	}
	return strings.ToUpper(c.data.Logging.Level)
}

// Runner returns runner configuration with defaults applied
func (c *Config) Runner() Runner {
	var r Runner
	if c.data != nil {
		r = c.data.Runner
	}
	if r.MaxConcurrent == 0 {
		r.MaxConcurrent = global.DefaultMaxConcurrent
	}
	if r.QueueSize == 0 {
		r.QueueSize = global.DefaultQueueSize
	}
	if r.JobTimeoutSeconds == 0 {
		r.JobTimeoutSeconds = global.DefaultJobTimeout
	}
	if r.RetentionHours == 0 {
		r.RetentionHours = global.DefaultRetentionHours
	}
	if r.SweepSeconds == 0 {
		r.SweepSeconds = global.DefaultSweepInterval
	}
	if r.RateLimit.MaxRequests == 0 {
		r.RateLimit.MaxRequests = global.DefaultRateLimitRequests
	}
	if r.RateLimit.PeriodSeconds == 0 {
		r.RateLimit.PeriodSeconds = global.DefaultRateLimitPeriod
	}
	return r
}
