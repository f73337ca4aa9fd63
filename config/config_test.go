/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/PivotLLM/Foreman/global"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    *configData
		wantError bool
	}{
		{
			name: "valid config",
			config: &configData{
				Version:  1,
				ToolsDir: "tools",
				Runner: Runner{
					MaxConcurrent:     3,
					JobTimeoutSeconds: 600,
				},
			},
			wantError: false,
		},
		{
			name: "negative max_concurrent",
			config: &configData{
				Version: 1,
				Runner:  Runner{MaxConcurrent: -1},
			},
			wantError: true,
		},
		{
			name: "negative queue_size",
			config: &configData{
				Version: 1,
				Runner:  Runner{QueueSize: -1},
			},
			wantError: true,
		},
		{
			name: "timeout above maximum",
			config: &configData{
				Version: 1,
				Runner:  Runner{JobTimeoutSeconds: global.MaxJobTimeout + 1},
			},
			wantError: true,
		},
		{
			name: "negative retention",
			config: &configData{
				Version: 1,
				Runner:  Runner{RetentionHours: -1},
			},
			wantError: true,
		},
		{
			name: "bad log level",
			config: &configData{
				Version: 1,
				Logging: Logging{Level: "CHATTY"},
			},
			wantError: true,
		},
		{
			name: "lowercase log level is accepted",
			config: &configData{
				Version: 1,
				Logging: Logging{Level: "debug"},
			},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{data: tt.config}
			err := c.validate()
			if tt.wantError && err == nil {
				t.Error("validate() expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("validate() unexpected error: %v", err)
			}
		})
	}
}

func TestLoadFirstRun(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c := New()
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !c.IsFirstRun() {
		t.Error("expected first run to be detected")
	}
	if !global.FileExists(c.ConfigPath()) {
		t.Error("default config file was not created")
	}
	if !global.DirExists(c.ToolsDir()) {
		t.Errorf("tools directory was not created: %s", c.ToolsDir())
	}
	if !global.DirExists(c.OutputDir()) {
		t.Errorf("output directory was not created: %s", c.OutputDir())
	}

	// Second load of the same config is not a first run
	c2 := New(WithConfigPath(c.ConfigPath()))
	if err := c2.Load(); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if c2.IsFirstRun() {
		t.Error("second load should not be a first run")
	}
}

func TestLoadExplicitConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	base := t.TempDir()
	configPath := filepath.Join(base, "config.json")
	content := `{
  "version": 1,
  "base_dir": "` + base + `",
  "python": "/usr/bin/python3.12",
  "runner": {
    "max_concurrent": 5,
    "job_timeout_seconds": 120,
    "rate_limit": {"max_requests": 10, "period_seconds": 30}
  },
  "logging": {"file": "", "level": "debug"}
}`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(WithConfigPath(configPath))
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Python() != "/usr/bin/python3.12" {
		t.Errorf("Python() = %s", c.Python())
	}
	if c.LogLevel() != global.LogLevelDebug {
		t.Errorf("LogLevel() = %s", c.LogLevel())
	}

	r := c.Runner()
	if r.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", r.MaxConcurrent)
	}
	if r.JobTimeoutSeconds != 120 {
		t.Errorf("JobTimeoutSeconds = %d, want 120", r.JobTimeoutSeconds)
	}
	if r.RateLimit.MaxRequests != 10 || r.RateLimit.PeriodSeconds != 30 {
		t.Errorf("RateLimit = %+v", r.RateLimit)
	}

	// Unset fields pick up defaults
	if r.QueueSize != global.DefaultQueueSize {
		t.Errorf("QueueSize = %d, want default %d", r.QueueSize, global.DefaultQueueSize)
	}
	if r.RetentionHours != global.DefaultRetentionHours {
		t.Errorf("RetentionHours = %d, want default %d", r.RetentionHours, global.DefaultRetentionHours)
	}

	// Relative dirs resolve against base_dir
	if c.ToolsDir() != filepath.Join(base, global.DefaultToolsDir) {
		t.Errorf("ToolsDir() = %s", c.ToolsDir())
	}
}

func TestLoadUnknownFieldWarns(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	base := t.TempDir()
	configPath := filepath.Join(base, "config.json")
	content := `{"version": 1, "base_dir": "` + base + `", "no_such_field": true, "logging": {"file": "", "level": "INFO"}}`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// Unknown fields warn but do not fail the load
	c := New(WithConfigPath(configPath))
	if err := c.Load(); err != nil {
		t.Fatalf("Load() with unknown field should succeed, got %v", err)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(WithConfigPath(configPath))
	if err := c.Load(); err == nil {
		t.Error("Load() should fail on malformed JSON")
	}
}

func TestEnvConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	base := t.TempDir()
	configPath := filepath.Join(base, "env-config.json")
	content := `{"version": 1, "base_dir": "` + base + `", "logging": {"file": "", "level": "INFO"}}`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(global.ConfigEnvVar, configPath)

	c := New()
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.ConfigPath() != configPath {
		t.Errorf("ConfigPath() = %s, want %s", c.ConfigPath(), configPath)
	}
}
