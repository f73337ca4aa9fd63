/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

import "fmt"

//goland:noinspection GoCommentStart,GoUnusedConst
const (
	// Configuration constants
	ConfigEnvVar          = "FOREMAN_CONFIG"
	DefaultBaseDir        = "~/.foreman"
	DefaultConfigFileName = "config.json"
	DefaultToolsDir       = "tools"
	DefaultOutputDir      = "output"
	DefaultCacheFileName  = "registry-cache.json"
	DefaultPython         = "python3"

	// MCP Tool Names - Tool Catalog
	ToolToolList   = "tool_list"
	ToolToolGet    = "tool_get"
	ToolToolRescan = "tool_rescan"
	ToolCategories = "tool_categories"

	// MCP Tool Names - Jobs
	ToolToolRun          = "tool_run"
	ToolJobGet           = "job_get"
	ToolJobCancel        = "job_cancel"
	ToolJobList          = "job_list"
	ToolJobOutputConvert = "job_output_convert"

	// MCP Tool Names - System
	ToolStats  = "stats"
	ToolHealth = "health"

	// Job Status Constants
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"

	// Job Error Kind Constants
	ErrorKindSpawn   = "spawn"
	ErrorKindRuntime = "runtime"
	ErrorKindTimeout = "timeout"

	// Parameter Kind Constants
	ParamKindText       = "text"
	ParamKindInteger    = "integer"
	ParamKindFloat      = "float"
	ParamKindBoolean    = "boolean"
	ParamKindChoice     = "choice"
	ParamKindStructured = "structured"

	// Tool Category Constants
	CategoryGraph         = "graph"
	CategoryVisualization = "visualization"
	CategoryAnalysis      = "analysis"
	CategoryStatistics    = "statistics"
	CategoryExport        = "export"
	CategoryOther         = "other"

	// Complexity Tier Constants
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"

	// Runner Default Values
	DefaultMaxConcurrent   = 3
	DefaultQueueSize       = 64
	DefaultJobTimeout      = 600 // seconds
	MinJobTimeout          = 1   // seconds
	MaxJobTimeout          = 7200
	DefaultRetentionHours  = 24
	DefaultSweepInterval   = 600 // seconds
	DefaultStderrTailBytes = 2048

	// Rate limit defaults (process spawns per period)
	DefaultRateLimitRequests = 30
	DefaultRateLimitPeriod   = 60

	// Progress checkpoints for the heuristic reporter
	ProgressQueued      = 0
	ProgressStarted     = 5
	ProgressFirstOutput = 30
	ProgressExited      = 90
	ProgressDone        = 100

	// Log Levels
	LogLevelDebug = "DEBUG"
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARN"
	LogLevelError = "ERROR"
	LogLevelFatal = "FATAL"
)

// IsTerminalStatus reports whether a job status admits no further transitions.
func IsTerminalStatus(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// ValidJobStatus reports whether s is one of the defined job statuses.
func ValidJobStatus(s string) bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// ValidateJobTimeout validates and normalizes a job timeout value in seconds.
// Returns the validated timeout or an error if out of bounds.
// If timeout is 0, returns DefaultJobTimeout.
func ValidateJobTimeout(timeout int) (int, error) {
	if timeout == 0 {
		return DefaultJobTimeout, nil
	}
	if timeout < MinJobTimeout {
		return 0, fmt.Errorf("timeout must be at least %d second(s)", MinJobTimeout)
	}
	if timeout > MaxJobTimeout {
		return 0, fmt.Errorf("timeout must be at most %d seconds", MaxJobTimeout)
	}
	return timeout, nil
}
