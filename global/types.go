/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

import "time"

// ToolParameter describes one declared command-line input of a tool.
// Parameters are built once during a registry scan and never mutated.
type ToolParameter struct {
	Name        string      `json:"name"`
	Flag        string      `json:"flag,omitempty"` // literal option flag, empty for positional arguments
	Kind        string      `json:"kind"`           // text, integer, float, boolean, choice, structured
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Description string      `json:"description,omitempty"`
	Choices     []string    `json:"choices,omitempty"` // only for kind=choice
}

// ToolMetadata describes one discovered tool. The registry owns these
// records; jobs reference tools by name only, so a rescan never invalidates
// a job that is already in flight.
type ToolMetadata struct {
	Name             string          `json:"name"` // stable identifier derived from the file name
	DisplayName      string          `json:"display_name"`
	Description      string          `json:"description,omitempty"`
	Path             string          `json:"path"` // absolute path to the script
	Category         string          `json:"category"`
	Parameters       []ToolParameter `json:"parameters"`
	OutputPatterns   []string        `json:"output_patterns,omitempty"` // glob patterns for produced files
	OutputFormats    []string        `json:"output_formats,omitempty"`  // e.g. html, json, csv
	Complexity       string          `json:"complexity"`                // low, medium, high
	EstimatedSeconds int             `json:"estimated_seconds"`
	SourceLines      int             `json:"source_lines"`
	SchemaJSON       string          `json:"schema_json"` // JSON Schema for parameter validation
	ScanWarnings     []string        `json:"scan_warnings,omitempty"`
}

// Job is one tracked invocation of a tool. All mutation goes through the
// job store, which enforces the status state machine and progress
// monotonicity, so readers always observe a consistent forward-moving record.
type Job struct {
	ID          string                 `json:"id"`
	ToolName    string                 `json:"tool_name"`
	Status      string                 `json:"status"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Stdout      string                 `json:"stdout,omitempty"`
	Stderr      string                 `json:"stderr,omitempty"`
	ExitCode    *int                   `json:"exit_code,omitempty"`
	Progress    int                    `json:"progress"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	OutputDir   string                 `json:"output_dir,omitempty"`
	OutputFiles []string               `json:"output_files,omitempty"`
	Error       string                 `json:"error,omitempty"`
	ErrorKind   string                 `json:"error_kind,omitempty"` // spawn, runtime, timeout
}

// Duration returns the wall-clock duration of the job, or zero if it has
// not yet started. For running jobs it is the time since start.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(*j.StartedAt)
	}
	return time.Since(*j.StartedAt)
}

// JobEvent is emitted on every job mutation. Terminal is true exactly once
// per job, on the transition into a terminal status.
type JobEvent struct {
	JobID       string   `json:"job_id"`
	ToolName    string   `json:"tool_name"`
	Status      string   `json:"status"`
	Progress    int      `json:"progress"`
	Message     string   `json:"message,omitempty"`
	Terminal    bool     `json:"terminal"`
	OutputFiles []string `json:"output_files,omitempty"`
	DurationSec float64  `json:"duration_seconds,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// JobFilter selects jobs for listing. Zero values match everything.
type JobFilter struct {
	Status   string `json:"status,omitempty"`
	ToolName string `json:"tool_name,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// RunToolResponse is returned by tool_run. The job executes asynchronously;
// the caller polls job_get or subscribes to events for progress.
type RunToolResponse struct {
	JobID    string `json:"job_id"`
	ToolName string `json:"tool_name"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// ToolListResponse is returned by tool_list.
type ToolListResponse struct {
	Total      int                     `json:"total"`
	Categories map[string]int          `json:"categories"`
	Tools      map[string]ToolMetadata `json:"tools"`
}

// StatsResponse is returned by stats.
type StatsResponse struct {
	TotalTools   int            `json:"total_tools"`
	TotalJobs    int            `json:"total_jobs"`
	JobsByStatus map[string]int `json:"jobs_by_status"`
}
