/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError is returned when a tool name or job id does not exist.
// Never retried automatically.
type NotFoundError struct {
	Kind string // "tool" or "job"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// NewToolNotFound creates a NotFoundError for an unknown tool name.
func NewToolNotFound(name string) *NotFoundError {
	return &NotFoundError{Kind: "tool", Name: name}
}

// NewJobNotFound creates a NotFoundError for an unknown job id.
func NewJobNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "job", Name: id}
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) (*NotFoundError, bool) {
	var nfe *NotFoundError
	if errors.As(err, &nfe) {
		return nfe, true
	}
	return nil, false
}

// ValidationError is returned when supplied parameters fail validation
// against a tool's declared schema. It is raised before any process is
// spawned. Details enumerates every failing parameter.
type ValidationError struct {
	ToolName string
	Details  []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 1 {
		return fmt.Sprintf("invalid parameters for %s: %s", e.ToolName, e.Details[0])
	}
	return fmt.Sprintf("invalid parameters for %s: %d errors: %s",
		e.ToolName, len(e.Details), strings.Join(e.Details, "; "))
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// SpawnError indicates the OS failed to create the subprocess (missing
// interpreter, permission denied, missing file). The job is recorded as
// failed with this error; it is never retried automatically.
type SpawnError struct {
	Cause error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn process: %v", e.Cause)
}

func (e *SpawnError) Unwrap() error {
	return e.Cause
}

// IsSpawnError checks if an error is a SpawnError.
func IsSpawnError(err error) (*SpawnError, bool) {
	var se *SpawnError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// QueueFullError is returned by tool_run when the pending queue has no
// capacity left. The caller should retry later; no job record is created.
type QueueFullError struct {
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("job queue is full (capacity %d)", e.Capacity)
}

// IsQueueFull checks if an error is a QueueFullError.
func IsQueueFull(err error) (*QueueFullError, bool) {
	var qfe *QueueFullError
	if errors.As(err, &qfe) {
		return qfe, true
	}
	return nil, false
}
