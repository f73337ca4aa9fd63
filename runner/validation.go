/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/PivotLLM/Foreman/global"
)

// validateParams checks supplied parameter values against the tool's
// compiled schema. Returns a ValidationError enumerating every failing
// parameter, or nil. This runs before any job record or process exists.
func validateParams(meta global.ToolMetadata, params map[string]interface{}) error {
	if params == nil {
		params = map[string]interface{}{}
	}

	data, err := json.Marshal(params)
	if err != nil {
		return &global.ValidationError{
			ToolName: meta.Name,
			Details:  []string{fmt.Sprintf("parameters are not serializable: %v", err)},
		}
	}

	schemaLoader := gojsonschema.NewStringLoader(meta.SchemaJSON)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error for %s: %w", meta.Name, err)
	}

	if result.Valid() {
		return nil
	}

	var details []string
	for _, desc := range result.Errors() {
		details = append(details, formatValidationError(desc.String()))
	}
	return &global.ValidationError{ToolName: meta.Name, Details: details}
}

// formatValidationError converts technical validation errors to user-friendly messages
func formatValidationError(rawError string) string {
	// Common patterns from gojsonschema:
	// "(root): field is required" -> "Missing required parameter: field"
	// "(root): Additional property x is not allowed" -> "Unknown parameter: x"
	// "field: Invalid type. Expected: string, given: number" -> "Parameter 'field': expected string, got number"

	if strings.Contains(rawError, "is required") {
		parts := strings.SplitN(rawError, ": ", 2)
		if len(parts) == 2 {
			fieldName := strings.TrimSuffix(parts[1], " is required")
			return fmt.Sprintf("Missing required parameter: %s", fieldName)
		}
	}

	if strings.Contains(rawError, "Additional property") {
		parts := strings.SplitN(rawError, "Additional property ", 2)
		if len(parts) == 2 {
			fieldName := strings.TrimSuffix(parts[1], " is not allowed")
			return fmt.Sprintf("Unknown parameter: %s", fieldName)
		}
	}

	if strings.Contains(rawError, "Invalid type") {
		parts := strings.SplitN(rawError, ": Invalid type. ", 2)
		if len(parts) == 2 {
			detail := strings.ToLower(strings.ReplaceAll(parts[1], "Expected: ", "expected "))
			detail = strings.ReplaceAll(detail, "given: ", "got ")
			return fmt.Sprintf("Parameter '%s': %s", parts[0], detail)
		}
	}

	if strings.Contains(rawError, "must be one of") {
		parts := strings.SplitN(rawError, ": ", 2)
		if len(parts) == 2 {
			return fmt.Sprintf("Parameter '%s': %s", parts[0], parts[1])
		}
	}

	return rawError
}

// buildArgv constructs the concrete command line for a job: interpreter,
// script path, then one option per supplied parameter in declaration
// order. Booleans render as flag presence or absence; structured values
// render as separate tokens (nargs lists) or a JSON document.
func buildArgv(python string, meta global.ToolMetadata, params map[string]interface{}) []string {
	argv := []string{python, meta.Path}

	for _, p := range meta.Parameters {
		value, ok := params[p.Name]
		if !ok {
			continue // the tool applies its own declared default
		}

		if p.Kind == global.ParamKindBoolean {
			if b, ok := value.(bool); ok && b && p.Flag != "" {
				argv = append(argv, p.Flag)
			}
			continue
		}

		tokens := renderValue(value)
		if len(tokens) == 0 {
			continue
		}
		if p.Flag != "" {
			argv = append(argv, p.Flag)
		}
		argv = append(argv, tokens...)
	}

	return argv
}

// renderValue converts a parameter value to command-line tokens
func renderValue(value interface{}) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []interface{}:
		tokens := make([]string, 0, len(v))
		for _, item := range v {
			tokens = append(tokens, fmt.Sprintf("%v", item))
		}
		return tokens
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return []string{string(data)}
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

// stderrTail returns the last maxBytes of captured stderr for use as an
// error summary.
func stderrTail(stderr string, maxBytes int) string {
	trimmed := strings.TrimSpace(stderr)
	if len(trimmed) <= maxBytes {
		return trimmed
	}
	tail := trimmed[len(trimmed)-maxBytes:]
	// Drop a leading partial line
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return tail
}
