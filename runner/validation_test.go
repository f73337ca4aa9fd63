/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package runner

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/PivotLLM/Foreman/global"
)

// testMeta builds tool metadata with a compiled schema, the same way the
// registry does during a scan.
func testMeta(params []global.ToolParameter) global.ToolMetadata {
	properties := map[string]interface{}{}
	var required []string
	for _, p := range params {
		prop := map[string]interface{}{}
		switch p.Kind {
		case global.ParamKindInteger:
			prop["type"] = "integer"
		case global.ParamKindFloat:
			prop["type"] = "number"
		case global.ParamKindBoolean:
			prop["type"] = "boolean"
		case global.ParamKindChoice:
			prop["type"] = "string"
			enum := make([]interface{}, len(p.Choices))
			for i, c := range p.Choices {
				enum[i] = c
			}
			prop["enum"] = enum
		case global.ParamKindStructured:
		default:
			prop["type"] = "string"
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	data, _ := json.Marshal(schema)

	return global.ToolMetadata{
		Name:       "test_tool",
		Path:       "/opt/tools/test_tool.py",
		Parameters: params,
		SchemaJSON: string(data),
	}
}

func TestValidateParams(t *testing.T) {
	meta := testMeta([]global.ToolParameter{
		{Name: "input", Flag: "--input", Kind: global.ParamKindText, Required: true},
		{Name: "top_n", Flag: "--top-n", Kind: global.ParamKindInteger},
		{Name: "metric", Flag: "--metric", Kind: global.ParamKindChoice, Choices: []string{"degree", "pagerank"}},
	})

	tests := []struct {
		name          string
		params        map[string]interface{}
		wantError     bool
		errorContains string
	}{
		{
			name:   "valid parameters",
			params: map[string]interface{}{"input": "graph.json", "top_n": float64(10)},
		},
		{
			name:          "missing required",
			params:        map[string]interface{}{"top_n": float64(10)},
			wantError:     true,
			errorContains: "Missing required parameter: input",
		},
		{
			name:          "unknown parameter",
			params:        map[string]interface{}{"input": "g.json", "bogus": 1},
			wantError:     true,
			errorContains: "Unknown parameter: bogus",
		},
		{
			name:          "wrong type",
			params:        map[string]interface{}{"input": 42},
			wantError:     true,
			errorContains: "Parameter 'input'",
		},
		{
			name:          "invalid choice",
			params:        map[string]interface{}{"input": "g.json", "metric": "centrality"},
			wantError:     true,
			errorContains: "metric",
		},
		{
			name:          "nil params with required",
			params:        nil,
			wantError:     true,
			errorContains: "Missing required parameter: input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateParams(meta, tt.params)
			if tt.wantError {
				ve, ok := global.IsValidationError(err)
				if !ok {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if tt.errorContains != "" && !strings.Contains(ve.Error(), tt.errorContains) {
					t.Errorf("error %q does not contain %q", ve.Error(), tt.errorContains)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateParamsMultipleErrors(t *testing.T) {
	meta := testMeta([]global.ToolParameter{
		{Name: "a", Kind: global.ParamKindText, Required: true},
		{Name: "b", Kind: global.ParamKindText, Required: true},
	})

	err := validateParams(meta, map[string]interface{}{})
	ve, ok := global.IsValidationError(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Details) != 2 {
		t.Errorf("details = %v, want one entry per missing parameter", ve.Details)
	}
}

func TestBuildArgv(t *testing.T) {
	meta := testMeta([]global.ToolParameter{
		{Name: "input", Flag: "--input", Kind: global.ParamKindText, Required: true},
		{Name: "top_n", Flag: "--top-n", Kind: global.ParamKindInteger},
		{Name: "verbose", Flag: "--verbose", Kind: global.ParamKindBoolean},
		{Name: "nodes", Flag: "--nodes", Kind: global.ParamKindStructured},
		{Name: "filename", Flag: "", Kind: global.ParamKindText, Required: true},
	})

	argv := buildArgv("python3", meta, map[string]interface{}{
		"input":    "graph.json",
		"top_n":    float64(10),
		"verbose":  true,
		"nodes":    []interface{}{"a", "b"},
		"filename": "data.csv",
	})

	want := []string{
		"python3", "/opt/tools/test_tool.py",
		"--input", "graph.json",
		"--top-n", "10",
		"--verbose",
		"--nodes", "a", "b",
		"data.csv",
	}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestBuildArgvOmitsAbsentAndFalse(t *testing.T) {
	meta := testMeta([]global.ToolParameter{
		{Name: "input", Flag: "--input", Kind: global.ParamKindText},
		{Name: "verbose", Flag: "--verbose", Kind: global.ParamKindBoolean},
	})

	argv := buildArgv("python3", meta, map[string]interface{}{"verbose": false})
	if len(argv) != 2 {
		t.Errorf("argv = %v, want only interpreter and script", argv)
	}
}

func TestStderrTail(t *testing.T) {
	if got := stderrTail("short error\n", 100); got != "short error" {
		t.Errorf("short tail = %q", got)
	}

	long := strings.Repeat("x", 50) + "\n" + "final line"
	got := stderrTail(long, 20)
	if got != "final line" {
		t.Errorf("tail = %q, want the last complete line", got)
	}

	if got := stderrTail("", 100); got != "" {
		t.Errorf("empty tail = %q", got)
	}
}
