/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package extract derives a typed parameter schema from a Python tool's
// argparse declarations by scanning the source text. The tool is never
// imported or executed, so broken or heavy imports in a tool cannot affect
// the scan.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PivotLLM/Foreman/global"
)

// ParseSource extracts the declared parameters from Python source text.
// Unparsable individual arguments are skipped and reported as warnings;
// the function never fails outright. A tool with no add_argument calls
// yields an empty (non-nil) parameter list.
func ParseSource(src string) ([]global.ToolParameter, []string) {
	params := make([]global.ToolParameter, 0)
	var warnings []string

	for _, call := range findArgumentCalls(src) {
		param, err := parseArgumentCall(call)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping argument: %v", err))
			continue
		}
		if param == nil {
			// -h/--help and similar, intentionally ignored
			continue
		}
		params = append(params, *param)
	}

	return params, warnings
}

// Description returns the first line of the module docstring, if present.
func Description(src string) string {
	trimmed := strings.TrimLeft(src, " \t\r\n")
	// Skip a leading shebang and encoding/comment lines
	for strings.HasPrefix(trimmed, "#") {
		idx := strings.IndexByte(trimmed, '\n')
		if idx < 0 {
			return ""
		}
		trimmed = strings.TrimLeft(trimmed[idx+1:], " \t\r\n")
	}

	for _, quote := range []string{`"""`, "'''"} {
		if strings.HasPrefix(trimmed, quote) {
			body := trimmed[len(quote):]
			end := strings.Index(body, quote)
			if end < 0 {
				return ""
			}
			doc := strings.TrimSpace(body[:end])
			if idx := strings.IndexByte(doc, '\n'); idx >= 0 {
				doc = strings.TrimSpace(doc[:idx])
			}
			return doc
		}
	}
	return ""
}

// findArgumentCalls returns the raw argument text of every add_argument
// call in the source, with balanced parentheses and string literals
// respected.
func findArgumentCalls(src string) []string {
	const marker = ".add_argument("
	var calls []string

	for i := 0; i < len(src); {
		idx := strings.Index(src[i:], marker)
		if idx < 0 {
			break
		}
		start := i + idx + len(marker)
		body, end, ok := scanBalanced(src, start)
		if !ok {
			break
		}
		calls = append(calls, body)
		i = end
	}
	return calls
}

// scanBalanced scans from an opening parenthesis (already consumed) to its
// matching close, honoring nested brackets and quoted strings. Returns the
// enclosed text and the index just past the close paren.
func scanBalanced(src string, start int) (string, int, bool) {
	depth := 1
	var quote byte
	for i := start; i < len(src); i++ {
		ch := src[i]
		if quote != 0 {
			if ch == '\\' {
				i++ // skip escaped character
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return src[start:i], i + 1, true
			}
		}
	}
	return "", 0, false
}

// splitTopLevel splits call arguments at commas that are not nested inside
// brackets or string literals.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	var quote byte
	last := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[last:i]))
				last = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[last:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// parseArgumentCall converts one add_argument call into a ToolParameter.
// Returns (nil, nil) for arguments that should be ignored (e.g. --help).
func parseArgumentCall(raw string) (*global.ToolParameter, error) {
	args := splitTopLevel(raw)
	if len(args) == 0 {
		return nil, fmt.Errorf("empty add_argument call")
	}

	var flags []string
	kwargs := make(map[string]string)

	for _, arg := range args {
		if name, value, ok := splitKeyword(arg); ok {
			kwargs[name] = value
			continue
		}
		lit, ok := unquote(arg)
		if !ok {
			return nil, fmt.Errorf("unrecognized positional argument %q", arg)
		}
		flags = append(flags, lit)
	}

	if len(flags) == 0 {
		return nil, fmt.Errorf("no argument name in %q", raw)
	}

	name, flag := deriveName(flags)
	if name == "" || name == "help" {
		return nil, nil
	}
	if dest, ok := kwargs["dest"]; ok {
		if d, ok := unquote(dest); ok && d != "" {
			name = d
		}
	}

	param := &global.ToolParameter{
		Name: name,
		Flag: flag,
		Kind: global.ParamKindText,
	}

	if help, ok := kwargs["help"]; ok {
		if h, ok := unquote(help); ok {
			param.Description = h
		}
	}

	// Boolean flags: store_true / store_false both present as booleans
	// that default to false (the flag is simply absent from the command).
	if action, ok := kwargs["action"]; ok {
		if a, ok := unquote(action); ok && (a == "store_true" || a == "store_false") {
			param.Kind = global.ParamKindBoolean
			param.Default = false
			return param, nil
		}
	}

	switch kwargs["type"] {
	case "int":
		param.Kind = global.ParamKindInteger
	case "float":
		param.Kind = global.ParamKindFloat
	case "json.loads":
		param.Kind = global.ParamKindStructured
	}

	if choices, ok := kwargs["choices"]; ok {
		list, err := parseChoices(choices)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", name, err)
		}
		param.Kind = global.ParamKindChoice
		param.Choices = list
	}

	// nargs with "many values" semantics maps to the structured kind
	if nargs, ok := kwargs["nargs"]; ok {
		trimmed := strings.TrimSpace(nargs)
		if trimmed == "'+'" || trimmed == `"+"` || trimmed == "'*'" || trimmed == `"*"` {
			param.Kind = global.ParamKindStructured
		} else if _, err := strconv.Atoi(trimmed); err == nil {
			param.Kind = global.ParamKindStructured
		}
	}

	param.Required = flag == "" // positional arguments are required by default
	if req, ok := kwargs["required"]; ok {
		param.Required = strings.TrimSpace(req) == "True"
	}

	if !param.Required {
		if def, ok := kwargs["default"]; ok {
			if value, ok := parseLiteral(def); ok && value != nil {
				param.Default = value
			}
		}
	}

	return param, nil
}

// splitKeyword splits "name=value" at a top-level equals sign. A leading
// quote or digit means the argument is positional, not a keyword.
func splitKeyword(arg string) (string, string, bool) {
	if arg == "" || arg[0] == '\'' || arg[0] == '"' || arg[0] == '-' {
		return "", "", false
	}
	idx := strings.IndexByte(arg, '=')
	if idx <= 0 {
		return "", "", false
	}
	name := strings.TrimSpace(arg[:idx])
	for _, r := range name {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", "", false
		}
	}
	return name, strings.TrimSpace(arg[idx+1:]), true
}

// deriveName picks the parameter name from the declared flags, preferring
// the long option and applying the argparse dest convention (dashes become
// underscores). The second return is the literal flag used on the command
// line, empty for positional arguments.
func deriveName(flags []string) (string, string) {
	var chosen, flag string
	for _, f := range flags {
		if strings.HasPrefix(f, "--") {
			chosen = strings.TrimPrefix(f, "--")
			flag = f
			break
		}
		if strings.HasPrefix(f, "-") {
			if flag == "" {
				chosen = strings.TrimPrefix(f, "-")
				flag = f
			}
			continue
		}
		// Positional argument
		if chosen == "" {
			chosen = f
		}
	}
	return strings.ReplaceAll(chosen, "-", "_"), flag
}

// parseChoices parses a choices=[...] list into string values.
func parseChoices(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < 2 || (trimmed[0] != '[' && trimmed[0] != '(') {
		return nil, fmt.Errorf("choices is not a list: %q", raw)
	}
	inner := trimmed[1 : len(trimmed)-1]
	var choices []string
	for _, item := range splitTopLevel(inner) {
		value, ok := parseLiteral(item)
		if !ok {
			return nil, fmt.Errorf("unparsable choice %q", item)
		}
		choices = append(choices, fmt.Sprintf("%v", value))
	}
	if len(choices) == 0 {
		return nil, fmt.Errorf("choices list is empty")
	}
	return choices, nil
}

// parseLiteral converts a Python literal to a Go value. None yields
// (nil, true). Lists and dicts are converted through a best-effort
// Python-to-JSON rewrite.
func parseLiteral(raw string) (interface{}, bool) {
	trimmed := strings.TrimSpace(raw)
	switch trimmed {
	case "None":
		return nil, true
	case "True":
		return true, true
	case "False":
		return false, true
	}

	if s, ok := unquote(trimmed); ok {
		return s, true
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f, true
	}

	if len(trimmed) >= 2 && (trimmed[0] == '[' || trimmed[0] == '{') {
		jsonish := strings.NewReplacer("'", `"`, "True", "true", "False", "false", "None", "null").Replace(trimmed)
		var value interface{}
		if err := json.Unmarshal([]byte(jsonish), &value); err == nil {
			return value, true
		}
	}

	return nil, false
}

// unquote strips matching single or double quotes from a Python string
// literal and resolves simple escapes.
func unquote(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return "", false
	}
	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return "", false
	}
	body := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(ch)
	}
	return b.String(), true
}
