/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package registry owns the authoritative tool metadata mapping, built by
// scanning a directory of external analysis scripts.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PivotLLM/Foreman/extract"
	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/logging"
)

// Service maintains the tool catalog. A scan replaces the mapping
// wholesale; running jobs are unaffected because they reference tools by
// name, not by pointer.
type Service struct {
	toolsDir  string
	cacheFile string
	logger    *logging.Logger

	mu        sync.RWMutex
	tools     map[string]global.ToolMetadata
	scannedAt time.Time
}

// Option is a functional option for configuring the Service
type Option func(*Service)

// WithToolsDir sets the directory scanned for tools
func WithToolsDir(dir string) Option {
	return func(s *Service) {
		s.toolsDir = dir
	}
}

// WithCacheFile sets the cache file used for fast cold starts
func WithCacheFile(path string) Option {
	return func(s *Service) {
		s.cacheFile = path
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new registry service
func NewService(opts ...Option) *Service {
	s := &Service{
		tools: make(map[string]global.ToolMetadata),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// categoryKeywords maps filename keywords to categories. Order matters:
// the first match wins.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"graph", global.CategoryGraph},
	{"network", global.CategoryGraph},
	{"topolog", global.CategoryGraph},
	{"visual", global.CategoryVisualization},
	{"viz", global.CategoryVisualization},
	{"plot", global.CategoryVisualization},
	{"chart", global.CategoryVisualization},
	{"render", global.CategoryVisualization},
	{"stat", global.CategoryStatistics},
	{"metric", global.CategoryStatistics},
	{"count", global.CategoryStatistics},
	{"export", global.CategoryExport},
	{"report", global.CategoryExport},
	{"convert", global.CategoryExport},
	{"analy", global.CategoryAnalysis},
	{"scan", global.CategoryAnalysis},
	{"check", global.CategoryAnalysis},
	{"detect", global.CategoryAnalysis},
	{"find", global.CategoryAnalysis},
}

// outputFilePattern matches quoted literal filenames with a known output
// extension in tool source.
var outputFilePattern = regexp.MustCompile(`['"]([A-Za-z0-9_\-]+\.(html|json|csv|png|txt))['"]`)

// EnsureLoaded loads the catalog from the cache file when it is still
// fresh relative to the tools directory, and falls back to a full scan
// otherwise.
func (s *Service) EnsureLoaded() error {
	loaded, err := s.loadCache()
	if err != nil {
		s.logf("Registry cache unusable, rescanning: %v", err)
	}
	if loaded {
		s.logf("Registry loaded %d tool(s) from cache", s.Count())
		return nil
	}
	return s.Scan()
}

// Scan walks the tools directory (non-recursive) and rebuilds the catalog.
// Individual tools that cannot be parsed are recorded with minimal
// metadata rather than aborting the scan.
func (s *Service) Scan() error {
	entries, err := os.ReadDir(s.toolsDir)
	if err != nil {
		return fmt.Errorf("failed to read tools directory %s: %w", s.toolsDir, err)
	}

	tools := make(map[string]global.ToolMetadata)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".py") || strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		meta := s.scanTool(entry.Name())
		tools[meta.Name] = meta
	}

	s.mu.Lock()
	s.tools = tools
	s.scannedAt = time.Now()
	s.mu.Unlock()

	s.logf("Registry scan complete: %d tool(s) in %s", len(tools), s.toolsDir)

	if s.cacheFile != "" {
		if err := s.saveCache(); err != nil {
			s.logf("Failed to save registry cache: %v", err)
		}
	}

	return nil
}

// scanTool builds metadata for a single tool file. Failures degrade to a
// name-only record.
func (s *Service) scanTool(filename string) global.ToolMetadata {
	name := strings.TrimSuffix(filename, ".py")
	path := filepath.Join(s.toolsDir, filename)

	meta := global.ToolMetadata{
		Name:        name,
		DisplayName: displayName(name),
		Path:        path,
		Category:    categorize(name),
		Parameters:  []global.ToolParameter{},
		Complexity:  global.ComplexityLow,
	}

	src, err := os.ReadFile(path)
	if err != nil {
		s.logf("Failed to read tool %s: %v", name, err)
		meta.ScanWarnings = []string{fmt.Sprintf("source unreadable: %v", err)}
		meta.SchemaJSON = buildSchema(nil)
		return meta
	}

	source := string(src)
	params, warnings := extract.ParseSource(source)
	for _, w := range warnings {
		s.logf("Tool %s: %s", name, w)
	}

	meta.Parameters = params
	meta.ScanWarnings = warnings
	meta.Description = extract.Description(source)
	meta.SourceLines = strings.Count(source, "\n") + 1
	meta.OutputPatterns, meta.OutputFormats = inferOutputs(name, source)
	meta.Complexity = complexityTier(len(params), meta.SourceLines)
	meta.EstimatedSeconds = estimatedRuntime(meta.Complexity)
	meta.SchemaJSON = buildSchema(params)

	return meta
}

// Get returns the metadata for a tool by name
func (s *Service) Get(name string) (global.ToolMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.tools[name]
	if !ok {
		return global.ToolMetadata{}, global.NewToolNotFound(name)
	}
	return meta, nil
}

// List returns tools ordered by name, optionally filtered by category
func (s *Service) List(category string) []global.ToolMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]global.ToolMetadata, 0, len(s.tools))
	for _, meta := range s.tools {
		if category != "" && meta.Category != category {
			continue
		}
		list = append(list, meta)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Categories returns a mapping of category name to tool count
func (s *Service) Categories() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, meta := range s.tools {
		counts[meta.Category]++
	}
	return counts
}

// Count returns the number of registered tools
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tools)
}

// logf logs through the configured logger, if any
func (s *Service) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Infof(format, args...)
	}
}

// displayName converts a tool name like "dependency_graph" to
// "Dependency Graph".
func displayName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// categorize infers a category from filename keywords, falling back to
// "other" when nothing matches.
func categorize(name string) string {
	lower := strings.ToLower(name)
	for _, entry := range categoryKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.category
		}
	}
	return global.CategoryOther
}

// inferOutputs finds output file patterns by scanning the source for
// quoted literal filenames with known extensions. When the source names no
// files, the tool's own name plus the standard extensions is assumed.
func inferOutputs(name, source string) ([]string, []string) {
	patternSet := make(map[string]bool)
	formatSet := make(map[string]bool)

	for _, match := range outputFilePattern.FindAllStringSubmatch(source, -1) {
		patternSet[match[1]] = true
		formatSet[match[2]] = true
	}

	if len(patternSet) == 0 {
		for _, ext := range []string{"html", "json", "csv"} {
			patternSet[name+"*."+ext] = true
			formatSet[ext] = true
		}
	}

	patterns := make([]string, 0, len(patternSet))
	for p := range patternSet {
		patterns = append(patterns, p)
	}
	formats := make([]string, 0, len(formatSet))
	for f := range formatSet {
		formats = append(formats, f)
	}
	sort.Strings(patterns)
	sort.Strings(formats)
	return patterns, formats
}

// complexityTier estimates complexity from parameter count and source size
func complexityTier(paramCount, sourceLines int) string {
	switch {
	case paramCount > 8 || sourceLines > 400:
		return global.ComplexityHigh
	case paramCount > 4 || sourceLines > 150:
		return global.ComplexityMedium
	default:
		return global.ComplexityLow
	}
}

// estimatedRuntime maps a complexity tier to a rough wall-clock estimate
// in seconds. This is a presentation hint, not a scheduling input.
func estimatedRuntime(complexity string) int {
	switch complexity {
	case global.ComplexityHigh:
		return 120
	case global.ComplexityMedium:
		return 45
	default:
		return 10
	}
}

// buildSchema compiles a parameter list into a JSON Schema document used
// for validating supplied parameter values.
func buildSchema(params []global.ToolParameter) string {
	properties := make(map[string]interface{})
	var required []string

	for _, p := range params {
		prop := make(map[string]interface{})
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
			// any JSON value
		default:
			prop["type"] = "string"
		}
		if p.Description != "" {
			prop["description"] = p.Description
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
		sort.Strings(required)
		schema["required"] = required
	}

	data, err := json.Marshal(schema)
	if err != nil {
		// Marshalling a map of plain values cannot realistically fail
		return `{"type":"object"}`
	}
	return string(data)
}
