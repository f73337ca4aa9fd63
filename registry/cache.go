/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/PivotLLM/Foreman/global"
)

// cacheVersion is bumped whenever the cache layout changes
const cacheVersion = 1

// cacheData is the persisted form of the catalog
type cacheData struct {
	Version    int                            `json:"version"`
	ScannedAt  time.Time                      `json:"scanned_at"`
	DirModTime time.Time                      `json:"dir_mod_time"`
	Tools      map[string]global.ToolMetadata `json:"tools"`
}

// withLock executes a function while holding the cache file lock. The lock
// guards against concurrent foreman processes sharing one cache file.
func (s *Service) withLock(fn func() error) error {
	lock := flock.New(s.cacheFile + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire cache lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}

// saveCache persists the current catalog atomically
func (s *Service) saveCache() error {
	dirInfo, err := os.Stat(s.toolsDir)
	if err != nil {
		return fmt.Errorf("failed to stat tools directory: %w", err)
	}

	s.mu.RLock()
	data := cacheData{
		Version:    cacheVersion,
		ScannedAt:  s.scannedAt,
		DirModTime: dirInfo.ModTime(),
		Tools:      s.tools,
	}
	s.mu.RUnlock()

	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	return s.withLock(func() error {
		return global.AtomicWrite(s.cacheFile, content)
	})
}

// loadCache restores the catalog from the cache file if it exists and is
// still current with respect to the tools directory modification time.
// Returns true when the cache was used.
func (s *Service) loadCache() (bool, error) {
	if s.cacheFile == "" || !global.FileExists(s.cacheFile) {
		return false, nil
	}

	var content []byte
	err := s.withLock(func() error {
		var readErr error
		content, readErr = os.ReadFile(s.cacheFile)
		return readErr
	})
	if err != nil {
		return false, fmt.Errorf("failed to read cache file: %w", err)
	}

	var data cacheData
	if err := json.Unmarshal(content, &data); err != nil {
		return false, fmt.Errorf("failed to parse cache file: %w", err)
	}
	if data.Version != cacheVersion {
		return false, nil
	}

	// Stale if the tools directory changed after the cached scan
	dirInfo, err := os.Stat(s.toolsDir)
	if err != nil {
		return false, fmt.Errorf("failed to stat tools directory: %w", err)
	}
	if dirInfo.ModTime().After(data.DirModTime) {
		return false, nil
	}

	if data.Tools == nil {
		data.Tools = make(map[string]global.ToolMetadata)
	}

	s.mu.Lock()
	s.tools = data.Tools
	s.scannedAt = data.ScannedAt
	s.mu.Unlock()

	return true, nil
}
