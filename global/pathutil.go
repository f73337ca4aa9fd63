/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandTilde expands a leading "~/" in a path to the user's home
// directory. Paths without the prefix are returned unchanged.
func ExpandTilde(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

// ValidatePathWithinDir validates that a relative path, when resolved against baseDir,
// stays within baseDir. This prevents path traversal attacks.
// Returns the absolute resolved path if valid, or an error if path traversal is detected.
func ValidatePathWithinDir(baseDir, relativePath string) (string, error) {
	// Reject absolute paths - they must be relative
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("absolute paths not allowed: %s", relativePath)
	}

	// Clean the path to normalize . and .. components
	cleanPath := filepath.Clean(relativePath)

	// Get absolute base directory
	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute base directory: %w", err)
	}

	// Resolve the full path
	absFilePath, err := filepath.Abs(filepath.Join(absBaseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute file path: %w", err)
	}

	// Verify the resolved path is under the base directory
	if !IsPathWithin(absBaseDir, absFilePath) {
		return "", fmt.Errorf("path traversal attempt detected: %s", relativePath)
	}

	return absFilePath, nil
}

// IsPathWithin checks if resolvedPath is within or equal to baseDir.
// Both paths should be absolute.
func IsPathWithin(baseDir, resolvedPath string) bool {
	return strings.HasPrefix(resolvedPath, baseDir+string(filepath.Separator)) ||
		resolvedPath == baseDir
}
