/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"tilde prefix", "~/foo/bar", filepath.Join(home, "foo/bar")},
		{"absolute path unchanged", "/tmp/foo", "/tmp/foo"},
		{"relative path unchanged", "foo/bar", "foo/bar"},
		{"bare tilde unchanged", "~", "~"},
		{"empty path", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandTilde(tt.path); got != tt.want {
				t.Errorf("ExpandTilde(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestValidatePathWithinDir(t *testing.T) {
	baseDir := t.TempDir()

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{"simple relative path", "file.txt", false},
		{"nested path", "sub/dir/file.txt", false},
		{"dot segments resolving inside", "sub/../file.txt", false},
		{"traversal above base", "../outside.txt", true},
		{"deep traversal", "sub/../../../etc/passwd", true},
		{"absolute path rejected", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := ValidatePathWithinDir(baseDir, tt.path)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error for %q, got path %q", tt.path, resolved)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !IsPathWithin(baseDir, resolved) {
				t.Errorf("resolved path %q escapes base %q", resolved, baseDir)
			}
		})
	}
}

func TestIsPathWithin(t *testing.T) {
	if !IsPathWithin("/a/b", "/a/b/c") {
		t.Error("child path should be within")
	}
	if !IsPathWithin("/a/b", "/a/b") {
		t.Error("base itself should be within")
	}
	if IsPathWithin("/a/b", "/a/bc") {
		t.Error("sibling with shared prefix should not be within")
	}
	if IsPathWithin("/a/b", "/a") {
		t.Error("parent should not be within")
	}
}
