/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

import "testing"

func TestIsTerminalStatus(t *testing.T) {
	terminal := []string{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		if !IsTerminalStatus(s) {
			t.Errorf("IsTerminalStatus(%s) = false", s)
		}
	}

	nonTerminal := []string{JobStatusPending, JobStatusRunning, "", "bogus"}
	for _, s := range nonTerminal {
		if IsTerminalStatus(s) {
			t.Errorf("IsTerminalStatus(%s) = true", s)
		}
	}
}

func TestValidJobStatus(t *testing.T) {
	valid := []string{JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	for _, s := range valid {
		if !ValidJobStatus(s) {
			t.Errorf("ValidJobStatus(%s) = false", s)
		}
	}
	if ValidJobStatus("done") {
		t.Error("ValidJobStatus(done) = true")
	}
}

func TestValidateJobTimeout(t *testing.T) {
	tests := []struct {
		name      string
		timeout   int
		want      int
		wantError bool
	}{
		{"zero uses default", 0, DefaultJobTimeout, false},
		{"minimum", MinJobTimeout, MinJobTimeout, false},
		{"maximum", MaxJobTimeout, MaxJobTimeout, false},
		{"below minimum", -1, 0, true},
		{"above maximum", MaxJobTimeout + 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateJobTimeout(tt.timeout)
			if tt.wantError {
				if err == nil {
					t.Errorf("ValidateJobTimeout(%d) expected error", tt.timeout)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateJobTimeout(%d) error = %v", tt.timeout, err)
			}
			if got != tt.want {
				t.Errorf("ValidateJobTimeout(%d) = %d, want %d", tt.timeout, got, tt.want)
			}
		})
	}
}

func TestJobDuration(t *testing.T) {
	var j Job
	if j.Duration() != 0 {
		t.Error("unstarted job duration should be zero")
	}
}
