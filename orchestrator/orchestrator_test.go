/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PivotLLM/Foreman/config"
	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/logging"
)

const echoTool = `#!/bin/sh
# parser.add_argument('--message', required=True, help='Message to print')
echo "echo: $2"
`

// newTestService builds a fully wired service from a real config file in
// an isolated home directory, with /bin/sh standing in as the interpreter.
func newTestService(t *testing.T) (*Service, string) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	base := t.TempDir()
	toolsDir := filepath.Join(base, "tools")
	if err := os.MkdirAll(toolsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(toolsDir, "echo_tool.py"), []byte(echoTool), 0o755); err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(base, "config.json")
	content := fmt.Sprintf(`{
  "version": 1,
  "base_dir": %q,
  "python": "/bin/sh",
  "runner": {"job_timeout_seconds": 30},
  "logging": {"file": "", "level": "INFO"}
}`, base)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.New(config.WithConfigPath(configPath))
	if err := cfg.Load(); err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	logger, err := logging.New("")
	if err != nil {
		t.Fatal(err)
	}

	svc := New(logger, cfg)
	if err := svc.Start(); err != nil {
		t.Fatalf("service start failed: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc, toolsDir
}

func waitJobTerminal(t *testing.T, svc *Service, jobID string) global.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.GetJob(jobID)
		if err != nil {
			t.Fatalf("job lookup failed: %v", err)
		}
		if global.IsTerminalStatus(job.Status) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
	return global.Job{}
}

func TestListTools(t *testing.T) {
	svc, _ := newTestService(t)

	resp := svc.ListTools("")
	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1", resp.Total)
	}
	if resp.Categories[global.CategoryOther] != 1 {
		t.Errorf("categories = %v, want other:1", resp.Categories)
	}
	meta, ok := resp.Tools["echo_tool"]
	if !ok {
		t.Fatal("echo_tool missing from catalog")
	}
	if meta.DisplayName != "Echo Tool" {
		t.Errorf("display name = %q", meta.DisplayName)
	}

	if filtered := svc.ListTools(global.CategoryGraph); filtered.Total != 0 {
		t.Errorf("graph filter should match nothing, got %d", filtered.Total)
	}
}

func TestRunToolEndToEnd(t *testing.T) {
	svc, _ := newTestService(t)

	events, cancel := svc.Subscribe()
	defer cancel()

	resp, err := svc.RunTool("echo_tool", map[string]interface{}{"message": "hello"}, 0)
	if err != nil {
		t.Fatalf("RunTool failed: %v", err)
	}
	if resp.Status != global.JobStatusPending {
		t.Errorf("initial status = %s", resp.Status)
	}

	final := waitJobTerminal(t, svc, resp.JobID)
	if final.Status != global.JobStatusCompleted {
		t.Fatalf("status = %s (error: %s)", final.Status, final.Error)
	}
	if !strings.Contains(final.Stdout, "echo: hello") {
		t.Errorf("stdout = %q", final.Stdout)
	}

	// The subscription must deliver exactly one terminal event for the job
	var sawTerminal bool
	timeout := time.After(2 * time.Second)
	for !sawTerminal {
		select {
		case ev := <-events:
			if ev.JobID == resp.JobID && ev.Terminal {
				sawTerminal = true
				if ev.Status != global.JobStatusCompleted {
					t.Errorf("terminal event status = %s", ev.Status)
				}
				if ev.DurationSec < 0 {
					t.Errorf("terminal event duration = %f", ev.DurationSec)
				}
			}
		case <-timeout:
			t.Fatal("no terminal event received")
		}
	}

	stats := svc.Stats()
	if stats.TotalTools != 1 || stats.TotalJobs != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.JobsByStatus[global.JobStatusCompleted] != 1 {
		t.Errorf("jobs by status = %v", stats.JobsByStatus)
	}
}

func TestRunToolUnknown(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RunTool("missing", nil, 0)
	if _, ok := global.IsNotFound(err); !ok {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRunToolValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RunTool("echo_tool", map[string]interface{}{"bogus": 1}, 0)
	if _, ok := global.IsValidationError(err); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(svc.ListJobs(global.JobFilter{})) != 0 {
		t.Error("validation failure must not leave a job record")
	}
}

func TestCancelCompletedJob(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.RunTool("echo_tool", map[string]interface{}{"message": "x"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	waitJobTerminal(t, svc, resp.JobID)

	snap, err := svc.CancelJob(resp.JobID)
	if err != nil {
		t.Fatalf("cancel of terminal job errored: %v", err)
	}
	if snap.Status != global.JobStatusCompleted {
		t.Errorf("terminal cancel changed status to %s", snap.Status)
	}
}

func TestRescan(t *testing.T) {
	svc, toolsDir := newTestService(t)

	src := "#!/bin/sh\n# parser.add_argument('--input', help='in')\ntrue\n"
	if err := os.WriteFile(filepath.Join(toolsDir, "graph_scan.py"), []byte(src), 0o755); err != nil {
		t.Fatal(err)
	}

	count, err := svc.Rescan()
	if err != nil {
		t.Fatalf("rescan failed: %v", err)
	}
	if count != 2 {
		t.Errorf("tool count after rescan = %d, want 2", count)
	}
	cats := svc.Categories()
	if cats[global.CategoryGraph] != 1 || cats[global.CategoryOther] != 1 {
		t.Errorf("categories = %v, want graph:1 other:1", cats)
	}
}

func TestListJobsFilter(t *testing.T) {
	svc, _ := newTestService(t)

	var ids []string
	for i := 0; i < 3; i++ {
		resp, err := svc.RunTool("echo_tool", map[string]interface{}{"message": fmt.Sprintf("m%d", i)}, 0)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, resp.JobID)
	}
	for _, id := range ids {
		waitJobTerminal(t, svc, id)
	}

	all := svc.ListJobs(global.JobFilter{})
	if len(all) != 3 {
		t.Fatalf("list returned %d jobs, want 3", len(all))
	}
	completed := svc.ListJobs(global.JobFilter{Status: global.JobStatusCompleted})
	if len(completed) != 3 {
		t.Errorf("completed filter returned %d", len(completed))
	}
	limited := svc.ListJobs(global.JobFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit filter returned %d", len(limited))
	}
}
