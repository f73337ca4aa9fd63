/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package runner executes tools as supervised subprocesses. Each accepted
// run becomes a job record in the store; a fixed worker pool drains a
// bounded queue, so at most maxConcurrent processes run at once and
// bursts beyond the queue capacity are rejected rather than buffered
// without limit.
package runner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/jobs"
	"github.com/PivotLLM/Foreman/logging"
	"github.com/PivotLLM/Foreman/registry"
)

// progressLine matches the optional self-reporting protocol: a tool that
// prints "progress: 42%" on stdout or stderr overrides the heuristic
// checkpoints.
var progressLine = regexp.MustCompile(`(?i)\bprogress:\s*(\d{1,3})\s*%`)

// Runner validates run requests, admits them to the queue, and supervises
// their execution through the job store.
type Runner struct {
	logger   *logging.Logger
	registry *registry.Service
	store    *jobs.Store

	executor      Executor
	python        string
	outputRoot    string
	timeout       time.Duration
	maxConcurrent int
	queueSize     int
	limiter       *RateLimiter

	queue    chan string
	stop     chan struct{}
	workers  sync.WaitGroup
	active   sync.WaitGroup
	cancels  sync.Map // job id -> context.CancelFunc
	timeouts sync.Map // job id -> time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
}

// Option is a functional option for configuring the Runner
type Option func(*Runner)

// WithExecutor replaces the subprocess executor (used by tests and
// alternative backends)
func WithExecutor(e Executor) Option {
	return func(r *Runner) {
		r.executor = e
	}
}

// WithPython sets the interpreter used to launch tools
func WithPython(python string) Option {
	return func(r *Runner) {
		r.python = python
	}
}

// WithOutputRoot sets the directory under which per-job output
// directories are created
func WithOutputRoot(dir string) Option {
	return func(r *Runner) {
		r.outputRoot = dir
	}
}

// WithTimeout sets the default per-job execution timeout
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithMaxConcurrent sets the number of worker goroutines, which bounds
// the number of simultaneously running jobs
func WithMaxConcurrent(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// WithQueueSize sets the pending queue capacity
func WithQueueSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithRateLimit bounds process spawns to maxRequests per periodSeconds
func WithRateLimit(maxRequests, periodSeconds int) Option {
	return func(r *Runner) {
		if maxRequests > 0 && periodSeconds > 0 {
			r.limiter = NewRateLimiter(maxRequests, periodSeconds)
		}
	}
}

// New creates a Runner. Call Start before submitting jobs.
func New(logger *logging.Logger, reg *registry.Service, store *jobs.Store, opts ...Option) *Runner {
	r := &Runner{
		logger:        logger,
		registry:      reg,
		store:         store,
		executor:      NewLocalExecutor(),
		python:        global.DefaultPython,
		timeout:       global.DefaultJobTimeout * time.Second,
		maxConcurrent: global.DefaultMaxConcurrent,
		queueSize:     global.DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = make(chan string, r.queueSize)
	r.stop = make(chan struct{})
	return r
}

// Start launches the worker pool
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		for i := 0; i < r.maxConcurrent; i++ {
			r.workers.Add(1)
			go r.worker()
		}
		r.logf("Runner started with %d worker(s), queue capacity %d", r.maxConcurrent, r.queueSize)
	})
}

// Stop prevents further dequeues and waits for in-flight jobs to finish.
// Queued jobs that never started remain pending in the store.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	r.workers.Wait()
	r.active.Wait()
}

// Wait blocks until all in-flight jobs have finished
func (r *Runner) Wait() {
	r.active.Wait()
}

// Run validates the request and creates a pending job. Validation failures
// surface before any job record or process exists. The returned snapshot
// is the freshly created pending job; execution proceeds asynchronously.
func (r *Runner) Run(toolName string, params map[string]interface{}, timeoutSeconds int) (global.Job, error) {
	meta, err := r.registry.Get(toolName)
	if err != nil {
		return global.Job{}, err
	}

	if err := validateParams(meta, params); err != nil {
		return global.Job{}, err
	}

	timeout := r.timeout
	if timeoutSeconds > 0 {
		validated, err := global.ValidateJobTimeout(timeoutSeconds)
		if err != nil {
			return global.Job{}, &global.ValidationError{ToolName: toolName, Details: []string{err.Error()}}
		}
		timeout = time.Duration(validated) * time.Second
	}

	job := global.Job{
		ID:         uuid.New().String(),
		ToolName:   toolName,
		Status:     global.JobStatusPending,
		Parameters: params,
		Progress:   global.ProgressQueued,
		CreatedAt:  time.Now(),
	}

	if err := r.store.Create(job); err != nil {
		return global.Job{}, err
	}
	r.timeouts.Store(job.ID, timeout)

	select {
	case r.queue <- job.ID:
	default:
		// Queue saturated: reject rather than buffer without bound
		r.timeouts.Delete(job.ID)
		_ = r.store.Delete(job.ID)
		return global.Job{}, &global.QueueFullError{Capacity: r.queueSize}
	}

	r.logf("Job %s queued for tool %s", job.ID, toolName)
	return job, nil
}

// Cancel transitions a job to cancelled. Pending jobs are cancelled
// without ever spawning a process; running jobs have their process
// killed. Cancelling a job already in a terminal status is a no-op that
// returns the current snapshot.
func (r *Runner) Cancel(jobID string) (global.Job, error) {
	snap, err := r.store.Get(jobID)
	if err != nil {
		return global.Job{}, err
	}
	if global.IsTerminalStatus(snap.Status) {
		return snap, nil
	}

	updated, err := r.store.Update(jobID, "Job cancelled", func(j *global.Job) {
		j.Status = global.JobStatusCancelled
	})
	if err != nil {
		return global.Job{}, err
	}

	// Kill the process if one is running. The store record is already
	// terminal, so the supervisor's subsequent updates become no-ops.
	if cancel, ok := r.cancels.Load(jobID); ok {
		cancel.(context.CancelFunc)()
	}

	r.logf("Job %s cancelled (was %s)", jobID, snap.Status)
	return updated, nil
}

// Get returns a snapshot of a job
func (r *Runner) Get(jobID string) (global.Job, error) {
	return r.store.Get(jobID)
}

// worker drains the queue until Stop is called
func (r *Runner) worker() {
	defer r.workers.Done()
	for {
		select {
		case <-r.stop:
			return
		case jobID := <-r.queue:
			snap, err := r.store.Get(jobID)
			if err != nil || snap.Status != global.JobStatusPending {
				// Cancelled or swept while queued
				r.timeouts.Delete(jobID)
				continue
			}
			r.active.Add(1)
			r.execute(jobID)
			r.active.Done()
		}
	}
}

// execute supervises one job from spawn to terminal status
func (r *Runner) execute(jobID string) {
	defer r.timeouts.Delete(jobID)

	timeout := r.timeout
	if v, ok := r.timeouts.Load(jobID); ok {
		timeout = v.(time.Duration)
	}

	snap, err := r.store.Get(jobID)
	if err != nil {
		return
	}

	meta, err := r.registry.Get(snap.ToolName)
	if err != nil {
		r.fail(jobID, global.ErrorKindSpawn, fmt.Sprintf("tool no longer registered: %v", err), nil)
		return
	}

	outputDir := filepath.Join(r.outputRoot, jobID)
	if err := global.EnsureDir(outputDir); err != nil {
		r.fail(jobID, global.ErrorKindSpawn, fmt.Sprintf("failed to create output directory: %v", err), nil)
		return
	}

	if r.limiter != nil {
		if waited := r.limiter.Wait(); waited > 0 {
			r.logf("Job %s delayed %s by spawn rate limit", jobID, waited.Round(time.Millisecond))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	r.cancels.Store(jobID, cancel)
	defer r.cancels.Delete(jobID)

	started, err := r.store.Update(jobID, "Job started", func(j *global.Job) {
		now := time.Now()
		j.Status = global.JobStatusRunning
		j.StartedAt = &now
		j.Progress = global.ProgressStarted
		j.OutputDir = outputDir
	})
	if err != nil || started.Status != global.JobStatusRunning {
		// Cancelled between dequeue and start: never spawn
		return
	}

	argv := buildArgv(r.python, meta, started.Parameters)
	r.logf("Job %s starting: %s", jobID, strings.Join(argv, " "))

	startTime := time.Now()
	proc, err := r.executor.Start(ctx, Spec{Argv: argv, Dir: outputDir},
		func(line string) { r.onStdout(jobID, line) },
		func(line string) { r.onStderr(jobID, line) },
	)
	if err != nil {
		spawnErr := &global.SpawnError{Cause: err}
		r.fail(jobID, global.ErrorKindSpawn, spawnErr.Error(), nil)
		return
	}

	code, waitErr := proc.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		r.fail(jobID, global.ErrorKindTimeout,
			fmt.Sprintf("execution timed out after %s", timeout), &code)
		return
	}

	if waitErr != nil {
		r.fail(jobID, global.ErrorKindRuntime, fmt.Sprintf("process wait failed: %v", waitErr), &code)
		return
	}

	if code != 0 {
		current, _ := r.store.Get(jobID)
		detail := stderrTail(current.Stderr, global.DefaultStderrTailBytes)
		msg := fmt.Sprintf("tool exited with code %d", code)
		if detail != "" {
			msg = fmt.Sprintf("%s: %s", msg, detail)
		}
		r.fail(jobID, global.ErrorKindRuntime, msg, &code)
		return
	}

	outputs := discoverOutputs(outputDir, meta.OutputPatterns, startTime)
	final, err := r.store.Update(jobID, "Job completed", func(j *global.Job) {
		j.Status = global.JobStatusCompleted
		j.Progress = global.ProgressDone
		j.ExitCode = &code
		j.OutputFiles = outputs
	})
	if err == nil && final.Status == global.JobStatusCompleted {
		r.logf("Job %s completed with %d output file(s)", jobID, len(outputs))
	}
}

// fail moves a job to failed with the given error kind. If the job was
// cancelled in the meantime the update is silently dropped by the store.
func (r *Runner) fail(jobID, kind, message string, exitCode *int) {
	_, _ = r.store.Update(jobID, message, func(j *global.Job) {
		j.Status = global.JobStatusFailed
		j.Error = message
		j.ErrorKind = kind
		if exitCode != nil {
			j.ExitCode = exitCode
		}
	})
	r.logf("Job %s failed (%s): %s", jobID, kind, message)
}

// onStdout appends a stdout line and advances progress. The first output
// line bumps the heuristic checkpoint; an explicit "progress: N%" line
// overrides it, clamped below 100 until the job actually finishes.
func (r *Runner) onStdout(jobID, line string) {
	progress := parseProgress(line)
	_, _ = r.store.Update(jobID, "", func(j *global.Job) {
		j.Stdout += line + "\n"
		if progress >= 0 {
			j.Progress = progress
		} else if j.Progress < global.ProgressFirstOutput {
			j.Progress = global.ProgressFirstOutput
		}
	})
}

// onStderr appends a stderr line. Progress reports are honored here too,
// since Python tools commonly write them to stderr.
func (r *Runner) onStderr(jobID, line string) {
	progress := parseProgress(line)
	_, _ = r.store.Update(jobID, "", func(j *global.Job) {
		j.Stderr += line + "\n"
		if progress >= 0 {
			j.Progress = progress
		}
	})
}

// parseProgress extracts a self-reported percentage from a line, clamped
// below 100 so only completion sets 100. Returns -1 if absent.
func parseProgress(line string) int {
	m := progressLine.FindStringSubmatch(line)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	if n > 99 {
		n = 99
	}
	return n
}

// discoverOutputs returns files under dir whose base name matches one of
// the tool's output patterns and whose modification time is not older
// than the job start. Paths are relative to dir, sorted.
func discoverOutputs(dir string, patterns []string, since time.Time) []string {
	// Allow for coarse filesystem timestamp granularity
	cutoff := since.Add(-time.Second)

	var outputs []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.ModTime().Before(cutoff) {
			return nil
		}
		base := filepath.Base(path)
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, base); ok {
				rel, err := filepath.Rel(dir, path)
				if err != nil {
					rel = base
				}
				outputs = append(outputs, rel)
				return nil
			}
		}
		return nil
	})

	sort.Strings(outputs)
	return outputs
}

// logf logs through the configured logger, if any
func (r *Runner) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Infof(format, args...)
	}
}

// InterpreterPath resolves the configured interpreter and reports whether
// it exists. Used by the health check.
func (r *Runner) InterpreterPath() (string, bool) {
	if strings.ContainsRune(r.python, os.PathSeparator) {
		if global.FileExists(r.python) {
			return r.python, true
		}
		return r.python, false
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		candidate := filepath.Join(dir, r.python)
		if global.FileExists(candidate) {
			return candidate, true
		}
	}
	return r.python, false
}
