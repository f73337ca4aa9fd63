/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package runner

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"sync"
)

// Spec describes one subprocess execution request
type Spec struct {
	Argv []string // Argv[0] is the executable
	Dir  string   // working directory (the job's output directory)
}

// Process is a started subprocess
type Process interface {
	// Wait blocks until the process exits and all output has been
	// delivered. Returns the exit code (-1 if the process never ran or
	// was killed) and any wait error.
	Wait() (int, error)
	// Kill terminates the process immediately
	Kill() error
}

// Executor launches tool subprocesses. The local implementation spawns OS
// processes; alternative backends (e.g. a distributed worker pool) can
// implement the same interface and be injected via WithExecutor.
type Executor interface {
	// Start launches the process described by spec. Output lines are
	// delivered incrementally through the callbacks, each invoked from a
	// dedicated goroutine so a slow consumer never blocks the process.
	// Cancelling ctx kills the process.
	Start(ctx context.Context, spec Spec, onStdout, onStderr func(line string)) (Process, error)
}

// localExecutor runs tools as child processes on the local host
type localExecutor struct{}

// NewLocalExecutor creates the default subprocess executor
func NewLocalExecutor() Executor {
	return &localExecutor{}
}

// localProcess wraps an exec.Cmd with its output pumps
type localProcess struct {
	cmd   *exec.Cmd
	pumps sync.WaitGroup
}

func (e *localExecutor) Start(ctx context.Context, spec Spec, onStdout, onStderr func(line string)) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("empty argument vector")
	}

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &localProcess{cmd: cmd}
	p.pumps.Add(2)
	go func() {
		defer p.pumps.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onStdout != nil {
				onStdout(scanner.Text())
			}
		}
	}()
	go func() {
		defer p.pumps.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onStderr != nil {
				onStderr(scanner.Text())
			}
		}
	}()

	return p, nil
}

// Wait drains the output pumps before reaping the process, so callers see
// every line before the exit code.
func (p *localProcess) Wait() (int, error) {
	p.pumps.Wait()
	err := p.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}

func (p *localProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
