/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package orchestrator composes the registry, job store, and runner into
// the single surface the server exposes. Callers outside this package
// never touch the underlying services directly.
package orchestrator

import (
	"time"

	"github.com/PivotLLM/Foreman/config"
	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/jobs"
	"github.com/PivotLLM/Foreman/logging"
	"github.com/PivotLLM/Foreman/registry"
	"github.com/PivotLLM/Foreman/runner"
)

// Service is the orchestration facade
type Service struct {
	logger   *logging.Logger
	registry *registry.Service
	store    *jobs.Store
	runner   *runner.Runner

	sweepInterval time.Duration
	retention     time.Duration
}

// New wires the orchestration services from configuration
func New(logger *logging.Logger, cfg *config.Config) *Service {
	reg := registry.NewService(
		registry.WithToolsDir(cfg.ToolsDir()),
		registry.WithCacheFile(cfg.CacheFile()),
		registry.WithLogger(logger),
	)

	store := jobs.NewStore(jobs.WithLogger(logger))

	rc := cfg.Runner()
	run := runner.New(logger, reg, store,
		runner.WithPython(cfg.Python()),
		runner.WithOutputRoot(cfg.OutputDir()),
		runner.WithTimeout(time.Duration(rc.JobTimeoutSeconds)*time.Second),
		runner.WithMaxConcurrent(rc.MaxConcurrent),
		runner.WithQueueSize(rc.QueueSize),
		runner.WithRateLimit(rc.RateLimit.MaxRequests, rc.RateLimit.PeriodSeconds),
	)

	return &Service{
		logger:        logger,
		registry:      reg,
		store:         store,
		runner:        run,
		sweepInterval: time.Duration(rc.SweepSeconds) * time.Second,
		retention:     time.Duration(rc.RetentionHours) * time.Hour,
	}
}

// Start loads the tool catalog and brings up the worker pool and the
// retention sweeper
func (s *Service) Start() error {
	if err := s.registry.EnsureLoaded(); err != nil {
		return err
	}
	s.store.StartSweeper(s.sweepInterval, s.retention)
	s.runner.Start()
	return nil
}

// Stop drains in-flight jobs and stops the sweeper
func (s *Service) Stop() {
	s.runner.Stop()
	s.store.StopSweeper()
}

// ListTools returns the catalog, optionally filtered by category
func (s *Service) ListTools(category string) global.ToolListResponse {
	list := s.registry.List(category)
	tools := make(map[string]global.ToolMetadata, len(list))
	for _, meta := range list {
		tools[meta.Name] = meta
	}
	return global.ToolListResponse{
		Total:      len(list),
		Categories: s.registry.Categories(),
		Tools:      tools,
	}
}

// GetTool returns full metadata for one tool
func (s *Service) GetTool(name string) (global.ToolMetadata, error) {
	return s.registry.Get(name)
}

// Rescan rebuilds the tool catalog from disk and returns the new count
func (s *Service) Rescan() (int, error) {
	if err := s.registry.Scan(); err != nil {
		return 0, err
	}
	return s.registry.Count(), nil
}

// Categories returns tool counts per category
func (s *Service) Categories() map[string]int {
	return s.registry.Categories()
}

// RunTool validates and submits a job. timeoutSeconds of 0 uses the
// configured default.
func (s *Service) RunTool(toolName string, params map[string]interface{}, timeoutSeconds int) (global.RunToolResponse, error) {
	job, err := s.runner.Run(toolName, params, timeoutSeconds)
	if err != nil {
		return global.RunToolResponse{}, err
	}
	return global.RunToolResponse{
		JobID:    job.ID,
		ToolName: job.ToolName,
		Status:   job.Status,
		Message:  "job accepted; poll job_get or subscribe for progress",
	}, nil
}

// GetJob returns a snapshot of a job
func (s *Service) GetJob(id string) (global.Job, error) {
	return s.store.Get(id)
}

// CancelJob cancels a job and returns the resulting snapshot
func (s *Service) CancelJob(id string) (global.Job, error) {
	return s.runner.Cancel(id)
}

// ListJobs returns job snapshots matching the filter, newest first
func (s *Service) ListJobs(filter global.JobFilter) []global.Job {
	return s.store.List(filter)
}

// Stats returns catalog and job counters
func (s *Service) Stats() global.StatsResponse {
	return global.StatsResponse{
		TotalTools:   s.registry.Count(),
		TotalJobs:    s.store.Total(),
		JobsByStatus: s.store.Counts(),
	}
}

// Subscribe registers for job events. The returned function cancels the
// subscription.
func (s *Service) Subscribe() (<-chan global.JobEvent, func()) {
	return s.store.Subscribe()
}

// InterpreterPath reports the resolved tool interpreter and whether it
// exists, for the health check
func (s *Service) InterpreterPath() (string, bool) {
	return s.runner.InterpreterPath()
}

// ToolCount returns the number of registered tools
func (s *Service) ToolCount() int {
	return s.registry.Count()
}
