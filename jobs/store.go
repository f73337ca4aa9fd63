/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package jobs is the single source of truth for job records. All mutation
// flows through Update, which enforces the status state machine and
// progress monotonicity, so concurrent readers never observe a regression.
package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/PivotLLM/Foreman/global"
	"github.com/PivotLLM/Foreman/logging"
)

// Store holds job records keyed by job id
type Store struct {
	logger *logging.Logger

	mu   sync.RWMutex
	jobs map[string]*global.Job

	subMu       sync.Mutex
	subscribers map[int]chan global.JobEvent
	nextSubID   int

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// Option is a functional option for configuring the Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a new job store
func NewStore(opts ...Option) *Store {
	s := &Store{
		jobs:        make(map[string]*global.Job),
		subscribers: make(map[int]chan global.JobEvent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new job record. The id must be unused.
func (s *Store) Create(job global.Job) error {
	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("job id already exists: %s", job.ID)
	}
	stored := job
	s.jobs[job.ID] = &stored
	s.mu.Unlock()

	s.publish(snapshot(&stored), "")
	return nil
}

// Get returns a snapshot of a job record
func (s *Store) Get(id string) (global.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return global.Job{}, global.NewJobNotFound(id)
	}
	return snapshot(job), nil
}

// Update applies a mutation to a job under the store lock. Updates to a
// job already in a terminal status are rejected: the record is frozen on
// terminal transition. Progress regressions and illegal status transitions
// are corrected rather than propagated. Returns the updated snapshot.
func (s *Store) Update(id string, message string, fn func(*global.Job)) (global.Job, error) {
	s.mu.Lock()

	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return global.Job{}, global.NewJobNotFound(id)
	}

	if global.IsTerminalStatus(job.Status) {
		snap := snapshot(job)
		s.mu.Unlock()
		return snap, nil
	}

	prevStatus := job.Status
	prevProgress := job.Progress

	fn(job)

	// Enforce the state machine: illegal transitions revert to the
	// previous status, progress never moves backwards.
	if !legalTransition(prevStatus, job.Status) {
		job.Status = prevStatus
	}
	if job.Progress < prevProgress {
		job.Progress = prevProgress
	}
	if job.Progress > 100 {
		job.Progress = 100
	}

	// A terminal transition stamps the completion time exactly once
	if global.IsTerminalStatus(job.Status) && job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}

	snap := snapshot(job)
	s.mu.Unlock()

	s.publish(snap, message)
	return snap, nil
}

// Delete removes a job record
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return global.NewJobNotFound(id)
	}
	delete(s.jobs, id)
	return nil
}

// List returns job snapshots matching the filter, newest first
func (s *Store) List(filter global.JobFilter) []global.Job {
	s.mu.RLock()
	list := make([]global.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.ToolName != "" && job.ToolName != filter.ToolName {
			continue
		}
		list = append(list, snapshot(job))
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list
}

// Counts returns the number of jobs per status
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts
}

// Total returns the total number of stored jobs
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Subscribe registers an event channel. Every job mutation produces one
// event. The returned function cancels the subscription. Slow subscribers
// lose events rather than blocking job updates.
func (s *Store) Subscribe() (<-chan global.JobEvent, func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan global.JobEvent, 64)
	s.subscribers[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

// Sweep deletes terminal jobs whose completion time is older than the
// retention window. Non-terminal jobs are never deleted regardless of age.
// Returns the number of jobs removed.
func (s *Store) Sweep(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if !global.IsTerminalStatus(job.Status) {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs a periodic retention sweep until StopSweeper is called
func (s *Store) StartSweeper(interval, retention time.Duration) {
	s.sweepStop = make(chan struct{})
	s.sweepDone = make(chan struct{})

	go func() {
		defer close(s.sweepDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.sweepStop:
				return
			case <-ticker.C:
				if removed := s.Sweep(retention); removed > 0 && s.logger != nil {
					s.logger.Infof("Retention sweep removed %d job(s)", removed)
				}
			}
		}
	}()
}

// StopSweeper stops the periodic sweep and waits for it to exit
func (s *Store) StopSweeper() {
	if s.sweepStop == nil {
		return
	}
	close(s.sweepStop)
	<-s.sweepDone
	s.sweepStop = nil
}

// publish fans an event out to all subscribers without blocking
func (s *Store) publish(job global.Job, message string) {
	event := global.JobEvent{
		JobID:    job.ID,
		ToolName: job.ToolName,
		Status:   job.Status,
		Progress: job.Progress,
		Message:  message,
		Error:    job.Error,
	}
	if global.IsTerminalStatus(job.Status) {
		event.Terminal = true
		event.OutputFiles = job.OutputFiles
		event.DurationSec = job.Duration().Seconds()
	}

	s.subMu.Lock()
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	s.subMu.Unlock()
}

// legalTransition reports whether a status change is allowed by the job
// state machine. Remaining in the same status is always allowed.
func legalTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case global.JobStatusPending:
		return to == global.JobStatusRunning || to == global.JobStatusFailed || to == global.JobStatusCancelled
	case global.JobStatusRunning:
		return global.IsTerminalStatus(to)
	}
	return false
}

// snapshot returns a deep enough copy of a job for safe concurrent use
func snapshot(job *global.Job) global.Job {
	copied := *job
	if job.Parameters != nil {
		params := make(map[string]interface{}, len(job.Parameters))
		for k, v := range job.Parameters {
			params[k] = v
		}
		copied.Parameters = params
	}
	if job.OutputFiles != nil {
		copied.OutputFiles = append([]string(nil), job.OutputFiles...)
	}
	if job.ExitCode != nil {
		code := *job.ExitCode
		copied.ExitCode = &code
	}
	if job.StartedAt != nil {
		started := *job.StartedAt
		copied.StartedAt = &started
	}
	if job.CompletedAt != nil {
		completed := *job.CompletedAt
		copied.CompletedAt = &completed
	}
	return copied
}
