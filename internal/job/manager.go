package job

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns job records, status transitions, and progress counters.
// Safe for concurrent use.
type Manager struct {
	mu                sync.Mutex
	jobs              map[string]*Job
	maxConcurrentJobs int
	now               func() time.Time
}

// NewManager creates a Manager allowing at most maxConcurrentJobs jobs in
// the running state at once. A non-positive limit means 1.
func NewManager(maxConcurrentJobs int) *Manager {
	if maxConcurrentJobs < 1 {
		maxConcurrentJobs = 1
	}
	return &Manager{
		jobs:              make(map[string]*Job),
		maxConcurrentJobs: maxConcurrentJobs,
		now:               time.Now,
	}
}

// CreateJob registers a new pending job and returns its id. totalTests
// starts at zero; the caller supplies it once tasks are expanded.
func (m *Manager) CreateJob(cfg Config) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	j := &Job{
		ID:        uuid.NewString(),
		Config:    cfg,
		Status:    StatusPending,
		Progress:  Progress{UpdatedAt: now},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.jobs[j.ID] = j
	return j.ID
}

// GetJob returns a copy of the job record.
func (m *Manager) GetJob(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *j, nil
}

// UpdateJobStatus moves the job along the state machine. On transition to
// failed, errMsg is recorded on the job.
func (m *Manager) UpdateJobStatus(id string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !transitionAllowed(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}
	j.Status = status
	j.UpdatedAt = m.now()
	if status == StatusRunning {
		j.StartedAt = j.UpdatedAt
	}
	if status == StatusFailed {
		j.Error = errMsg
	}
	return nil
}

// UpdateProgress merges a partial update into the job's progress record and
// recomputes the derived percentage and ETA.
func (m *Manager) UpdateProgress(id string, u ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p := &j.Progress
	if u.TotalTests != nil {
		p.TotalTests = *u.TotalTests
	}
	if u.CompletedTests != nil {
		p.CompletedTests = *u.CompletedTests
	}
	if u.FailedTests != nil {
		p.FailedTests = *u.FailedTests
	}
	if u.CurrentTest != nil {
		p.CurrentTest = *u.CurrentTest
	}
	p.Errors = append(p.Errors, u.Errors...)

	if p.TotalTests > 0 {
		p.Progress = int(math.Round(float64(p.CompletedTests) / float64(p.TotalTests) * 100))
	} else {
		p.Progress = 0
	}

	p.ETA = nil
	if j.Status == StatusRunning && p.CompletedTests > 0 && !j.StartedAt.IsZero() {
		elapsed := m.now().Sub(j.StartedAt)
		remaining := float64(elapsed) / float64(p.CompletedTests) * float64(p.TotalTests-p.CompletedTests)
		if remaining >= 0 {
			etaMs := int64(remaining / float64(time.Millisecond))
			p.ETA = &etaMs
		}
	}

	p.UpdatedAt = m.now()
	j.UpdatedAt = p.UpdatedAt
	return nil
}

// CancelJob cancels a pending or running job. Cancelling a terminal job is
// an error.
func (m *Manager) CancelJob(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalState, id, j.Status)
	}
	j.Status = StatusCancelled
	j.UpdatedAt = m.now()
	return nil
}

// CanStartJob reports whether another job may enter the running state.
func (m *Manager) CanStartJob() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	running := 0
	for _, j := range m.jobs {
		if j.Status == StatusRunning {
			running++
		}
	}
	return running < m.maxConcurrentJobs
}

// GetNextPendingJob returns the oldest pending job by creation time, or
// false if none is pending.
func (m *Manager) GetNextPendingJob() (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*Job
	for _, j := range m.jobs {
		if j.Status == StatusPending {
			pending = append(pending, j)
		}
	}
	if len(pending) == 0 {
		return Job{}, false
	}
	sort.Slice(pending, func(i, k int) bool {
		return pending[i].CreatedAt.Before(pending[k].CreatedAt)
	})
	return *pending[0], true
}

// CleanupOldJobs deletes terminal jobs whose last update predates the
// retention cutoff. Returns the number removed.
func (m *Manager) CleanupOldJobs(retentionDays int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().AddDate(0, 0, -retentionDays)
	removed := 0
	for id, j := range m.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}
