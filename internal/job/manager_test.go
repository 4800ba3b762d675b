package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestStateMachine(t *testing.T) {
	all := []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusRunning}:   true,
		{StatusPending, StatusCancelled}: true,
		{StatusRunning, StatusCompleted}: true,
		{StatusRunning, StatusFailed}:    true,
		{StatusRunning, StatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			m := NewManager(1)
			id := m.CreateJob(Config{})
			// walk the job into the from state
			switch from {
			case StatusPending:
			case StatusRunning:
				require.NoError(t, m.UpdateJobStatus(id, StatusRunning, ""))
			case StatusCompleted, StatusFailed:
				require.NoError(t, m.UpdateJobStatus(id, StatusRunning, ""))
				require.NoError(t, m.UpdateJobStatus(id, from, "boom"))
			case StatusCancelled:
				require.NoError(t, m.UpdateJobStatus(id, StatusCancelled, ""))
			}

			err := m.UpdateJobStatus(id, to, "x")
			if allowed[[2]Status{from, to}] {
				assert.NoError(t, err, "%s -> %s should be allowed", from, to)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestFailedRecordsError(t *testing.T) {
	m := NewManager(1)
	id := m.CreateJob(Config{})
	require.NoError(t, m.UpdateJobStatus(id, StatusRunning, ""))
	require.NoError(t, m.UpdateJobStatus(id, StatusFailed, "provider exploded"))

	j, err := m.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, "provider exploded", j.Error)
}

func TestUpdateStatusUnknownJob(t *testing.T) {
	m := NewManager(1)
	err := m.UpdateJobStatus("nope", StatusRunning, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProgressPercentage(t *testing.T) {
	m := NewManager(1)
	id := m.CreateJob(Config{})

	// total unknown: progress stays 0
	require.NoError(t, m.UpdateProgress(id, ProgressUpdate{CompletedTests: intp(3)}))
	j, _ := m.GetJob(id)
	assert.Equal(t, 0, j.Progress.Progress)

	require.NoError(t, m.UpdateProgress(id, ProgressUpdate{TotalTests: intp(7), CompletedTests: intp(3)}))
	j, _ = m.GetJob(id)
	assert.Equal(t, 43, j.Progress.Progress) // round(3/7*100)

	require.NoError(t, m.UpdateProgress(id, ProgressUpdate{CompletedTests: intp(7)}))
	j, _ = m.GetJob(id)
	assert.Equal(t, 100, j.Progress.Progress)
}

func TestProgressMergeAndErrors(t *testing.T) {
	m := NewManager(1)
	id := m.CreateJob(Config{})
	cur := "case-1"
	require.NoError(t, m.UpdateProgress(id, ProgressUpdate{
		TotalTests:  intp(10),
		CurrentTest: &cur,
		Errors:      []string{"first"},
	}))
	require.NoError(t, m.UpdateProgress(id, ProgressUpdate{
		FailedTests: intp(1),
		Errors:      []string{"second"},
	}))

	j, _ := m.GetJob(id)
	assert.Equal(t, 10, j.Progress.TotalTests)
	assert.Equal(t, "case-1", j.Progress.CurrentTest)
	assert.Equal(t, 1, j.Progress.FailedTests)
	assert.Equal(t, []string{"first", "second"}, j.Progress.Errors)
}

func TestProgressETA(t *testing.T) {
	m := NewManager(1)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	id := m.CreateJob(Config{})
	require.NoError(t, m.UpdateJobStatus(id, StatusRunning, ""))

	now = base.Add(10 * time.Second)
	require.NoError(t, m.UpdateProgress(id, ProgressUpdate{
		TotalTests:     intp(10),
		CompletedTests: intp(5),
	}))

	j, _ := m.GetJob(id)
	require.NotNil(t, j.Progress.ETA)
	// 10s elapsed / 5 done * 5 remaining = 10s
	assert.Equal(t, int64(10000), *j.Progress.ETA)
}

func TestCancelJob(t *testing.T) {
	m := NewManager(1)

	pending := m.CreateJob(Config{})
	require.NoError(t, m.CancelJob(pending))
	j, _ := m.GetJob(pending)
	assert.Equal(t, StatusCancelled, j.Status)

	running := m.CreateJob(Config{})
	require.NoError(t, m.UpdateJobStatus(running, StatusRunning, ""))
	require.NoError(t, m.CancelJob(running))

	done := m.CreateJob(Config{})
	require.NoError(t, m.UpdateJobStatus(done, StatusRunning, ""))
	require.NoError(t, m.UpdateJobStatus(done, StatusCompleted, ""))
	err := m.CancelJob(done)
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestCanStartJob(t *testing.T) {
	m := NewManager(2)
	assert.True(t, m.CanStartJob())

	a := m.CreateJob(Config{})
	b := m.CreateJob(Config{})
	require.NoError(t, m.UpdateJobStatus(a, StatusRunning, ""))
	assert.True(t, m.CanStartJob())
	require.NoError(t, m.UpdateJobStatus(b, StatusRunning, ""))
	assert.False(t, m.CanStartJob())

	require.NoError(t, m.UpdateJobStatus(a, StatusCompleted, ""))
	assert.True(t, m.CanStartJob())
}

func TestGetNextPendingJobFIFO(t *testing.T) {
	m := NewManager(1)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	first := m.CreateJob(Config{})
	now = now.Add(time.Second)
	second := m.CreateJob(Config{})

	next, ok := m.GetNextPendingJob()
	require.True(t, ok)
	assert.Equal(t, first, next.ID)

	require.NoError(t, m.UpdateJobStatus(first, StatusRunning, ""))
	next, ok = m.GetNextPendingJob()
	require.True(t, ok)
	assert.Equal(t, second, next.ID)

	require.NoError(t, m.CancelJob(second))
	_, ok = m.GetNextPendingJob()
	assert.False(t, ok)
}

func TestCleanupOldJobs(t *testing.T) {
	m := NewManager(1)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	old := m.CreateJob(Config{})
	require.NoError(t, m.UpdateJobStatus(old, StatusCancelled, ""))
	stillPending := m.CreateJob(Config{})

	now = base.AddDate(0, 0, 8)
	fresh := m.CreateJob(Config{})
	require.NoError(t, m.UpdateJobStatus(fresh, StatusRunning, ""))
	require.NoError(t, m.UpdateJobStatus(fresh, StatusCompleted, ""))

	removed := m.CleanupOldJobs(7)
	assert.Equal(t, 1, removed)

	_, err := m.GetJob(old)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetJob(stillPending)
	assert.NoError(t, err) // non-terminal jobs are never cleaned up
	_, err = m.GetJob(fresh)
	assert.NoError(t, err)
}
