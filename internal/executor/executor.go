package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcrucible/crucible/internal/result"
)

// Task is one schedulable unit of work. The executor needs nothing beyond
// a stable identifier; callers supply their own concrete task types.
type Task interface {
	TaskID() string
}

// ExecuteFunc runs one task against the external provider. On success it
// must return a result carrying latency, token usage, cost and timestamp.
type ExecuteFunc func(ctx context.Context, task Task) (*result.RunResult, error)

// ExecutionResult captures the outcome of one task. Exactly one of Result
// and Err is set.
type ExecutionResult struct {
	Task    Task
	Result  *result.RunResult
	Err     *EvalError
	Elapsed time.Duration
}

// Config bounds the executor. Window defaults to one minute; it is
// shortened only by tests. Zero rate limits disable the corresponding
// check.
type Config struct {
	Concurrency       int
	RequestsPerMinute int
	TokensPerMinute   int
	Window            time.Duration
}

// Executor drives concurrency-bounded parallel execution of independent
// tasks under a rolling-window rate limit. One task's failure never aborts
// the batch.
type Executor struct {
	concurrency int
	limiter     *rateLimiter

	mu        sync.Mutex
	observers []Observer

	busyNs     atomic.Int64
	throttleNs atomic.Int64
	wallNs     atomic.Int64
	taskCount  atomic.Int64
}

func New(cfg Config) *Executor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Executor{
		concurrency: cfg.Concurrency,
		limiter:     newRateLimiter(cfg.RequestsPerMinute, cfg.TokensPerMinute, cfg.Window),
	}
}

// Subscribe registers an observer for lifecycle events.
func (e *Executor) Subscribe(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Executor) emit(ev Event) {
	e.mu.Lock()
	observers := make([]Observer, len(e.observers))
	copy(observers, e.observers)
	e.mu.Unlock()
	for _, o := range observers {
		o.HandleEvent(ev)
	}
}

type runCounters struct {
	total     int
	completed atomic.Int64
	failed    atomic.Int64
}

// ExecuteTasks drains the task list, keeping at most Concurrency tasks in
// flight. Results arrive in completion order, not submission order.
func (e *Executor) ExecuteTasks(ctx context.Context, tasks []Task, fn ExecuteFunc) []ExecutionResult {
	e.resetMetrics(len(tasks))
	start := time.Now()
	e.emit(Event{Type: EventStart, TotalTasks: len(tasks)})

	counters := &runCounters{total: len(tasks)}
	out := e.runBatch(ctx, tasks, fn, counters)

	wall := time.Since(start)
	e.wallNs.Store(int64(wall))
	e.emit(Event{
		Type:       EventComplete,
		TotalTasks: len(tasks),
		Completed:  int(counters.completed.Load()),
		Failed:     int(counters.failed.Load()),
		Duration:   wall,
	})
	return out
}

// StreamConfig bounds memory for very large task counts: results are
// handed to OnBatch in batches of at most BatchSize instead of being
// accumulated.
type StreamConfig struct {
	BatchSize int
	OnBatch   func(batch []ExecutionResult) error
}

// ExecuteTasksStreaming is functionally equivalent to ExecuteTasks but
// processes the task list in bounded-size batches.
func (e *Executor) ExecuteTasksStreaming(ctx context.Context, tasks []Task, fn ExecuteFunc, cfg StreamConfig) error {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	e.resetMetrics(len(tasks))
	start := time.Now()
	e.emit(Event{Type: EventStart, TotalTasks: len(tasks)})

	counters := &runCounters{total: len(tasks)}
	for begin := 0; begin < len(tasks); begin += cfg.BatchSize {
		end := begin + cfg.BatchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := e.runBatch(ctx, tasks[begin:end], fn, counters)
		if cfg.OnBatch != nil {
			if err := cfg.OnBatch(batch); err != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	wall := time.Since(start)
	e.wallNs.Store(int64(wall))
	e.emit(Event{
		Type:       EventComplete,
		TotalTasks: len(tasks),
		Completed:  int(counters.completed.Load()),
		Failed:     int(counters.failed.Load()),
		Duration:   wall,
	})
	return nil
}

func (e *Executor) runBatch(ctx context.Context, tasks []Task, fn ExecuteFunc, counters *runCounters) []ExecutionResult {
	sem := make(chan struct{}, e.concurrency)
	results := make(chan ExecutionResult, len(tasks))
	var wg sync.WaitGroup

admission:
	for _, t := range tasks {
		select {
		case <-ctx.Done():
			break admission
		default:
		}

		// wait for a free slot first so completed work has already been
		// counted against the window when the limiter is consulted
		sem <- struct{}{}

		if wait := e.limiter.waitTime(time.Now()); wait > 0 {
			current, limit := e.limiter.snapshot()
			e.emit(Event{
				Type:     EventThrottle,
				Reason:   "rate limit window saturated",
				WaitTime: wait,
				Current:  current,
				Limit:    limit,
			})
			e.throttleNs.Add(int64(wait))
			if !sleepCtx(ctx, wait) {
				<-sem
				break admission
			}
			e.limiter.reset(time.Now())
		}

		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			defer func() { <-sem }()

			e.emit(Event{Type: EventTaskStart, TaskID: t.TaskID()})
			started := time.Now()
			res, err := fn(ctx, t)
			elapsed := time.Since(started)
			e.busyNs.Add(int64(elapsed))

			if err != nil {
				counters.failed.Add(1)
				evalErr := ClassifyExecutionError(err)
				results <- ExecutionResult{Task: t, Err: evalErr, Elapsed: elapsed}
				e.emit(Event{
					Type:          EventTaskError,
					TaskID:        t.TaskID(),
					Err:           evalErr,
					ExecutionTime: elapsed,
				})
				return
			}

			tokens := 0
			if res != nil {
				tokens = res.InputTokens + res.OutputTokens
			}
			e.limiter.consume(1, tokens)
			done := counters.completed.Add(1)
			results <- ExecutionResult{Task: t, Result: res, Elapsed: elapsed}

			progress := 0.0
			if counters.total > 0 {
				progress = float64(done+counters.failed.Load()) / float64(counters.total) * 100
			}
			e.emit(Event{
				Type:          EventTaskComplete,
				TaskID:        t.TaskID(),
				ExecutionTime: elapsed,
				Progress:      progress,
			})
		}(t)
	}

	wg.Wait()
	close(results)

	out := make([]ExecutionResult, 0, len(tasks))
	for r := range results {
		out = append(out, r)
	}
	return out
}

func (e *Executor) resetMetrics(taskCount int) {
	e.busyNs.Store(0)
	e.throttleNs.Store(0)
	e.wallNs.Store(0)
	e.taskCount.Store(int64(taskCount))
}

// GetMetrics reports efficiency numbers for the most recent run.
func (e *Executor) GetMetrics() result.ExecutionMetrics {
	busy := time.Duration(e.busyNs.Load())
	wall := time.Duration(e.wallNs.Load())

	m := result.ExecutionMetrics{
		ThrottleTimeMs: time.Duration(e.throttleNs.Load()).Milliseconds(),
		WallClockMs:    wall.Milliseconds(),
		TaskCount:      int(e.taskCount.Load()),
	}
	if wall > 0 && e.concurrency > 0 {
		ideal := float64(busy) / float64(e.concurrency)
		m.ParallelEfficiency = ideal / float64(wall)
		if m.ParallelEfficiency > 1 {
			m.ParallelEfficiency = 1
		}
		m.WorkerUtilization = float64(busy) / (float64(wall) * float64(e.concurrency))
	}
	return m
}

// sleepCtx sleeps for d unless the context is cancelled first. Reports
// whether the full sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
