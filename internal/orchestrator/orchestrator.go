package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/modelcrucible/crucible/internal/baseline"
	"github.com/modelcrucible/crucible/internal/dataset"
	"github.com/modelcrucible/crucible/internal/executor"
	"github.com/modelcrucible/crucible/internal/job"
	"github.com/modelcrucible/crucible/internal/report"
	"github.com/modelcrucible/crucible/internal/result"
)

// EvalTask is one (test item, model config) pairing scheduled for
// independent execution.
type EvalTask struct {
	ID        string
	DatasetID string
	Item      dataset.TestItem
	Config    job.ModelConfig
}

func (t EvalTask) TaskID() string { return t.ID }

// ExecuteFunc runs one task against the external provider and returns the
// raw result with latency, token usage, cost and timestamp filled in.
type ExecuteFunc func(ctx context.Context, task EvalTask) (*result.RunResult, error)

// ScoreFunc judges one successful result against its test item.
type ScoreFunc func(ctx context.Context, item dataset.TestItem, res *result.RunResult) (result.ScoreResult, error)

// Deps are the collaborators an Engine composes. All are constructed once
// by the process entry point and passed in; the engine holds no globals.
type Deps struct {
	Jobs         *job.Manager
	Baselines    *baseline.Comparator
	Reports      *report.Generator
	Datasets     dataset.Provider
	Pool         *executor.ScoringWorkerPool
	ExecutorConf executor.Config
	Observers    []executor.Observer
	Logger       *slog.Logger
}

// Engine drives one evaluation job end to end: expand, execute, score,
// compare, report. Task-level failures are recovered into the report;
// structural failures mark the job failed and propagate.
type Engine struct {
	deps Deps
	log  *slog.Logger
}

func New(deps Deps) *Engine {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Reports == nil {
		deps.Reports = report.NewGenerator()
	}
	if deps.Pool == nil {
		deps.Pool = executor.NewScoringWorkerPool(0)
	}
	return &Engine{deps: deps, log: log}
}

// Run executes one evaluation job and returns its report. The returned
// report may be partial: individual task or scoring failures never abort
// the run, and a cancelled run still reports what completed.
func (e *Engine) Run(ctx context.Context, cfg job.Config, execFn ExecuteFunc, scoreFn ScoreFunc) (*result.EvalReport, error) {
	jobID := e.deps.Jobs.CreateJob(cfg)
	log := e.log.With("job", jobID)

	if err := e.deps.Jobs.UpdateJobStatus(jobID, job.StatusRunning, ""); err != nil {
		return nil, err
	}

	tasks, err := e.expand(cfg)
	if err != nil {
		return nil, e.fail(jobID, fmt.Errorf("expanding tasks: %w", err))
	}
	total := len(tasks)
	if err := e.deps.Jobs.UpdateProgress(jobID, job.ProgressUpdate{TotalTests: &total}); err != nil {
		return nil, e.fail(jobID, err)
	}
	log.Info("job expanded", "tasks", total,
		"datasets", len(cfg.DatasetIDs), "configs", len(cfg.ModelConfigs))

	exec := executor.New(e.executorConfig(cfg))
	exec.Subscribe(e.progressObserver(jobID))
	for _, o := range e.deps.Observers {
		exec.Subscribe(o)
	}

	results := exec.ExecuteTasks(ctx, tasks, func(ctx context.Context, t executor.Task) (*result.RunResult, error) {
		et := t.(EvalTask)
		res, err := execFn(ctx, et)
		if err != nil {
			return nil, err
		}
		res.TaskID = et.ID
		res.TestCaseID = et.Item.ID
		res.Config = et.Config.Name
		return res, nil
	})

	// completion order is whatever finished first; re-sort for stable
	// grouping and deterministic reports
	sort.Slice(results, func(i, k int) bool {
		return results[i].Task.TaskID() < results[k].Task.TaskID()
	})

	scores := e.score(ctx, jobID, results, scoreFn)
	summaries := e.groupSummaries(cfg, results)
	metrics := report.CalculateMetrics(scores, summaries)

	var regressions []result.Regression
	if cfg.CompareBaseline {
		cmp, err := e.deps.Baselines.CompareToBaseline(metrics, jobID, cfg.BaselineID)
		if err != nil {
			return nil, e.fail(jobID, fmt.Errorf("comparing to baseline: %w", err))
		}
		regressions = cmp.Regressions
		log.Info("baseline comparison done",
			"baseline", cmp.BaselineID,
			"regressions", len(cmp.Regressions),
			"improvements", len(cmp.Improvements))
	}

	status := job.StatusCompleted
	if ctx.Err() != nil {
		status = job.StatusCancelled
	}

	em := exec.GetMetrics()
	rep := e.deps.Reports.Generate(report.Input{
		JobID:            jobID,
		RunSummaries:     summaries,
		ScoringResults:   scores,
		Regressions:      regressions,
		ExecutionMetrics: &em,
		Status:           string(status),
	})

	if err := e.deps.Jobs.UpdateJobStatus(jobID, status, ""); err != nil {
		return nil, err
	}
	log.Info("job finished", "status", status,
		"passed", rep.Summary.Passed, "failed", rep.Summary.Failed)
	return rep, nil
}

// expand produces the cross product of test items and model configs, in
// config-major then dataset then item order.
func (e *Engine) expand(cfg job.Config) ([]executor.Task, error) {
	if len(cfg.DatasetIDs) == 0 {
		return nil, fmt.Errorf("no datasets configured")
	}
	if len(cfg.ModelConfigs) == 0 {
		return nil, fmt.Errorf("no model configs configured")
	}

	var tasks []executor.Task
	for _, mc := range cfg.ModelConfigs {
		for _, dsID := range cfg.DatasetIDs {
			ds, err := e.deps.Datasets.Get(dsID)
			if err != nil {
				return nil, err
			}
			for _, item := range ds.Items {
				tasks = append(tasks, EvalTask{
					ID:        mc.Name + "/" + item.ID,
					DatasetID: ds.ID,
					Item:      item,
					Config:    mc,
				})
			}
		}
	}
	return tasks, nil
}

func (e *Engine) executorConfig(cfg job.Config) executor.Config {
	ec := e.deps.ExecutorConf
	if cfg.Concurrency > 0 {
		ec.Concurrency = cfg.Concurrency
	}
	if ec.Concurrency < 1 {
		ec.Concurrency = 1
	}
	return ec
}

// progressObserver feeds executor lifecycle events into the job's
// progress record.
func (e *Engine) progressObserver(jobID string) executor.Observer {
	var completed, failed atomic.Int64
	return executor.ObserverFunc(func(ev executor.Event) {
		switch ev.Type {
		case executor.EventTaskComplete:
			done := int(completed.Add(1))
			e.deps.Jobs.UpdateProgress(jobID, job.ProgressUpdate{
				CompletedTests: &done,
				CurrentTest:    &ev.TaskID,
			})
		case executor.EventTaskError:
			bad := int(failed.Add(1))
			msg := ev.TaskID
			if ev.Err != nil {
				msg = fmt.Sprintf("%s: %s", ev.TaskID, ev.Err.Error())
			}
			e.deps.Jobs.UpdateProgress(jobID, job.ProgressUpdate{
				FailedTests: &bad,
				Errors:      []string{msg},
			})
		case executor.EventThrottle:
			e.log.Debug("execution throttled",
				"job", jobID, "wait", ev.WaitTime, "current", ev.Current, "limit", ev.Limit)
		}
	})
}

// score judges every successful result on the scoring pool. Scoring
// failures are recorded against the job and drop the score, nothing more.
func (e *Engine) score(ctx context.Context, jobID string, results []executor.ExecutionResult, scoreFn ScoreFunc) []result.ScoreResult {
	type scored struct {
		res result.ScoreResult
		ok  bool
	}

	var successes []executor.ExecutionResult
	for _, r := range results {
		if r.Err == nil && r.Result != nil {
			successes = append(successes, r)
		}
	}

	out := make([]scored, len(successes))
	var mu sync.Mutex
	var scoringErrs []string

	_ = e.deps.Pool.Run(ctx, len(successes), func(ctx context.Context, i int) error {
		r := successes[i]
		et := r.Task.(EvalTask)
		sc, err := scoreFn(ctx, et.Item, r.Result)
		if err != nil {
			evalErr := executor.NewScoringError(err)
			mu.Lock()
			scoringErrs = append(scoringErrs, fmt.Sprintf("%s: %s", et.ID, evalErr.Error()))
			mu.Unlock()
			return nil
		}
		sc.TestCaseID = et.Item.ID
		sc.Config = et.Config.Name
		out[i] = scored{res: sc, ok: true}
		return nil
	})

	if len(scoringErrs) > 0 {
		e.deps.Jobs.UpdateProgress(jobID, job.ProgressUpdate{Errors: scoringErrs})
	}

	scores := make([]result.ScoreResult, 0, len(out))
	for _, s := range out {
		if s.ok {
			scores = append(scores, s.res)
		}
	}
	return scores
}

// groupSummaries buckets successful results per model config, in config
// declaration order.
func (e *Engine) groupSummaries(cfg job.Config, results []executor.ExecutionResult) []result.RunSummary {
	index := make(map[string]int, len(cfg.ModelConfigs))
	summaries := make([]result.RunSummary, len(cfg.ModelConfigs))
	for i, mc := range cfg.ModelConfigs {
		index[mc.Name] = i
		summaries[i] = result.RunSummary{Config: mc.Name}
	}
	for _, r := range results {
		if r.Err != nil || r.Result == nil {
			continue
		}
		i, ok := index[r.Result.Config]
		if !ok {
			continue
		}
		summaries[i].Results = append(summaries[i].Results, *r.Result)
		summaries[i].TotalCostUSD += r.Result.CostUSD
	}
	return summaries
}

func (e *Engine) fail(jobID string, err error) error {
	if uerr := e.deps.Jobs.UpdateJobStatus(jobID, job.StatusFailed, err.Error()); uerr != nil {
		e.log.Error("recording job failure", "job", jobID, "error", uerr)
	}
	return err
}
