package result

import "time"

// Severity classifies how bad a regression is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// RunResult is the success payload of one execution-function call.
type RunResult struct {
	TaskID       string    `json:"task_id"`
	TestCaseID   string    `json:"test_case_id"`
	Config       string    `json:"config"`
	Output       string    `json:"output,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Timestamp    time.Time `json:"timestamp"`
}

// ScoreResult is the verdict of the scoring function for one test case.
type ScoreResult struct {
	TestCaseID string  `json:"test_case_id"`
	Config     string  `json:"config"`
	Passed     bool    `json:"passed"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason,omitempty"`
}

// RunSummary groups the raw results produced under one model configuration.
type RunSummary struct {
	Config       string      `json:"config"`
	Results      []RunResult `json:"results"`
	TotalCostUSD float64     `json:"total_cost_usd"`
}

// MeanLatencyMs is the mean per-result latency of this run.
func (r *RunSummary) MeanLatencyMs() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	var sum float64
	for _, res := range r.Results {
		sum += float64(res.LatencyMs)
	}
	return sum / float64(len(r.Results))
}

// CategoryMetrics is the Metrics shape computed over a single category.
type CategoryMetrics struct {
	Category     string  `json:"category"`
	TotalTests   int     `json:"total_tests"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	Accuracy     float64 `json:"accuracy"`
	PassRate     float64 `json:"pass_rate"`
	AvgScore     float64 `json:"avg_score"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// Metrics aggregates scoring and run data for a whole job execution.
// Categories preserves first-seen insertion order so exports are
// deterministic.
type Metrics struct {
	TotalTests   int               `json:"total_tests"`
	Passed       int               `json:"passed"`
	Failed       int               `json:"failed"`
	Accuracy     float64           `json:"accuracy"`
	PassRate     float64           `json:"pass_rate"`
	AvgScore     float64           `json:"avg_score"`
	AvgLatencyMs float64           `json:"avg_latency_ms"`
	TotalCostUSD float64           `json:"total_cost_usd"`
	Categories   []CategoryMetrics `json:"categories,omitempty"`
}

// Category looks up a category breakdown by name.
func (m *Metrics) Category(name string) (CategoryMetrics, bool) {
	for _, c := range m.Categories {
		if c.Category == name {
			return c, true
		}
	}
	return CategoryMetrics{}, false
}

// Regression is a metric that moved in the unfavorable direction past the
// minor threshold.
type Regression struct {
	Metric         string   `json:"metric"`
	Category       string   `json:"category"`
	BaselineValue  float64  `json:"baseline_value"`
	CurrentValue   float64  `json:"current_value"`
	PercentChange  float64  `json:"percent_change"`
	AbsoluteChange float64  `json:"absolute_change"`
	Severity       Severity `json:"severity"`
}

// Improvement is a favorable non-zero change. Severity is a structural
// placeholder fixed to minor; magnitude is not classified further.
type Improvement struct {
	Metric         string   `json:"metric"`
	Category       string   `json:"category"`
	BaselineValue  float64  `json:"baseline_value"`
	CurrentValue   float64  `json:"current_value"`
	PercentChange  float64  `json:"percent_change"`
	AbsoluteChange float64  `json:"absolute_change"`
	Severity       Severity `json:"severity"`
}

// Recommendation is an actionable finding derived from the metrics.
type Recommendation struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// ExecutionMetrics describes how efficiently the executor ran.
type ExecutionMetrics struct {
	ParallelEfficiency float64 `json:"parallel_efficiency"`
	WorkerUtilization  float64 `json:"worker_utilization"`
	ThrottleTimeMs     int64   `json:"throttle_time_ms"`
	WallClockMs        int64   `json:"wall_clock_ms"`
	TaskCount          int     `json:"task_count"`
}

// ReportSummary is the compact top of an EvalReport.
type ReportSummary struct {
	TotalTests   int     `json:"total_tests"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	Accuracy     float64 `json:"accuracy"`
	AvgScore     float64 `json:"avg_score"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	Status       string  `json:"status"`
}

// EvalReport is the terminal artifact of one job execution. Immutable once
// produced.
type EvalReport struct {
	JobID            string            `json:"job_id"`
	Summary          ReportSummary     `json:"summary"`
	RunSummaries     []RunSummary      `json:"run_summaries,omitempty"`
	ScoringResults   []ScoreResult     `json:"scoring_results,omitempty"`
	Metrics          Metrics           `json:"metrics"`
	Regressions      []Regression      `json:"regressions"`
	Recommendations  []Recommendation  `json:"recommendations"`
	ExecutionMetrics *ExecutionMetrics `json:"execution_metrics,omitempty"`
	GeneratedAt      time.Time         `json:"generated_at"`
}
