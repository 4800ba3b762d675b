package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcrucible/crucible/internal/report"
	"github.com/modelcrucible/crucible/internal/result"
)

func sampleScores() []result.ScoreResult {
	return []result.ScoreResult{
		{TestCaseID: "math-1", Config: "a", Passed: true, Score: 1},
		{TestCaseID: "math-2", Config: "a", Passed: false, Score: 0.2},
		{TestCaseID: "code-1", Config: "a", Passed: true, Score: 0.9},
		{TestCaseID: "nohyphen", Config: "a", Passed: true, Score: 0.8},
	}
}

func sampleRuns() []result.RunSummary {
	return []result.RunSummary{
		{
			Config: "a",
			Results: []result.RunResult{
				{TestCaseID: "math-1", LatencyMs: 100, CostUSD: 0.01},
				{TestCaseID: "math-2", LatencyMs: 300, CostUSD: 0.02},
				{TestCaseID: "code-1", LatencyMs: 200, CostUSD: 0.03},
				{TestCaseID: "nohyphen", LatencyMs: 400, CostUSD: 0.04},
			},
			TotalCostUSD: 0.1,
		},
		{
			Config: "b",
			Results: []result.RunResult{
				{TestCaseID: "math-1", LatencyMs: 500, CostUSD: 0.05},
			},
			TotalCostUSD: 0.05,
		},
	}
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, "math", report.CategoryOf("math-123"))
	assert.Equal(t, "general", report.CategoryOf("nohyphen"))
	assert.Equal(t, "general", report.CategoryOf("-leading"))
	assert.Equal(t, "a", report.CategoryOf("a-b-c"))
}

func TestCalculateMetricsEmpty(t *testing.T) {
	m := report.CalculateMetrics(nil, nil)
	assert.Equal(t, 0, m.TotalTests)
	assert.Zero(t, m.Accuracy)
	assert.Zero(t, m.PassRate)
	assert.Zero(t, m.AvgScore)
	assert.Zero(t, m.AvgLatencyMs)
	assert.Empty(t, m.Categories)
}

func TestCalculateMetrics(t *testing.T) {
	m := report.CalculateMetrics(sampleScores(), sampleRuns())

	assert.Equal(t, 4, m.TotalTests)
	assert.Equal(t, 3, m.Passed)
	assert.Equal(t, 1, m.Failed)
	assert.InDelta(t, 75, m.Accuracy, 0.001)
	assert.Equal(t, m.Accuracy, m.PassRate)
	assert.InDelta(t, 0.725, m.AvgScore, 0.001)
	// mean of run means: (250 + 500) / 2
	assert.InDelta(t, 375, m.AvgLatencyMs, 0.001)
	assert.InDelta(t, 0.15, m.TotalCostUSD, 0.0001)
}

func TestCategoryBreakdownPartition(t *testing.T) {
	m := report.CalculateMetrics(sampleScores(), sampleRuns())

	require.Len(t, m.Categories, 3)
	// first-seen order
	assert.Equal(t, "math", m.Categories[0].Category)
	assert.Equal(t, "code", m.Categories[1].Category)
	assert.Equal(t, "general", m.Categories[2].Category)

	// no item counted twice: category totals partition the result set
	sum := 0
	for _, c := range m.Categories {
		sum += c.TotalTests
	}
	assert.Equal(t, m.TotalTests, sum)

	math0, ok := m.Category("math")
	require.True(t, ok)
	assert.Equal(t, 2, math0.TotalTests)
	assert.Equal(t, 1, math0.Passed)
	assert.InDelta(t, 50, math0.Accuracy, 0.001)
	assert.InDelta(t, 0.6, math0.AvgScore, 0.001)
	// run a mean: (100+300)/2 = 200, run b mean: 500 -> (200+500)/2
	assert.InDelta(t, 350, math0.AvgLatencyMs, 0.001)
	assert.InDelta(t, 0.08, math0.TotalCostUSD, 0.0001)

	_, ok = m.Category("missing")
	assert.False(t, ok)
}

func TestGenerateReport(t *testing.T) {
	g := report.NewGenerator()
	r := g.Generate(report.Input{
		JobID:          "job-1",
		RunSummaries:   sampleRuns(),
		ScoringResults: sampleScores(),
		Status:         "completed",
	})

	assert.Equal(t, "job-1", r.JobID)
	assert.Equal(t, 4, r.Summary.TotalTests)
	assert.Equal(t, "completed", r.Summary.Status)
	assert.NotNil(t, r.Regressions)
	assert.Empty(t, r.Regressions)
	assert.NotEmpty(t, r.Recommendations)
	assert.False(t, r.GeneratedAt.IsZero())
}

func TestRecommendationRules(t *testing.T) {
	m := result.Metrics{
		TotalTests:   10,
		Passed:       5,
		Accuracy:     50,
		PassRate:     50,
		AvgLatencyMs: 6000,
		TotalCostUSD: 25,
		Categories: []result.CategoryMetrics{
			{Category: "math", TotalTests: 5, Accuracy: 40},
		},
	}
	regs := []result.Regression{
		{Metric: "accuracy", Category: "overall", Severity: result.SeverityCritical},
	}
	em := &result.ExecutionMetrics{ParallelEfficiency: 0.3}

	recs := report.GenerateRecommendations(m, regs, em)

	severities := map[string]int{}
	for _, r := range recs {
		severities[r.Severity]++
	}
	assert.Equal(t, 2, severities["high"], "critical regression + low accuracy")
	assert.Equal(t, 3, severities["medium"], "latency + cost + weak category")
	assert.Equal(t, 1, severities["low"], "parallel efficiency")
}

func TestRecommendationAllClear(t *testing.T) {
	m := result.Metrics{
		TotalTests:   10,
		Passed:       10,
		Accuracy:     100,
		PassRate:     100,
		AvgScore:     0.95,
		AvgLatencyMs: 500,
		TotalCostUSD: 0.5,
	}
	recs := report.GenerateRecommendations(m, nil, nil)
	require.Len(t, recs, 1)
	assert.Equal(t, "info", recs[0].Severity)
}

func TestNonCriticalRegressionNoHighRec(t *testing.T) {
	m := result.Metrics{TotalTests: 10, Passed: 10, Accuracy: 100, PassRate: 100}
	regs := []result.Regression{
		{Metric: "avgLatency", Category: "overall", Severity: result.SeverityMinor},
	}
	recs := report.GenerateRecommendations(m, regs, nil)
	for _, r := range recs {
		assert.NotEqual(t, "high", r.Severity)
	}
}
