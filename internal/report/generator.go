package report

import (
	"math"
	"strings"
	"time"

	"github.com/modelcrucible/crucible/internal/result"
)

// Input is everything the generator needs to synthesize a report.
type Input struct {
	JobID            string
	RunSummaries     []result.RunSummary
	ScoringResults   []result.ScoreResult
	Regressions      []result.Regression
	ExecutionMetrics *result.ExecutionMetrics
	Status           string
}

// Generator aggregates raw results and scores into metrics, derives
// recommendations, and assembles the final report artifact.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// Generate produces the immutable report for one job execution.
func (g *Generator) Generate(in Input) *result.EvalReport {
	metrics := CalculateMetrics(in.ScoringResults, in.RunSummaries)

	regressions := in.Regressions
	if regressions == nil {
		regressions = []result.Regression{}
	}

	return &result.EvalReport{
		JobID: in.JobID,
		Summary: result.ReportSummary{
			TotalTests:   metrics.TotalTests,
			Passed:       metrics.Passed,
			Failed:       metrics.Failed,
			Accuracy:     metrics.Accuracy,
			AvgScore:     metrics.AvgScore,
			TotalCostUSD: metrics.TotalCostUSD,
			Status:       in.Status,
		},
		RunSummaries:     in.RunSummaries,
		ScoringResults:   in.ScoringResults,
		Metrics:          metrics,
		Regressions:      regressions,
		Recommendations:  GenerateRecommendations(metrics, regressions, in.ExecutionMetrics),
		ExecutionMetrics: in.ExecutionMetrics,
		GeneratedAt:      time.Now().UTC(),
	}
}

// CategoryOf derives the category from a test-case id: the token before
// the first hyphen, falling back to "general". This is a heuristic with no
// closed category set.
func CategoryOf(testCaseID string) string {
	if i := strings.Index(testCaseID, "-"); i > 0 {
		return testCaseID[:i]
	}
	return "general"
}

// CalculateMetrics aggregates scoring results and run summaries. All
// ratios are zero when their denominator is zero; there is no division by
// zero for empty input.
func CalculateMetrics(scores []result.ScoreResult, runs []result.RunSummary) result.Metrics {
	m := result.Metrics{
		TotalTests: len(scores),
	}

	var scoreSum float64
	for _, s := range scores {
		if s.Passed {
			m.Passed++
		} else {
			m.Failed++
		}
		scoreSum += s.Score
	}
	if m.TotalTests > 0 {
		m.Accuracy = float64(m.Passed) / float64(m.TotalTests) * 100
		m.PassRate = m.Accuracy
		m.AvgScore = scoreSum / float64(m.TotalTests)
	}

	// avgLatency is the mean, across runs, of each run's own mean latency
	var latencySum float64
	var latencyRuns int
	for i := range runs {
		r := &runs[i]
		if len(r.Results) > 0 {
			latencySum += r.MeanLatencyMs()
			latencyRuns++
		}
		m.TotalCostUSD += r.TotalCostUSD
	}
	if latencyRuns > 0 {
		m.AvgLatencyMs = latencySum / float64(latencyRuns)
	}

	m.Categories = categoryBreakdown(scores, runs)
	return m
}

// categoryBreakdown partitions scoring results by category and computes
// the same metric shape per category over only that category's subset.
// Categories appear in first-seen order.
func categoryBreakdown(scores []result.ScoreResult, runs []result.RunSummary) []result.CategoryMetrics {
	if len(scores) == 0 {
		return nil
	}

	index := map[string]int{}
	var out []result.CategoryMetrics
	scoreSums := map[string]float64{}

	for _, s := range scores {
		cat := CategoryOf(s.TestCaseID)
		i, ok := index[cat]
		if !ok {
			i = len(out)
			index[cat] = i
			out = append(out, result.CategoryMetrics{Category: cat})
		}
		out[i].TotalTests++
		if s.Passed {
			out[i].Passed++
		} else {
			out[i].Failed++
		}
		scoreSums[cat] += s.Score
	}

	// per-category latency: mean across runs of each run's mean over the
	// category's result subset; cost: sum over the subset
	latencySums := map[string]float64{}
	latencyRuns := map[string]int{}
	for i := range runs {
		perCatSum := map[string]float64{}
		perCatCount := map[string]int{}
		for _, res := range runs[i].Results {
			cat := CategoryOf(res.TestCaseID)
			perCatSum[cat] += float64(res.LatencyMs)
			perCatCount[cat]++
			if k, ok := index[cat]; ok {
				out[k].TotalCostUSD += res.CostUSD
			}
		}
		for cat, count := range perCatCount {
			if count > 0 {
				latencySums[cat] += perCatSum[cat] / float64(count)
				latencyRuns[cat]++
			}
		}
	}

	for i := range out {
		c := &out[i]
		if c.TotalTests > 0 {
			c.Accuracy = float64(c.Passed) / float64(c.TotalTests) * 100
			c.PassRate = c.Accuracy
			c.AvgScore = scoreSums[c.Category] / float64(c.TotalTests)
		}
		if n := latencyRuns[c.Category]; n > 0 {
			c.AvgLatencyMs = latencySums[c.Category] / float64(n)
		}
	}
	return out
}

// Recommendation rule bounds.
const (
	lowAccuracyBound   = 80
	highLatencyBoundMs = 5000
	highCostBoundUSD   = 10
	lowEfficiencyBound = 0.6
	weakCategoryBound  = 70
)

// GenerateRecommendations runs independent, non-exclusive rule checks over
// the metrics. When nothing triggers, a single all-clear recommendation is
// emitted.
func GenerateRecommendations(m result.Metrics, regressions []result.Regression, em *result.ExecutionMetrics) []result.Recommendation {
	var recs []result.Recommendation

	for _, r := range regressions {
		if r.Severity == result.SeverityCritical {
			recs = append(recs, result.Recommendation{
				Severity: "high",
				Message:  "Critical regression detected against the baseline",
				Action:   "Investigate the regressing metrics and consider rolling back the change under test",
			})
			break
		}
	}

	if m.Accuracy < lowAccuracyBound {
		recs = append(recs, result.Recommendation{
			Severity: "high",
			Message:  "Accuracy is below 80%",
			Action:   "Review failed test cases for systematic error patterns",
		})
	}

	if m.AvgLatencyMs > highLatencyBoundMs {
		recs = append(recs, result.Recommendation{
			Severity: "medium",
			Message:  "Average latency exceeds 5s",
			Action:   "Optimize prompts, reduce output length, or switch to a faster configuration",
		})
	}

	if m.TotalCostUSD > highCostBoundUSD {
		recs = append(recs, result.Recommendation{
			Severity: "medium",
			Message:  "Total run cost exceeds $10",
			Action:   "Review configuration pricing and dataset size to control cost",
		})
	}

	if em != nil && em.ParallelEfficiency > 0 && em.ParallelEfficiency < lowEfficiencyBound {
		recs = append(recs, result.Recommendation{
			Severity: "low",
			Message:  "Parallel efficiency is below 60%",
			Action:   "Tune the concurrency limit or rate-limit settings",
		})
	}

	for _, c := range m.Categories {
		if c.Accuracy < weakCategoryBound {
			recs = append(recs, result.Recommendation{
				Severity: "medium",
				Message:  "Category " + c.Category + " accuracy is below 70%",
				Action:   "Focus improvement work on the " + c.Category + " category",
			})
		}
	}

	if len(recs) == 0 {
		recs = append(recs, result.Recommendation{
			Severity: "info",
			Message:  "All metrics within expected ranges",
			Action:   "No action required",
		})
	}
	return recs
}

// roundPct keeps exported percentages stable across platforms.
func roundPct(v float64) float64 {
	return math.Round(v*100) / 100
}
