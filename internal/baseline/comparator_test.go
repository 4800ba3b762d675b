package baseline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcrucible/crucible/internal/baseline"
	"github.com/modelcrucible/crucible/internal/result"
)

func sampleMetrics() result.Metrics {
	return result.Metrics{
		TotalTests:   100,
		Passed:       90,
		Failed:       10,
		Accuracy:     90,
		PassRate:     90,
		AvgScore:     0.9,
		AvgLatencyMs: 1000,
		TotalCostUSD: 5,
		Categories: []result.CategoryMetrics{
			{Category: "math", TotalTests: 50, Passed: 45, Accuracy: 90, PassRate: 90, AvgScore: 0.9, AvgLatencyMs: 1000, TotalCostUSD: 2.5},
		},
	}
}

func TestStoreAndActivate(t *testing.T) {
	c := baseline.NewComparator()

	first := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "run-1", Metrics: sampleMetrics()})
	second := c.StoreBaseline(baseline.StoreInput{Name: "v2", RunID: "run-2", Metrics: sampleMetrics()})

	_, ok := c.GetActiveBaseline()
	assert.False(t, ok)

	require.NoError(t, c.SetActiveBaseline(first))
	active, ok := c.GetActiveBaseline()
	require.True(t, ok)
	assert.Equal(t, first, active.ID)

	// activating another deactivates the previous one
	require.NoError(t, c.SetActiveBaseline(second))
	active, _ = c.GetActiveBaseline()
	assert.Equal(t, second, active.ID)

	all := c.GetAllBaselines()
	require.Len(t, all, 2)
	assert.False(t, all[0].Active)
	assert.True(t, all[1].Active)

	assert.ErrorIs(t, c.SetActiveBaseline("missing"), baseline.ErrNotFound)
}

func TestDeleteAndReset(t *testing.T) {
	c := baseline.NewComparator()
	id := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "r", Metrics: sampleMetrics()})
	require.NoError(t, c.SetActiveBaseline(id))

	require.NoError(t, c.DeleteBaseline(id))
	_, ok := c.GetActiveBaseline()
	assert.False(t, ok)
	assert.ErrorIs(t, c.DeleteBaseline(id), baseline.ErrNotFound)

	c.StoreBaseline(baseline.StoreInput{Name: "v2", RunID: "r", Metrics: sampleMetrics()})
	c.Reset()
	assert.Empty(t, c.GetAllBaselines())
}

func TestCompareMissingBaseline(t *testing.T) {
	c := baseline.NewComparator()
	_, err := c.CompareToBaseline(sampleMetrics(), "run-x", "")
	assert.ErrorIs(t, err, baseline.ErrNoActiveBaseline)

	_, err = c.CompareToBaseline(sampleMetrics(), "run-x", "ghost")
	assert.ErrorIs(t, err, baseline.ErrNotFound)
}

func TestCompareIdenticalMetrics(t *testing.T) {
	c := baseline.NewComparator()
	id := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "run-1", Metrics: sampleMetrics()})

	cmp, err := c.CompareToBaseline(sampleMetrics(), "run-2", id)
	require.NoError(t, err)
	assert.Empty(t, cmp.Regressions)
	assert.Empty(t, cmp.Improvements)
	assert.Zero(t, cmp.Summary.OverallChange)
}

func TestAccuracyDropCritical(t *testing.T) {
	c := baseline.NewComparator()
	id := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "run-1", Metrics: sampleMetrics()})

	current := sampleMetrics()
	current.Accuracy = 80 // ~11.1% relative drop, over the 10% critical bound
	current.PassRate = 80

	cmp, err := c.CompareToBaseline(current, "run-2", id)
	require.NoError(t, err)

	var found bool
	for _, r := range cmp.Regressions {
		if r.Metric == "accuracy" && r.Category == "overall" {
			found = true
			assert.Equal(t, result.SeverityCritical, r.Severity)
			assert.InDelta(t, -11.11, r.PercentChange, 0.01)
			assert.InDelta(t, -10, r.AbsoluteChange, 0.001)
		}
	}
	assert.True(t, found, "expected an overall accuracy regression")
	assert.Equal(t, 2, cmp.Summary.CriticalRegressions) // accuracy and passRate
}

func TestLatencyRiseMinor(t *testing.T) {
	c := baseline.NewComparator()
	id := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "run-1", Metrics: sampleMetrics()})

	current := sampleMetrics()
	current.AvgLatencyMs = 1100 // +10%: at the minor bound, below major (25)

	cmp, err := c.CompareToBaseline(current, "run-2", id)
	require.NoError(t, err)

	require.Len(t, cmp.Regressions, 1)
	r := cmp.Regressions[0]
	assert.Equal(t, "avgLatency", r.Metric)
	assert.Equal(t, result.SeverityMinor, r.Severity)
	assert.Equal(t, 1, cmp.Summary.MinorRegressions)
}

func TestImprovementPlaceholderSeverity(t *testing.T) {
	c := baseline.NewComparator()
	id := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "run-1", Metrics: sampleMetrics()})

	current := sampleMetrics()
	current.Accuracy = 99 // +10%: large, but improvements are not graded
	current.TotalCostUSD = 2.5

	cmp, err := c.CompareToBaseline(current, "run-2", id)
	require.NoError(t, err)
	assert.Empty(t, cmp.Regressions)
	require.NotEmpty(t, cmp.Improvements)
	for _, imp := range cmp.Improvements {
		assert.Equal(t, result.SeverityMinor, imp.Severity)
	}
	assert.Equal(t, len(cmp.Improvements), cmp.Summary.Improvements)
	assert.Greater(t, cmp.Summary.OverallChange, 0.0)
}

func TestZeroBaselineValueSkipped(t *testing.T) {
	c := baseline.NewComparator()
	base := sampleMetrics()
	base.TotalCostUSD = 0
	id := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "run-1", Metrics: base})

	current := sampleMetrics()
	current.TotalCostUSD = 100

	cmp, err := c.CompareToBaseline(current, "run-2", id)
	require.NoError(t, err)
	for _, r := range cmp.Regressions {
		assert.NotEqual(t, "totalCost", r.Metric)
	}
}

func TestCategoryComparison(t *testing.T) {
	c := baseline.NewComparator()
	id := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "run-1", Metrics: sampleMetrics()})

	current := sampleMetrics()
	current.Categories[0].Accuracy = 70 // -22% within the math category

	cmp, err := c.CompareToBaseline(current, "run-2", id)
	require.NoError(t, err)

	var found bool
	for _, r := range cmp.Regressions {
		if r.Category == "math" && r.Metric == "accuracy" {
			found = true
			assert.Equal(t, result.SeverityCritical, r.Severity)
		}
	}
	assert.True(t, found, "expected a category-level regression")
}

func TestCategoryOnlyInOneSideIgnored(t *testing.T) {
	c := baseline.NewComparator()
	id := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "run-1", Metrics: sampleMetrics()})

	current := sampleMetrics()
	current.Categories = []result.CategoryMetrics{
		{Category: "code", Accuracy: 10, PassRate: 10, AvgScore: 0.1, AvgLatencyMs: 9000, TotalCostUSD: 50},
	}

	cmp, err := c.CompareToBaseline(current, "run-2", id)
	require.NoError(t, err)
	for _, r := range cmp.Regressions {
		assert.Equal(t, "overall", r.Category)
	}
}

func TestUpdateThresholds(t *testing.T) {
	c := baseline.NewComparator()
	id := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "run-1", Metrics: sampleMetrics()})

	require.NoError(t, c.UpdateThresholds("avgLatency", baseline.Thresholds{Critical: 5, Major: 3, Minor: 1}))
	assert.ErrorIs(t, c.UpdateThresholds("nope", baseline.Thresholds{}), baseline.ErrUnknownMetric)

	current := sampleMetrics()
	current.AvgLatencyMs = 1100 // +10% is now critical

	cmp, err := c.CompareToBaseline(current, "run-2", id)
	require.NoError(t, err)
	require.Len(t, cmp.Regressions, 1)
	assert.Equal(t, result.SeverityCritical, cmp.Regressions[0].Severity)
}

func TestOverallChangeSignFlip(t *testing.T) {
	c := baseline.NewComparator()
	id := c.StoreBaseline(baseline.StoreInput{Name: "v1", RunID: "run-1", Metrics: sampleMetrics()})

	// latency doubles: a 100% unfavorable change on a lower-is-better
	// metric must drag the weighted overall score negative
	current := sampleMetrics()
	current.AvgLatencyMs = 2000

	cmp, err := c.CompareToBaseline(current, "run-2", id)
	require.NoError(t, err)
	assert.InDelta(t, -20, cmp.Summary.OverallChange, 0.001) // 0.2 weight * -100
}
