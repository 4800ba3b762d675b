package baseline

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modelcrucible/crucible/internal/result"
)

var (
	ErrNotFound         = errors.New("baseline not found")
	ErrNoActiveBaseline = errors.New("no active baseline")
	ErrUnknownMetric    = errors.New("unknown metric")
)

// Baseline is a named snapshot of aggregate metrics from a prior run.
type Baseline struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	RunID       string         `json:"run_id"`
	Metrics     result.Metrics `json:"metrics"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// StoreInput is the data needed to capture a baseline.
type StoreInput struct {
	Name        string
	Description string
	RunID       string
	Metrics     result.Metrics
}

// Thresholds are the percent-change bounds for each severity level.
// Invariant: Critical >= Major >= Minor.
type Thresholds struct {
	Critical float64 `json:"critical"`
	Major    float64 `json:"major"`
	Minor    float64 `json:"minor"`
}

// metricDef describes one comparable metric: its extractor and whether a
// lower value is the better one.
type metricDef struct {
	name          string
	lowerIsBetter bool
	weight        float64
	value         func(m result.Metrics) float64
	categoryValue func(c result.CategoryMetrics) float64
}

// comparableMetrics is the fixed metric set, in comparison order.
var comparableMetrics = []metricDef{
	{
		name: "accuracy", weight: 0.4,
		value:         func(m result.Metrics) float64 { return m.Accuracy },
		categoryValue: func(c result.CategoryMetrics) float64 { return c.Accuracy },
	},
	{
		name: "passRate",
		value:         func(m result.Metrics) float64 { return m.PassRate },
		categoryValue: func(c result.CategoryMetrics) float64 { return c.PassRate },
	},
	{
		name: "avgScore", weight: 0.3,
		value:         func(m result.Metrics) float64 { return m.AvgScore },
		categoryValue: func(c result.CategoryMetrics) float64 { return c.AvgScore },
	},
	{
		name: "avgLatency", lowerIsBetter: true, weight: 0.2,
		value:         func(m result.Metrics) float64 { return m.AvgLatencyMs },
		categoryValue: func(c result.CategoryMetrics) float64 { return c.AvgLatencyMs },
	},
	{
		name: "totalCost", lowerIsBetter: true, weight: 0.1,
		value:         func(m result.Metrics) float64 { return m.TotalCostUSD },
		categoryValue: func(c result.CategoryMetrics) float64 { return c.TotalCostUSD },
	},
}

func defaultThresholds() map[string]Thresholds {
	return map[string]Thresholds{
		"accuracy":   {Critical: 10, Major: 5, Minor: 2},
		"passRate":   {Critical: 10, Major: 5, Minor: 2},
		"avgScore":   {Critical: 15, Major: 8, Minor: 3},
		"avgLatency": {Critical: 50, Major: 25, Minor: 10},
		"totalCost":  {Critical: 40, Major: 20, Minor: 10},
	}
}

// ComparisonSummary counts classified changes and carries the single
// weighted overall-change score.
type ComparisonSummary struct {
	CriticalRegressions int     `json:"critical_regressions"`
	MajorRegressions    int     `json:"major_regressions"`
	MinorRegressions    int     `json:"minor_regressions"`
	Improvements        int     `json:"improvements"`
	OverallChange       float64 `json:"overall_change"`
}

// Comparison is the outcome of comparing current metrics to a baseline.
type Comparison struct {
	BaselineID    string               `json:"baseline_id"`
	BaselineRunID string               `json:"baseline_run_id"`
	CurrentRunID  string               `json:"current_run_id"`
	Regressions   []result.Regression  `json:"regressions"`
	Improvements  []result.Improvement `json:"improvements"`
	Summary       ComparisonSummary    `json:"summary"`
	ComparedAt    time.Time            `json:"compared_at"`
}

// Comparator stores named metric snapshots in memory and classifies deltas
// against them. Safe for concurrent use. Durable persistence is an
// external concern.
type Comparator struct {
	mu         sync.Mutex
	baselines  map[string]*Baseline
	order      []string
	activeID   string
	thresholds map[string]Thresholds
}

func NewComparator() *Comparator {
	return &Comparator{
		baselines:  make(map[string]*Baseline),
		thresholds: defaultThresholds(),
	}
}

// StoreBaseline captures a new baseline and returns its id.
func (c *Comparator) StoreBaseline(in StoreInput) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	b := &Baseline{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		RunID:       in.RunID,
		Metrics:     in.Metrics,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.baselines[b.ID] = b
	c.order = append(c.order, b.ID)
	return b.ID
}

// SetActiveBaseline activates the given baseline, deactivating any other.
// At most one baseline is active at a time.
func (c *Comparator) SetActiveBaseline(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.baselines[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := time.Now()
	if c.activeID != "" && c.activeID != id {
		if prev, ok := c.baselines[c.activeID]; ok {
			prev.Active = false
			prev.UpdatedAt = now
		}
	}
	b.Active = true
	b.UpdatedAt = now
	c.activeID = id
	return nil
}

// GetActiveBaseline returns a copy of the active baseline, if any.
func (c *Comparator) GetActiveBaseline() (Baseline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeID == "" {
		return Baseline{}, false
	}
	b, ok := c.baselines[c.activeID]
	if !ok {
		return Baseline{}, false
	}
	return *b, true
}

// GetAllBaselines returns copies of all baselines in storage order.
func (c *Comparator) GetAllBaselines() []Baseline {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Baseline, 0, len(c.order))
	for _, id := range c.order {
		if b, ok := c.baselines[id]; ok {
			out = append(out, *b)
		}
	}
	return out
}

// DeleteBaseline removes a baseline. Deleting the active baseline leaves
// no baseline active.
func (c *Comparator) DeleteBaseline(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.baselines[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(c.baselines, id)
	for i, stored := range c.order {
		if stored == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.activeID == id {
		c.activeID = ""
	}
	return nil
}

// Reset drops all baselines and restores default thresholds.
func (c *Comparator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.baselines = make(map[string]*Baseline)
	c.order = nil
	c.activeID = ""
	c.thresholds = defaultThresholds()
}

// UpdateThresholds overrides the severity bounds for one metric.
func (c *Comparator) UpdateThresholds(metric string, t Thresholds) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.thresholds[metric]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	c.thresholds[metric] = t
	return nil
}

// CompareToBaseline classifies the deltas between current metrics and the
// given baseline, or the active one when baselineID is empty.
func (c *Comparator) CompareToBaseline(current result.Metrics, currentRunID, baselineID string) (*Comparison, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var base *Baseline
	if baselineID != "" {
		b, ok := c.baselines[baselineID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, baselineID)
		}
		base = b
	} else {
		if c.activeID == "" {
			return nil, ErrNoActiveBaseline
		}
		base = c.baselines[c.activeID]
	}

	cmp := &Comparison{
		BaselineID:    base.ID,
		BaselineRunID: base.RunID,
		CurrentRunID:  currentRunID,
		Regressions:   []result.Regression{},
		Improvements:  []result.Improvement{},
		ComparedAt:    time.Now(),
	}

	var overall float64
	for _, def := range comparableMetrics {
		baseVal := def.value(base.Metrics)
		curVal := def.value(current)
		change, ok := c.classify(cmp, def, "overall", baseVal, curVal)
		if ok && def.weight > 0 {
			signed := change
			if def.lowerIsBetter {
				signed = -signed
			}
			overall += def.weight * signed
		}
	}
	cmp.Summary.OverallChange = overall

	// categories present in both breakdowns, in the baseline's order
	for _, baseCat := range base.Metrics.Categories {
		curCat, ok := current.Category(baseCat.Category)
		if !ok {
			continue
		}
		for _, def := range comparableMetrics {
			c.classify(cmp, def, baseCat.Category,
				def.categoryValue(baseCat), def.categoryValue(curCat))
		}
	}

	for _, r := range cmp.Regressions {
		switch r.Severity {
		case result.SeverityCritical:
			cmp.Summary.CriticalRegressions++
		case result.SeverityMajor:
			cmp.Summary.MajorRegressions++
		default:
			cmp.Summary.MinorRegressions++
		}
	}
	cmp.Summary.Improvements = len(cmp.Improvements)

	return cmp, nil
}

// classify records the delta for one metric as a regression, an
// improvement, or nothing. Returns the percent change and whether the
// metric was comparable (baseline non-zero).
func (c *Comparator) classify(cmp *Comparison, def metricDef, category string, baseVal, curVal float64) (float64, bool) {
	// percent change against a zero baseline is undefined
	if baseVal == 0 {
		return 0, false
	}

	pct := (curVal - baseVal) / baseVal * 100
	abs := curVal - baseVal
	if pct == 0 {
		return 0, true
	}

	worse := curVal < baseVal
	if def.lowerIsBetter {
		worse = curVal > baseVal
	}

	t := c.thresholds[def.name]
	if worse && math.Abs(pct) >= t.Minor {
		severity := result.SeverityMinor
		switch {
		case math.Abs(pct) >= t.Critical:
			severity = result.SeverityCritical
		case math.Abs(pct) >= t.Major:
			severity = result.SeverityMajor
		}
		cmp.Regressions = append(cmp.Regressions, result.Regression{
			Metric:         def.name,
			Category:       category,
			BaselineValue:  baseVal,
			CurrentValue:   curVal,
			PercentChange:  pct,
			AbsoluteChange: abs,
			Severity:       severity,
		})
		return pct, true
	}

	if !worse {
		// favorable non-zero change; severity is a fixed placeholder,
		// magnitude is deliberately not classified
		cmp.Improvements = append(cmp.Improvements, result.Improvement{
			Metric:         def.name,
			Category:       category,
			BaselineValue:  baseVal,
			CurrentValue:   curVal,
			PercentChange:  pct,
			AbsoluteChange: abs,
			Severity:       result.SeverityMinor,
		})
	}

	return pct, true
}
