package job

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminalState     = errors.New("cannot cancel a job in terminal state")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// validTransitions is the fixed state machine. pending is the sole initial
// state; terminal states have no outgoing edges.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled},
}

func transitionAllowed(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ModelConfig identifies one runner/model configuration to evaluate.
type ModelConfig struct {
	Name     string            `yaml:"name" json:"name"`
	Provider string            `yaml:"provider" json:"provider"`
	Model    string            `yaml:"model" json:"model"`
	BaseURL  string            `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Params   map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// ScorerConfig selects and parameterizes the scoring function.
type ScorerConfig struct {
	Type   string            `yaml:"type" json:"type"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Config is everything needed to run one evaluation job.
type Config struct {
	DatasetIDs      []string      `json:"dataset_ids"`
	ModelConfigs    []ModelConfig `json:"model_configs"`
	Scorer          ScorerConfig  `json:"scorer"`
	CompareBaseline bool          `json:"compare_baseline,omitempty"`
	BaselineID      string        `json:"baseline_id,omitempty"`
	Concurrency     int           `json:"concurrency,omitempty"`
}

// Progress tracks per-job counters. One record per job, same lifetime.
type Progress struct {
	TotalTests     int       `json:"total_tests"`
	CompletedTests int       `json:"completed_tests"`
	FailedTests    int       `json:"failed_tests"`
	Progress       int       `json:"progress"`
	CurrentTest    string    `json:"current_test,omitempty"`
	ETA            *int64    `json:"eta_ms,omitempty"`
	Errors         []string  `json:"errors,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Job is one evaluation job record. Mutated only through the Manager.
type Job struct {
	ID        string    `json:"id"`
	Config    Config    `json:"config"`
	Status    Status    `json:"status"`
	Progress  Progress  `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// ProgressUpdate is a partial patch merged into a job's progress. Nil
// fields are left untouched; Errors are appended.
type ProgressUpdate struct {
	TotalTests     *int
	CompletedTests *int
	FailedTests    *int
	CurrentTest    *string
	Errors         []string
}
