package executor

import "strings"

// ErrorKind separates the three failure classes: the execution function
// rejected, the scoring function rejected, or orchestration logic itself
// failed.
type ErrorKind string

const (
	KindExecution ErrorKind = "execution"
	KindScoring   ErrorKind = "scoring"
	KindSystem    ErrorKind = "system"
)

// EvalError is a classified task or orchestration failure.
type EvalError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

func (e *EvalError) Error() string {
	return string(e.Kind) + " error: " + e.Message
}

// retryableMarkers are matched against execution error text to decide
// whether a retry could plausibly succeed.
var retryableMarkers = []string{"timeout", "rate limit", "network", "503", "429"}

// ClassifyExecutionError wraps an execution-function failure, deriving
// retryability from the error text.
func ClassifyExecutionError(err error) *EvalError {
	msg := err.Error()
	lower := strings.ToLower(msg)
	retryable := false
	for _, marker := range retryableMarkers {
		if strings.Contains(lower, marker) {
			retryable = true
			break
		}
	}
	return &EvalError{Kind: KindExecution, Message: msg, Retryable: retryable}
}

// NewScoringError wraps a scoring-function failure. Scoring failures are
// never retryable.
func NewScoringError(err error) *EvalError {
	return &EvalError{Kind: KindScoring, Message: err.Error()}
}

// NewSystemError wraps an orchestration-level failure.
func NewSystemError(err error) *EvalError {
	return &EvalError{Kind: KindSystem, Message: err.Error()}
}
