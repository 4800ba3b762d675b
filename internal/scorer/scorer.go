package scorer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrUnknownType = errors.New("unknown scorer type")

// Func judges a model output against the expected value, returning a
// pass/fail verdict, a 0-1 score, and a short reason.
type Func func(output, expected string) (passed bool, score float64, reason string)

// New builds a scoring function from a type name and parameters.
// Supported types: exact, contains, regexp (param "pattern", matched
// against the output; expected is ignored).
func New(scorerType string, params map[string]string) (Func, error) {
	switch scorerType {
	case "exact":
		return Exact, nil
	case "contains":
		return Contains, nil
	case "regexp":
		pattern, ok := params["pattern"]
		if !ok || pattern == "" {
			return nil, fmt.Errorf("regexp scorer: pattern is required")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("regexp scorer: %w", err)
		}
		return Regexp(re), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, scorerType)
	}
}

// Exact passes only when output and expected are identical after trimming
// surrounding whitespace.
func Exact(output, expected string) (bool, float64, string) {
	if strings.TrimSpace(output) == strings.TrimSpace(expected) {
		return true, 1, "exact match"
	}
	return false, 0, "output does not match expected value"
}

// Contains passes when the expected value appears anywhere in the output.
func Contains(output, expected string) (bool, float64, string) {
	if expected != "" && strings.Contains(output, expected) {
		return true, 1, "expected value found in output"
	}
	return false, 0, "expected value not found in output"
}

// Regexp passes when the compiled pattern matches the output.
func Regexp(re *regexp.Regexp) Func {
	return func(output, _ string) (bool, float64, string) {
		if re.MatchString(output) {
			return true, 1, "pattern matched"
		}
		return false, 0, fmt.Sprintf("pattern %q did not match", re.String())
	}
}
