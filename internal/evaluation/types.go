package evaluation

import (
	"fmt"
	"strconv"
)

// Correctness is the tri-state verdict of an evaluation.
type Correctness string

const (
	CorrectnessTrue    Correctness = "true"
	CorrectnessFalse   Correctness = "false"
	CorrectnessUnknown Correctness = "unknown"
)

// Method records which path produced a Result.
type Method string

const (
	MethodExactMatch         Method = "exact-match"
	MethodRemoteEvaluation   Method = "remote-evaluation"
	MethodFallbackExactMatch Method = "fallback-exact-match"
	MethodPending            Method = "pending"
)

// Result is the outcome of marking one answer to one question.
type Result struct {
	Correct Correctness `json:"isCorrect"`

	// Score is nil when the result is pending.
	Score          *float64 `json:"scoreAchieved"`
	ScoreAvailable float64  `json:"scoreAvailable"`

	Feedback        string   `json:"feedback"`
	CorrectedAnswer string   `json:"correctedAnswer,omitempty"`
	Explanation     string   `json:"explanation,omitempty"`
	Concepts        []string `json:"concepts,omitempty"`

	// Pending is set when grading could not be completed. A pending result
	// is neither a pass nor a fail.
	Pending bool `json:"pending"`

	// NextStage is the mastery stage the question moves to. Unchanged from
	// the question's current stage when Pending.
	NextStage int `json:"nextStage"`

	Method Method `json:"method"`
}

// ScoreOrZero returns the achieved score, or 0 for a pending result.
func (r *Result) ScoreOrZero() float64 {
	if r == nil || r.Score == nil {
		return 0
	}
	return *r.Score
}

// ErrorKind classifies failures talking to the remote evaluator or the
// submission sink.
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindMalformed  ErrorKind = "malformed-response"
	KindValidation ErrorKind = "validation"
)

// RemoteError is returned by Remote implementations.
type RemoteError struct {
	Kind ErrorKind
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote evaluator %s error: %v", e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func transportError(format string, args ...any) *RemoteError {
	return &RemoteError{Kind: KindTransport, Err: fmt.Errorf(format, args...)}
}

func formatMarks(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
