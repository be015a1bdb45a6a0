package question

import "github.com/abhisek/revise/internal/mastery"

// Type is the interaction type of a question.
type Type string

const (
	TypeMultipleChoice Type = "multiple-choice"
	TypeTrueFalse      Type = "true-false"
	TypeShortAnswer    Type = "short-answer"
	TypeLongAnswer     Type = "long-answer"
)

// Valid reports whether t is one of the known question types.
func (t Type) Valid() bool {
	switch t {
	case TypeMultipleChoice, TypeTrueFalse, TypeShortAnswer, TypeLongAnswer:
		return true
	}
	return false
}

// Method is how a question's answer gets marked.
type Method string

const (
	MethodExactMatch       Method = "exact-match"
	MethodRemoteEvaluation Method = "remote-evaluation"
)

// DefaultScoreAvailable is used when a question does not declare its marks.
const DefaultScoreAvailable = 1.0

// Question is a single item in a review batch. It is treated as immutable
// for the duration of a session, apart from the Type filled in by Classify.
type Question struct {
	// ID identifies the question to the evaluator and the submission sink.
	ID string `json:"id" yaml:"id"`

	// Text is the prompt shown to the learner. For untyped multiple-choice
	// questions the options are embedded here, one per line.
	Text string `json:"text" yaml:"text"`

	// Answer is the canonical answer.
	Answer string `json:"answer" yaml:"answer"`

	// Type is optional. Empty means "infer it".
	Type Type `json:"type,omitempty" yaml:"type,omitempty"`

	// Options holds the choices of a multiple-choice question.
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`

	// ScoreAvailable is the number of marks the question is worth.
	// Zero means DefaultScoreAvailable.
	ScoreAvailable float64 `json:"scoreAvailable,omitempty" yaml:"scoreAvailable,omitempty"`

	// Stage is the learner's current mastery stage for this question (0-5).
	Stage int `json:"stage,omitempty" yaml:"stage,omitempty"`

	// Concepts are free-form tags attached by the author.
	Concepts []string `json:"concepts,omitempty" yaml:"concepts,omitempty"`

	// Focus is the focus label last recorded for this question, if any.
	Focus mastery.Focus `json:"focus,omitempty" yaml:"focus,omitempty"`
}

// Marks returns the score available for q, applying the default.
func (q Question) Marks() float64 {
	if q.ScoreAvailable <= 0 {
		return DefaultScoreAvailable
	}
	return q.ScoreAvailable
}

// CurrentStage returns q.Stage clamped to the valid mastery range.
func (q Question) CurrentStage() int {
	return mastery.Clamp(q.Stage)
}
