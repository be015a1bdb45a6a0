package evaluation

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/abhisek/revise/internal/llm"
	"github.com/abhisek/revise/internal/question"
)

// RemoteRequest is what gets sent to a remote evaluator. Only QuestionID and
// AnswerText go over the wire; Question is there for evaluators that grade
// locally against the canonical answer.
type RemoteRequest struct {
	QuestionID string            `json:"questionId"`
	AnswerText string            `json:"answerText"`
	Question   question.Question `json:"-"`
}

// RemoteResponse is a remote evaluator's verdict, after the schema check.
type RemoteResponse struct {
	MarksAvailable  float64  `json:"marksAvailable"`
	MarksAchieved   float64  `json:"marksAchieved"`
	Feedback        string   `json:"feedback,omitempty"`
	CorrectedAnswer string   `json:"correctedAnswer,omitempty"`
	Explanation     string   `json:"explanation,omitempty"`
	Concepts        []string `json:"concepts,omitempty"`
}

// Remote grades answers that exact match cannot. Implementations return a
// *RemoteError so the evaluator can tell transport failures from malformed
// responses; any other error is treated as a transport failure.
type Remote interface {
	Evaluate(ctx context.Context, req RemoteRequest) (*RemoteResponse, error)
}

// ResponseSchema is the shape every remote evaluator response must have.
// Negative marks fail it, so such a response is malformed and the answer
// stays pending.
var ResponseSchema = &llm.Schema{
	Name:        "answer-evaluation",
	Description: "Marks awarded to a learner's answer, with feedback",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"marksAvailable": map[string]any{
				"type":        "number",
				"minimum":     0,
				"description": "Total marks the question is worth",
			},
			"marksAchieved": map[string]any{
				"type":        "number",
				"minimum":     0,
				"description": "Marks the answer earned, between 0 and marksAvailable",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "One or two sentences addressed to the learner",
			},
			"correctedAnswer": map[string]any{
				"type":        "string",
				"description": "A model answer, when the learner's answer fell short",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "Why the marks were awarded",
			},
			"concepts": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Concepts the answer demonstrated or missed",
			},
		},
		"required": []any{"marksAvailable", "marksAchieved"},
	},
}

// DecodeResponse checks raw against ResponseSchema and decodes it. Any
// failure is a KindMalformed RemoteError.
func DecodeResponse(raw []byte) (*RemoteResponse, error) {
	if err := llm.Validate(ResponseSchema, raw); err != nil {
		return nil, &RemoteError{Kind: KindMalformed, Err: err}
	}
	var resp RemoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &RemoteError{Kind: KindMalformed, Err: err}
	}
	return &resp, nil
}

// KindOf returns the error kind carried by err, defaulting to transport.
func KindOf(err error) ErrorKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransport
}
