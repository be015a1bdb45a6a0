package llm

import "context"

type contextKey string

const (
	purposeKey    contextKey = "llm_purpose"
	questionIDKey contextKey = "llm_question_id"
)

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithQuestionID records which question a request is about, so stored
// events can be traced back to it.
func WithQuestionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, questionIDKey, id)
}

// QuestionIDFrom returns the question ID attached to ctx, or "".
func QuestionIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(questionIDKey).(string)
	return v
}
