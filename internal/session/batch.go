package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/abhisek/revise/internal/evaluation"
	"github.com/abhisek/revise/internal/mastery"
	"github.com/go-playground/validator/v10"
)

// Outcome is the record of one marked question. It is never changed after
// it is appended to a session.
type Outcome struct {
	QuestionID string `json:"questionId" validate:"required"`
	AnswerText string `json:"answerText"`

	// ScoreAchieved is 0 when the evaluation was pending.
	ScoreAchieved float64       `json:"scoreAchieved" validate:"gte=0"`
	FocusLabel    mastery.Focus `json:"focusLabel" validate:"required,oneof=Understand Use Explore"`

	// TimeSpent is seconds from the question becoming active to it being marked.
	TimeSpent *float64 `json:"timeSpent,omitempty" validate:"omitempty,gte=0"`
}

// Batch is the payload handed to a Sink when a session completes.
type Batch struct {
	OwnerID         string    `json:"batchOwnerId" validate:"required"`
	DurationSeconds float64   `json:"durationSeconds" validate:"gte=0"`
	Outcomes        []Outcome `json:"outcomes" validate:"required,dive"`
}

// Sink receives completed batches. Implementations should return a
// *SubmitError; anything else is reported as a transport failure.
type Sink interface {
	Submit(ctx context.Context, b Batch) error
}

// SubmitError describes a failed validation or submission. Message is meant
// for the learner.
type SubmitError struct {
	Kind    evaluation.ErrorKind
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("submission %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("submission %s error: %s", e.Kind, e.Message)
}

func (e *SubmitError) Unwrap() error { return e.Err }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateBatch checks b before it is sent anywhere. Failures are returned
// as a *SubmitError of kind validation.
func ValidateBatch(b Batch) error {
	err := validate.Struct(b)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &SubmitError{Kind: evaluation.KindValidation, Message: err.Error(), Err: err}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return &SubmitError{
		Kind:    evaluation.KindValidation,
		Message: "invalid outcomes: " + strings.Join(msgs, "; "),
		Err:     err,
	}
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Batch.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s %q must be one of %s", field, fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// asSubmitError normalizes an error returned by a Sink.
func asSubmitError(err error) *SubmitError {
	var se *SubmitError
	if errors.As(err, &se) {
		return se
	}
	return &SubmitError{Kind: evaluation.KindTransport, Message: err.Error(), Err: err}
}
