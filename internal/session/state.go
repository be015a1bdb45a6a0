package session

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBatch puts a new session straight into PhaseError.
	ErrEmptyBatch = errors.New("question batch is empty")

	// ErrEmptyAnswer is returned when the learner submits only whitespace.
	ErrEmptyAnswer = errors.New("answer is empty")

	// ErrInvalidTransition is returned when an operation is not allowed in
	// the current phase.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrBusy is returned when another transition is still in flight.
	ErrBusy = errors.New("another operation is in progress")

	// ErrAbandoned is returned by an operation whose session was abandoned
	// while it was running.
	ErrAbandoned = errors.New("session abandoned")
)

// Phase is the position of a session in its lifecycle.
type Phase int

const (
	PhaseLoading   Phase = iota // Batch not yet received
	PhaseActive                 // Waiting for an answer to the current question
	PhaseMarked                 // Current question marked, waiting for advance
	PhaseComplete               // All done; submission attempted unless there was nothing to send
	PhaseError                  // Batch was missing or empty
	PhaseAbandoned              // Left by the caller; outcomes discarded
)

var phaseNames = [...]string{"loading", "active", "marked", "complete", "error", "abandoned"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Terminal reports whether no further transitions are possible, apart from
// Retry after a failed submission.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError || p == PhaseAbandoned
}

// State is a snapshot of a session for callers.
type State struct {
	Phase        Phase `json:"phase"`
	CurrentIndex int   `json:"currentIndex"`
	Total        int   `json:"total"`

	// Submitted is true once the batch was accepted by the sink, or when
	// there was nothing to submit.
	Submitted bool `json:"submitted"`

	// Err is set in PhaseError, and in PhaseComplete when validation or
	// submission failed. Message is its text.
	Err     error  `json:"-"`
	Message string `json:"error,omitempty"`
}

func transitionError(op string, p Phase) error {
	return fmt.Errorf("%s in phase %s: %w", op, p, ErrInvalidTransition)
}
