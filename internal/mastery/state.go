package mastery

import "fmt"

const (
	// MinStage is the stage of a question nobody has learned yet.
	MinStage = 0

	// MaxStage is the highest mastery stage.
	MaxStage = 5
)

// Focus is a coarse pedagogical label derived from a mastery stage.
type Focus string

const (
	FocusUnderstand Focus = "Understand"
	FocusUse        Focus = "Use"
	FocusExplore    Focus = "Explore"
)

// Foci lists every valid focus label, lowest stage first.
var Foci = []Focus{FocusUnderstand, FocusUse, FocusExplore}

// Valid reports whether f is one of the three focus labels.
func (f Focus) Valid() bool {
	switch f {
	case FocusUnderstand, FocusUse, FocusExplore:
		return true
	}
	return false
}

// StageTransition records a stage change for display and logging.
type StageTransition struct {
	QuestionID string
	From       int
	To         int
}

// Direction returns "up", "down" or "same".
func (t StageTransition) Direction() string {
	switch {
	case t.To > t.From:
		return "up"
	case t.To < t.From:
		return "down"
	default:
		return "same"
	}
}

func (t StageTransition) String() string {
	return fmt.Sprintf("%s: stage %d -> %d", t.QuestionID, t.From, t.To)
}
