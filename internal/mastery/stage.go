package mastery

const (
	// advanceRatio is the normalized score above which a stage advances.
	advanceRatio = 0.7

	// regressRatio is the normalized score at or below which a stage regresses.
	regressRatio = 0.3

	// relapseStage is where a question falls back to when a learner who had
	// progressed past stage 2 scores poorly.
	relapseStage = 1
)

// NextStage maps the current stage and the score achieved on one attempt to
// the stage the question should move to. It is total: out-of-range stages
// are clamped and a non-positive scoreAvailable counts as a zero score.
//
//	ratio > 0.7         -> current+1 (capped at MaxStage)
//	0.3 < ratio <= 0.7  -> current
//	ratio <= 0.3        -> 1 if current > 2, else 0
func NextStage(current int, scoreAchieved, scoreAvailable float64) int {
	current = Clamp(current)

	var ratio float64
	if scoreAvailable > 0 {
		ratio = scoreAchieved / scoreAvailable
	}

	switch {
	case ratio > advanceRatio:
		return min(current+1, MaxStage)
	case ratio > regressRatio:
		return current
	case current > 2:
		return relapseStage
	default:
		return MinStage
	}
}

// StageToFocus maps a stage to its focus label: 0-1 Understand, 2-3 Use,
// 4-5 Explore.
func StageToFocus(stage int) Focus {
	switch stage = Clamp(stage); {
	case stage <= 1:
		return FocusUnderstand
	case stage <= 3:
		return FocusUse
	default:
		return FocusExplore
	}
}

// Clamp forces stage into [MinStage, MaxStage].
func Clamp(stage int) int {
	return max(MinStage, min(stage, MaxStage))
}
