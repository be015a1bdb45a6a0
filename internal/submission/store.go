package submission

import (
	"context"

	"github.com/abhisek/revise/internal/evaluation"
	"github.com/abhisek/revise/internal/logger"
	"github.com/abhisek/revise/internal/session"
	"github.com/abhisek/revise/internal/store"
)

// StoreSink records batches in the local database instead of sending them
// anywhere. Useful offline and for inspecting what would have been sent.
type StoreSink struct {
	repo store.BatchRepo
	log  *logger.Logger
}

// NewStoreSink creates a StoreSink. log may be nil.
func NewStoreSink(repo store.BatchRepo, log *logger.Logger) *StoreSink {
	if log == nil {
		log = logger.Nop()
	}
	return &StoreSink{repo: repo, log: log}
}

func (s *StoreSink) Submit(ctx context.Context, b session.Batch) error {
	rec := &store.BatchRecord{
		OwnerID:         b.OwnerID,
		DurationSeconds: b.DurationSeconds,
		Outcomes:        make([]store.OutcomeRecord, 0, len(b.Outcomes)),
	}
	for _, o := range b.Outcomes {
		rec.Outcomes = append(rec.Outcomes, store.OutcomeRecord{
			QuestionID:       o.QuestionID,
			AnswerText:       o.AnswerText,
			ScoreAchieved:    o.ScoreAchieved,
			FocusLabel:       string(o.FocusLabel),
			TimeSpentSeconds: o.TimeSpent,
		})
	}

	if err := s.repo.SaveBatch(ctx, rec); err != nil {
		return &session.SubmitError{Kind: evaluation.KindTransport, Message: "could not save batch locally", Err: err}
	}
	s.log.Info("batch stored", "batch_id", rec.ID, "outcomes", rec.OutcomeCount)
	return nil
}
