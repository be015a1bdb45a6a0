package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var batchColumns = []string{"id", "sequence", "owner_id", "duration_seconds", "outcome_count", "created_at"}

// batchRepo implements BatchRepo.
type batchRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *batchRepo) SaveBatch(ctx context.Context, b *BatchRecord) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Sequence = seqNum
	b.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	b.OutcomeCount = len(b.Outcomes)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query, args := builder.Insert(tableBatches).
		Columns(batchColumns...).
		Values(b.ID, b.Sequence, b.OwnerID, b.DurationSeconds, b.OutcomeCount, b.CreatedAt.UnixMilli()).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}

	if len(b.Outcomes) > 0 {
		ins := builder.Insert(tableOutcomes).Columns(
			"batch_id", "position", "question_id", "answer_text",
			"score_achieved", "focus_label", "time_spent_seconds",
		)
		for i, o := range b.Outcomes {
			ins = ins.Values(b.ID, i, o.QuestionID, o.AnswerText, o.ScoreAchieved, o.FocusLabel, nullableSeconds(o.TimeSpentSeconds))
		}
		query, args = ins.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save outcomes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (r *batchRepo) ListBatches(ctx context.Context, opts QueryOpts) ([]BatchRecord, error) {
	sel := builder.Select(batchColumns...).From(builder.Table(tableBatches))
	query, args := applyQueryOpts(sel, opts).Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []BatchRecord
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

func (r *batchRepo) GetBatch(ctx context.Context, id string) (*BatchRecord, error) {
	query, args := builder.Select(batchColumns...).
		From(builder.Table(tableBatches)).
		Where(entsql.EQ("id", id)).
		Query()

	b, err := scanBatch(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	query, args = builder.Select("question_id", "answer_text", "score_achieved", "focus_label", "time_spent_seconds").
		From(builder.Table(tableOutcomes)).
		Where(entsql.EQ("batch_id", id)).
		OrderBy("position").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o     OutcomeRecord
			spent sql.NullFloat64
		)
		if err := rows.Scan(&o.QuestionID, &o.AnswerText, &o.ScoreAchieved, &o.FocusLabel, &spent); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if spent.Valid {
			o.TimeSpentSeconds = &spent.Float64
		}
		b.Outcomes = append(b.Outcomes, o)
	}
	return b, rows.Err()
}

func scanBatch(row rowScanner) (*BatchRecord, error) {
	var (
		b         BatchRecord
		createdAt int64
	)
	err := row.Scan(&b.ID, &b.Sequence, &b.OwnerID, &b.DurationSeconds, &b.OutcomeCount, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	b.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &b, nil
}

func nullableSeconds(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
