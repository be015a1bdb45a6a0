package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is not checked here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)

	for _, table := range []string{tableBatches, tableOutcomes, tableLLMEvents, "global_sequence"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("table %s: %v", table, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := migrate(context.Background(), s.DB()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	// Outcomes must belong to a stored batch.
	_, err := s.DB().Exec(
		"INSERT INTO "+tableOutcomes+" (batch_id, position, question_id, answer_text, score_achieved, focus_label) VALUES (?, 0, 'q1', 'a', 1, 'Use')",
		"no-such-batch",
	)
	if err == nil {
		t.Fatal("expected foreign key violation for an orphan outcome")
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := newSequenceCounter(s.DB())
	if err != nil {
		t.Fatalf("new sequence counter: %v", err)
	}

	for i := 0; i < 5; i++ {
		seq, err := sc.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if want := int64(i + 1); seq != want {
			t.Errorf("seq[%d] = %d, want %d", i, seq, want)
		}
	}
}

func TestBatchSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.BatchRepo()
	ctx := context.Background()

	spent := 12.5
	b := &BatchRecord{
		OwnerID:         "learner-1",
		DurationSeconds: 90,
		Outcomes: []OutcomeRecord{
			{QuestionID: "q1", AnswerText: "True", ScoreAchieved: 1, FocusLabel: "Understand", TimeSpentSeconds: &spent},
			{QuestionID: "q2", AnswerText: "photosynthesis", ScoreAchieved: 0, FocusLabel: "Use"},
		},
	}
	if err := repo.SaveBatch(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}
	if b.ID == "" {
		t.Fatal("expected generated ID")
	}
	if b.Sequence == 0 {
		t.Fatal("expected sequence to be assigned")
	}

	got, err := repo.GetBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerID != "learner-1" || got.DurationSeconds != 90 || got.OutcomeCount != 2 {
		t.Errorf("unexpected batch: %+v", got)
	}
	if len(got.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(got.Outcomes))
	}
	if got.Outcomes[0].QuestionID != "q1" || got.Outcomes[1].QuestionID != "q2" {
		t.Errorf("outcome order = %s, %s", got.Outcomes[0].QuestionID, got.Outcomes[1].QuestionID)
	}
	if got.Outcomes[0].TimeSpentSeconds == nil || *got.Outcomes[0].TimeSpentSeconds != 12.5 {
		t.Errorf("time spent = %v, want 12.5", got.Outcomes[0].TimeSpentSeconds)
	}
	if got.Outcomes[1].TimeSpentSeconds != nil {
		t.Errorf("time spent = %v, want nil", *got.Outcomes[1].TimeSpentSeconds)
	}
}

func TestGetBatchNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.BatchRepo().GetBatch(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListBatchesNewestFirst(t *testing.T) {
	s := openTestStore(t)
	repo := s.BatchRepo()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		err := repo.SaveBatch(ctx, &BatchRecord{OwnerID: fmt.Sprintf("o%d", i), DurationSeconds: float64(i)})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	all, err := repo.ListBatches(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	if all[0].OwnerID != "o3" || all[3].OwnerID != "o0" {
		t.Errorf("order = %s..%s, want o3..o0", all[0].OwnerID, all[3].OwnerID)
	}

	limited, err := repo.ListBatches(ctx, QueryOpts{Limit: 2, Before: all[0].Sequence})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 || limited[0].OwnerID != "o2" {
		t.Errorf("limited = %+v", limited)
	}

	future, err := repo.ListBatches(ctx, QueryOpts{From: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("list from: %v", err)
	}
	if len(future) != 0 {
		t.Errorf("expected no batches in the future, got %d", len(future))
	}
}

func TestLLMEventAppendAndQuery(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	err := repo.AppendLLMRequest(ctx, LLMRequestEventData{
		Provider: "mock", Model: "mock", Purpose: "answer-evaluation", QuestionID: "q-7",
		InputTokens: 120, OutputTokens: 30, LatencyMs: 850, Success: true,
		RequestBody: "[user]\ngrade this", ResponseBody: `{"marksAvailable":5,"marksAchieved":4}`,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	err = repo.AppendLLMRequest(ctx, LLMRequestEventData{
		Provider: "mock", Model: "mock", Purpose: "answer-evaluation",
		Success: false, ErrorMessage: "provider unavailable",
	})
	if err != nil {
		t.Fatalf("append failed event: %v", err)
	}

	events, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Success || events[0].ErrorMessage != "provider unavailable" || events[0].QuestionID != "" {
		t.Errorf("newest event = %+v", events[0])
	}

	e, err := repo.GetLLMEvent(ctx, events[1].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e == nil || e.InputTokens != 120 || e.ResponseBody == "" || !e.Success || e.QuestionID != "q-7" {
		t.Errorf("event = %+v", e)
	}

	missing, err := repo.GetLLMEvent(ctx, 9999)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing event")
	}
}

func TestSequenceSharedAcrossTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EventRepo().AppendLLMRequest(ctx, LLMRequestEventData{Provider: "mock", Model: "mock", Purpose: "x"}); err != nil {
		t.Fatal(err)
	}
	b := &BatchRecord{OwnerID: "o"}
	if err := s.BatchRepo().SaveBatch(ctx, b); err != nil {
		t.Fatal(err)
	}
	events, err := s.EventRepo().QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if b.Sequence <= events[0].Sequence {
		t.Errorf("batch sequence %d should follow event sequence %d", b.Sequence, events[0].Sequence)
	}
}
