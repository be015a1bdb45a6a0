package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups by ID that match nothing.
var ErrNotFound = errors.New("not found")

// QueryOpts configures list queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// BatchRecord is a submitted review batch as persisted locally.
type BatchRecord struct {
	ID              string
	Sequence        int64
	OwnerID         string
	DurationSeconds float64
	CreatedAt       time.Time

	// OutcomeCount is always set. Outcomes is only populated by GetBatch.
	OutcomeCount int
	Outcomes     []OutcomeRecord
}

// OutcomeRecord is one graded question inside a BatchRecord.
type OutcomeRecord struct {
	QuestionID       string
	AnswerText       string
	ScoreAchieved    float64
	FocusLabel       string
	TimeSpentSeconds *float64
}

// BatchRepo persists submitted batches.
type BatchRepo interface {
	// SaveBatch writes the batch and its outcomes in one transaction. It
	// fills in ID (when empty), Sequence and CreatedAt.
	SaveBatch(ctx context.Context, b *BatchRecord) error

	// ListBatches returns batches newest first, without outcomes.
	ListBatches(ctx context.Context, opts QueryOpts) ([]BatchRecord, error)

	// GetBatch returns one batch with its outcomes in submission order.
	GetBatch(ctx context.Context, id string) (*BatchRecord, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	QuestionID   string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLMRequestEventData.
type LLMRequestEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns the event with the given ID, or nil if none exists.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)
}
