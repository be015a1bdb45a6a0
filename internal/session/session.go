package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/revise/internal/evaluation"
	"github.com/abhisek/revise/internal/logger"
	"github.com/abhisek/revise/internal/mastery"
	"github.com/abhisek/revise/internal/question"
	"github.com/google/uuid"
)

// Options configures a Session.
type Options struct {
	// OwnerID identifies whose batch this is to the sink.
	OwnerID string

	// Remote grades answers that exact match cannot. nil means those
	// answers take the fallback path.
	Remote evaluation.Remote

	// EvalTimeout bounds one remote evaluation. Zero leaves it to the
	// transport.
	EvalTimeout time.Duration

	// BypassCache forces every evaluation to reach the remote.
	BypassCache bool

	// Sink receives the batch on completion.
	Sink Sink

	Logger *logger.Logger

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Session runs one review of an already-selected batch of questions: one
// question at a time, mark before advance, and a single batch submission
// at the end.
//
// At most one transition (SubmitAnswer, Advance, Finish, Retry) runs at a
// time; a second concurrent call gets ErrBusy. Readers and Abandon never
// block on a running transition.
type Session struct {
	id        string
	opts      Options
	questions []question.Question
	evaluator *evaluation.Evaluator
	log       *logger.Logger
	now       func() time.Time

	// ctx is cancelled by Abandon, aborting in-flight evaluations and
	// submissions.
	ctx    context.Context
	cancel context.CancelFunc

	busy sync.Mutex

	mu        sync.RWMutex
	phase     Phase
	index     int
	started   time.Time
	activated time.Time
	outcomes  []Outcome
	result    *evaluation.Result
	submitted bool
	err       error
}

// New starts a session over questions. Each question is classified up front.
// An empty batch yields a session already in PhaseError.
func New(questions []question.Question, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	log := opts.Logger.With("session_id", id)

	s := &Session{
		id:        id,
		opts:      opts,
		questions: question.ClassifyAll(questions),
		evaluator: evaluation.NewEvaluator(opts.Remote, evaluation.NewCache(opts.BypassCache), opts.EvalTimeout, log),
		log:       log,
		now:       opts.Now,
		ctx:       ctx,
		cancel:    cancel,
		phase:     PhaseLoading,
	}

	if len(s.questions) == 0 {
		s.phase = PhaseError
		s.err = ErrEmptyBatch
		log.Warn("session started without questions")
		return s
	}

	s.started = s.now()
	s.activated = s.started
	s.phase = PhaseActive
	log.Info("session started", "questions", len(s.questions))
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns a snapshot of the session's position.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	st := State{
		Phase:        s.phase,
		CurrentIndex: s.index,
		Total:        len(s.questions),
		Submitted:    s.submitted,
		Err:          s.err,
	}
	if s.err != nil {
		st.Message = s.err.Error()
		var se *SubmitError
		if errors.As(s.err, &se) {
			st.Message = se.Message
		}
	}
	return st
}

// Current returns the question at the cursor while the session is active
// or marked.
func (s *Session) Current() (question.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase != PhaseActive && s.phase != PhaseMarked {
		return question.Question{}, false
	}
	return s.questions[s.index], true
}

// Result returns the evaluation of the current question once it is marked.
func (s *Session) Result() *evaluation.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Outcomes returns a copy of the outcomes recorded so far, in question order.
func (s *Session) Outcomes() []Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// SubmitAnswer marks the current question. It moves the session from active
// to marked and records the question's outcome. A pending evaluation is
// recorded with a score of 0.
func (s *Session) SubmitAnswer(ctx context.Context, answer string) (*evaluation.Result, error) {
	if !s.busy.TryLock() {
		return nil, ErrBusy
	}
	defer s.busy.Unlock()

	s.mu.RLock()
	phase, q := s.phase, question.Question{}
	if phase == PhaseActive {
		q = s.questions[s.index]
	}
	s.mu.RUnlock()

	if phase != PhaseActive {
		return nil, transitionError("submit answer", phase)
	}
	if strings.TrimSpace(answer) == "" {
		return nil, ErrEmptyAnswer
	}

	opCtx, done := s.opContext(ctx)
	defer done()

	r, err := s.evaluator.Evaluate(opCtx, q, answer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseAbandoned {
		return nil, ErrAbandoned
	}
	if err != nil {
		return nil, err
	}

	markedAt := s.now()
	spent := markedAt.Sub(s.activated).Seconds()
	s.outcomes = append(s.outcomes, Outcome{
		QuestionID:    q.ID,
		AnswerText:    answer,
		ScoreAchieved: r.ScoreOrZero(),
		FocusLabel:    mastery.StageToFocus(r.NextStage),
		TimeSpent:     &spent,
	})
	s.result = r
	s.phase = PhaseMarked

	move := mastery.StageTransition{QuestionID: q.ID, From: q.CurrentStage(), To: r.NextStage}
	s.log.Info("question marked",
		"question_id", q.ID, "index", s.index, "method", r.Method,
		"correct", r.Correct, "pending", r.Pending,
		"stage", move.String(), "direction", move.Direction())
	return r, nil
}

// Advance moves past a marked question. Past the last question the session
// completes, which validates and submits the outcomes before returning. A
// failed submission is returned as a *SubmitError alongside the terminal
// state; the outcomes stay available for Retry.
func (s *Session) Advance(ctx context.Context) (State, error) {
	if !s.busy.TryLock() {
		return s.State(), ErrBusy
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	if s.phase != PhaseMarked {
		st := s.stateLocked()
		s.mu.Unlock()
		return st, transitionError("advance", st.Phase)
	}
	if s.index < len(s.questions)-1 {
		s.index++
		s.result = nil
		s.activated = s.now()
		s.phase = PhaseActive
		st := s.stateLocked()
		s.mu.Unlock()
		return st, nil
	}
	s.phase = PhaseComplete
	s.mu.Unlock()

	return s.submit(ctx)
}

// Finish ends the session early with the outcomes recorded so far. An
// unanswered current question is dropped. Finishing with no outcomes skips
// submission and succeeds immediately.
func (s *Session) Finish(ctx context.Context) (State, error) {
	if !s.busy.TryLock() {
		return s.State(), ErrBusy
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	if s.phase != PhaseActive && s.phase != PhaseMarked {
		st := s.stateLocked()
		s.mu.Unlock()
		return st, transitionError("finish", st.Phase)
	}
	s.phase = PhaseComplete
	s.result = nil
	s.mu.Unlock()

	s.log.Info("session finished early", "outcomes", len(s.Outcomes()))
	return s.submit(ctx)
}

// Retry resubmits the preserved outcomes after a failed submission. The
// session never retries on its own.
func (s *Session) Retry(ctx context.Context) (State, error) {
	if !s.busy.TryLock() {
		return s.State(), ErrBusy
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	if s.phase != PhaseComplete || s.submitted || s.err == nil {
		st := s.stateLocked()
		s.mu.Unlock()
		return st, transitionError("retry", st.Phase)
	}
	s.err = nil
	s.mu.Unlock()

	s.log.Info("retrying submission")
	return s.submit(ctx)
}

// Abandon cancels any in-flight evaluation or submission and discards the
// outcomes. It is a no-op on a session that is already abandoned.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseAbandoned {
		return
	}
	s.cancel()
	s.phase = PhaseAbandoned
	s.outcomes = nil
	s.result = nil
	s.log.Info("session abandoned")
}

// submit validates and sends the batch. The caller holds busy and has moved
// the session to PhaseComplete.
func (s *Session) submit(ctx context.Context) (State, error) {
	s.mu.RLock()
	batch := Batch{
		OwnerID:         s.opts.OwnerID,
		DurationSeconds: max(0, s.now().Sub(s.started).Seconds()),
		Outcomes:        make([]Outcome, len(s.outcomes)),
	}
	copy(batch.Outcomes, s.outcomes)
	s.mu.RUnlock()

	if len(batch.Outcomes) == 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.submitted = true
		s.log.Info("session complete with nothing to submit")
		return s.stateLocked(), nil
	}

	err := ValidateBatch(batch)
	if err == nil && s.opts.Sink == nil {
		err = &SubmitError{Kind: evaluation.KindTransport, Message: "no submission sink configured"}
	}
	if err == nil {
		opCtx, done := s.opContext(ctx)
		err = s.opts.Sink.Submit(opCtx, batch)
		done()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseAbandoned {
		return s.stateLocked(), ErrAbandoned
	}
	if err != nil {
		se := asSubmitError(err)
		s.err = se
		s.log.Warn("batch submission failed", "kind", se.Kind, "error", se)
		return s.stateLocked(), se
	}

	s.submitted = true
	s.log.Info("batch submitted", "outcomes", len(batch.Outcomes), "duration_seconds", batch.DurationSeconds)
	return s.stateLocked(), nil
}

// opContext derives a context that is cancelled by either ctx or Abandon.
func (s *Session) opContext(ctx context.Context) (context.Context, func()) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}
