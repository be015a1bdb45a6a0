package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/revise/internal/logger"
	"github.com/abhisek/revise/internal/mastery"
	"github.com/abhisek/revise/internal/question"
)

const (
	feedbackCorrect     = "Correct!"
	feedbackUnparseable = "The evaluation result could not be parsed. Your answer has been recorded."
	feedbackNotGraded   = "Your answer has been recorded but not yet evaluated."
)

// Evaluator marks answers, locally by exact match or through a Remote, and
// records every result in the session's cache.
type Evaluator struct {
	remote  Remote
	cache   *Cache
	timeout time.Duration
	log     *logger.Logger
}

// NewEvaluator creates an Evaluator. remote may be nil, in which case every
// question that needs remote evaluation takes the fallback path. timeout
// bounds a single remote call; zero leaves it to the transport.
func NewEvaluator(remote Remote, cache *Cache, timeout time.Duration, log *logger.Logger) *Evaluator {
	if cache == nil {
		cache = NewCache(false)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Evaluator{remote: remote, cache: cache, timeout: timeout, log: log}
}

// Cache returns the cache the evaluator writes to.
func (e *Evaluator) Cache() *Cache {
	return e.cache
}

// Evaluate marks answer against q, which must already be classified.
//
// Remote failures never surface as errors: a malformed response becomes a
// pending result, and a transport failure falls back to exact match when the
// question type allows it, or to pending otherwise. The error return is
// reserved for a cancelled ctx and for questions with no usable method.
func (e *Evaluator) Evaluate(ctx context.Context, q question.Question, answer string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r, ok := e.cache.Get(q.ID, answer); ok {
		e.log.Debug("evaluation cache hit", "question_id", q.ID)
		return r, nil
	}

	var (
		r   *Result
		err error
	)
	switch m := question.SelectMethod(q); m {
	case question.MethodExactMatch:
		r = ExactMatch(q, answer)
	case question.MethodRemoteEvaluation:
		r, err = e.evaluateRemote(ctx, q, answer)
	default:
		err = fmt.Errorf("question %s: unknown marking method %q", q.ID, m)
	}
	if err != nil {
		return nil, err
	}

	e.cache.Put(q.ID, answer, r)
	return r, nil
}

func (e *Evaluator) evaluateRemote(ctx context.Context, q question.Question, answer string) (*Result, error) {
	if e.remote == nil {
		return e.fallback(q, answer, errors.New("no remote evaluator configured")), nil
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.remote.Evaluate(callCtx, RemoteRequest{QuestionID: q.ID, AnswerText: answer, Question: q})
	if err != nil {
		// The caller gave up; nothing to record.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if KindOf(err) == KindMalformed {
			e.log.Warn("malformed evaluator response", "question_id", q.ID, "error", err)
			return pendingResult(q, feedbackUnparseable), nil
		}
		return e.fallback(q, answer, err), nil
	}

	return remoteResult(q, resp), nil
}

// fallback handles an unreachable remote evaluator.
func (e *Evaluator) fallback(q question.Question, answer string, cause error) *Result {
	if question.ExactMatchable(q.Type) {
		e.log.Warn("remote evaluation failed, falling back to exact match", "question_id", q.ID, "error", cause)
		r := ExactMatch(q, answer)
		r.Method = MethodFallbackExactMatch
		return r
	}
	e.log.Warn("remote evaluation failed, result pending", "question_id", q.ID, "error", cause)
	return pendingResult(q, feedbackNotGraded)
}

// ExactMatch marks answer by trimmed, case-insensitive comparison with the
// canonical answer. For multiple-choice questions an option marker and the
// option text it names are interchangeable.
func ExactMatch(q question.Question, answer string) *Result {
	marks := q.Marks()
	r := &Result{ScoreAvailable: marks, Method: MethodExactMatch}

	var score float64
	if answersMatch(q, answer) {
		score = marks
		r.Correct = CorrectnessTrue
		r.Feedback = feedbackCorrect
	} else {
		r.Correct = CorrectnessFalse
		r.Feedback = "Incorrect. The correct answer is: " + strings.TrimSpace(q.Answer)
		r.CorrectedAnswer = strings.TrimSpace(q.Answer)
	}
	r.Score = &score
	r.NextStage = mastery.NextStage(q.CurrentStage(), score, marks)
	return r
}

func answersMatch(q question.Question, answer string) bool {
	if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Answer)) {
		return true
	}
	if q.Type != question.TypeMultipleChoice || len(q.Options) == 0 {
		return false
	}
	want := q.OptionIndex(q.Answer)
	return want >= 0 && q.OptionIndex(answer) == want
}

func remoteResult(q question.Question, resp *RemoteResponse) *Result {
	score := resp.MarksAchieved
	r := &Result{
		Correct:         CorrectnessFalse,
		Score:           &score,
		ScoreAvailable:  resp.MarksAvailable,
		Feedback:        resp.Feedback,
		CorrectedAnswer: resp.CorrectedAnswer,
		Explanation:     resp.Explanation,
		Concepts:        resp.Concepts,
		NextStage:       mastery.NextStage(q.CurrentStage(), resp.MarksAchieved, resp.MarksAvailable),
		Method:          MethodRemoteEvaluation,
	}
	if resp.MarksAchieved > 0 {
		r.Correct = CorrectnessTrue
	}
	if strings.TrimSpace(r.Feedback) == "" {
		r.Feedback = fmt.Sprintf("You achieved %s of %s marks.",
			formatMarks(resp.MarksAchieved), formatMarks(resp.MarksAvailable))
	}
	return r
}

func pendingResult(q question.Question, feedback string) *Result {
	return &Result{
		Correct:        CorrectnessUnknown,
		ScoreAvailable: q.Marks(),
		Feedback:       feedback,
		Pending:        true,
		NextStage:      q.CurrentStage(),
		Method:         MethodPending,
	}
}
