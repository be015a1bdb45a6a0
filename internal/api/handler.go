// Package api exposes review sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/revise/internal/evaluation"
	"github.com/abhisek/revise/internal/logger"
	"github.com/abhisek/revise/internal/question"
	"github.com/abhisek/revise/internal/session"
)

// maxBody caps request bodies. A batch of questions is the largest.
const maxBody = 4 << 20

// Options configures the sessions created by a Handler.
type Options struct {
	// DefaultOwnerID is used when a create request omits ownerId.
	DefaultOwnerID string

	Remote      evaluation.Remote
	EvalTimeout time.Duration
	BypassCache bool
	Sink        session.Sink
	Logger      *logger.Logger
}

// Handler owns an in-memory registry of sessions and serves them.
type Handler struct {
	opts Options
	log  *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// New creates a Handler.
func New(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Handler{
		opts:     opts,
		log:      opts.Logger,
		sessions: make(map[string]*session.Session),
	}
}

// Routes returns the router with all endpoints and middleware.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.abandonSession)
			r.Get("/outcomes", h.getOutcomes)
			r.Post("/answer", h.submitAnswer)
			r.Post("/advance", h.transition(func(ctx context.Context, s *session.Session) (session.State, error) {
				return s.Advance(ctx)
			}))
			r.Post("/finish", h.transition(func(ctx context.Context, s *session.Session) (session.State, error) {
				return s.Finish(ctx)
			}))
			r.Post("/retry", h.transition(func(ctx context.Context, s *session.Session) (session.State, error) {
				return s.Retry(ctx)
			}))
		})
	})
	return r
}

// Len reports how many sessions are registered.
func (h *Handler) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close abandons every live session.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		if !s.State().Phase.Terminal() {
			s.Abandon()
		}
	}
}

type questionView struct {
	ID             string        `json:"id"`
	Text           string        `json:"text"`
	Type           question.Type `json:"type"`
	Options        []string      `json:"options,omitempty"`
	ScoreAvailable float64       `json:"scoreAvailable"`
	Stage          int           `json:"stage"`
}

type sessionView struct {
	ID       string             `json:"id"`
	State    session.State      `json:"state"`
	Question *questionView      `json:"question,omitempty"`
	Result   *evaluation.Result `json:"result,omitempty"`
}

// view renders s without leaking canonical answers.
func view(s *session.Session) sessionView {
	v := sessionView{ID: s.ID(), State: s.State()}
	if q, ok := s.Current(); ok {
		v.Question = &questionView{
			ID:             q.ID,
			Text:           q.Text,
			Type:           q.Type,
			Options:        q.Options,
			ScoreAvailable: q.Marks(),
			Stage:          q.CurrentStage(),
		}
		if v.State.Phase == session.PhaseMarked {
			v.Result = s.Result()
		}
	}
	return v
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrorResponse{Error: "could not read body"}, err)
		return
	}
	batch, err := question.ParseBatch(raw)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrorResponse{Error: err.Error()}, err)
		return
	}
	if len(batch.Questions) == 0 {
		h.respondError(w, r, http.StatusBadRequest, ErrorResponse{Error: session.ErrEmptyBatch.Error()}, session.ErrEmptyBatch)
		return
	}

	owner := strings.TrimSpace(batch.OwnerID)
	if owner == "" {
		owner = h.opts.DefaultOwnerID
	}
	s := session.New(batch.Questions, session.Options{
		OwnerID:     owner,
		Remote:      h.opts.Remote,
		EvalTimeout: h.opts.EvalTimeout,
		BypassCache: h.opts.BypassCache,
		Sink:        h.opts.Sink,
		Logger:      h.log,
	})

	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()

	h.respondJSON(w, http.StatusCreated, view(s))
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		h.respondError(w, r, http.StatusNotFound, ErrorResponse{Error: "session not found"}, nil)
	}
	return s, ok
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, view(s))
}

func (h *Handler) getOutcomes(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"outcomes": s.Outcomes()})
}

type answerRequest struct {
	AnswerText string `json:"answerText"`
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"}, err)
		return
	}

	if _, err := s.SubmitAnswer(r.Context(), req.AnswerText); err != nil {
		h.sessionError(w, r, s, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view(s))
}

func (h *Handler) transition(op func(context.Context, *session.Session) (session.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.lookup(w, r)
		if !ok {
			return
		}
		if _, err := op(r.Context(), s); err != nil {
			h.sessionError(w, r, s, err)
			return
		}
		h.respondJSON(w, http.StatusOK, view(s))
	}
}

func (h *Handler) abandonSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if s.State().Phase.Terminal() {
		h.sessionError(w, r, s, session.ErrInvalidTransition)
		return
	}
	s.Abandon()
	h.respondJSON(w, http.StatusOK, view(s))
}

// sessionError maps session failures onto HTTP statuses. Submission
// failures carry the session state so the caller can offer a retry.
func (h *Handler) sessionError(w http.ResponseWriter, r *http.Request, s *session.Session, err error) {
	st := s.State()
	body := ErrorResponse{Error: err.Error(), State: &st}

	var se *session.SubmitError
	switch {
	case errors.As(err, &se):
		body.Error = se.Message
		body.Kind = string(se.Kind)
		status := http.StatusBadGateway
		if se.Kind == evaluation.KindValidation {
			status = http.StatusUnprocessableEntity
		}
		h.respondError(w, r, status, body, err)
	case errors.Is(err, session.ErrEmptyAnswer):
		h.respondError(w, r, http.StatusBadRequest, body, err)
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrInvalidTransition):
		h.respondError(w, r, http.StatusConflict, body, err)
	case errors.Is(err, session.ErrAbandoned):
		h.respondError(w, r, http.StatusGone, body, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.respondError(w, r, http.StatusServiceUnavailable, body, err)
	default:
		h.respondError(w, r, http.StatusInternalServerError, body, err)
	}
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
