package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abhisek/revise/internal/llm"
	"github.com/abhisek/revise/internal/question"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"minimal", `{"marksAvailable":5,"marksAchieved":3}`, false},
		{"full", `{"marksAvailable":2,"marksAchieved":1,"feedback":"ok","correctedAnswer":"x","concepts":["a"]}`, false},
		{"missing achieved", `{"marksAvailable":5,"feedback":"great"}`, true},
		{"string marks", `{"marksAvailable":"5","marksAchieved":"3"}`, true},
		{"null marks", `{"marksAvailable":5,"marksAchieved":null}`, true},
		{"negative achieved", `{"marksAvailable":5,"marksAchieved":-1}`, true},
		{"negative available", `{"marksAvailable":-5,"marksAchieved":0}`, true},
		{"not json", `<html>oops</html>`, true},
		{"array", `[]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse([]byte(tt.raw))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, KindMalformed, KindOf(err))
		})
	}
}

func TestKindOf_DefaultsToTransport(t *testing.T) {
	assert.Equal(t, KindTransport, KindOf(errors.New("boom")))
}

func TestHTTPRemote_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"marksAvailable":5,"marksAchieved":5,"feedback":"Spot on."}`))
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, srv.Client())
	resp, err := remote.Evaluate(context.Background(), RemoteRequest{
		QuestionID: "q1",
		AnswerText: "an answer",
		Question:   question.Question{ID: "q1", Answer: "secret canonical"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, resp.MarksAchieved)
	assert.Equal(t, "Spot on.", resp.Feedback)

	assert.Equal(t, map[string]any{"questionId": "q1", "answerText": "an answer"}, got,
		"only the id and answer go over the wire")
}

func TestHTTPRemote_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"server error", http.StatusInternalServerError, `{"error":"down"}`, KindTransport},
		{"bad request", http.StatusBadRequest, `{}`, KindTransport},
		{"malformed body", http.StatusOK, `{"score":3}`, KindMalformed},
		{"negative marks", http.StatusOK, `{"marksAvailable":5,"marksAchieved":-2}`, KindMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPRemote(srv.URL, srv.Client()).Evaluate(context.Background(), RemoteRequest{QuestionID: "q"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestHTTPRemote_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPRemote(url, nil).Evaluate(context.Background(), RemoteRequest{QuestionID: "q"})
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestLLMRemote_Success(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"marksAvailable":5,"marksAchieved":3,"feedback":"Mentions chlorophyll but not glucose.","concepts":["photosynthesis"]}`),
	})
	remote := NewLLMRemote(mock, DefaultLLMRemoteConfig())

	q := longQuestion()
	q.Concepts = []string{"biology", "plants"}
	resp, err := remote.Evaluate(context.Background(), RemoteRequest{QuestionID: q.ID, AnswerText: "Chlorophyll absorbs light.", Question: q})
	require.NoError(t, err)
	assert.Equal(t, 3.0, resp.MarksAchieved)
	assert.Equal(t, []string{"photosynthesis"}, resp.Concepts)

	require.Equal(t, 1, mock.CallCount())
	req := mock.Calls[0]
	assert.Equal(t, ResponseSchema, req.Schema)
	require.Len(t, req.Messages, 1)
	msg := req.Messages[0].Content
	assert.Contains(t, msg, "Explain photosynthesis.")
	assert.Contains(t, msg, longAnswer)
	assert.Contains(t, msg, "Marks available: 5")
	assert.Contains(t, msg, "Concepts: biology, plants")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(msg), "Chlorophyll absorbs light."))
}

func TestLLMRemote_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		resp llm.MockResponse
		kind ErrorKind
	}{
		{"provider down", llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("503")}}, KindTransport},
		{"rate limited", llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}}, KindTransport},
		{"rejected", llm.MockResponse{Err: &llm.ErrRequestRejected{Status: 401, Err: errors.New("bad key")}}, KindTransport},
		{"invalid response", llm.MockResponse{Err: &llm.ErrInvalidResponse{Err: errors.New("schema")}}, KindMalformed},
		{"truncated", llm.MockResponse{Err: &llm.ErrMaxTokensExceeded{}}, KindMalformed},
		{"schema miss", llm.MockResponse{Content: json.RawMessage(`{"marksAchieved":1}`)}, KindMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := NewLLMRemote(llm.NewMockProvider(tt.resp), DefaultLLMRemoteConfig())
			_, err := remote.Evaluate(context.Background(), RemoteRequest{QuestionID: "q", Question: longQuestion()})
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestLLMRemote_EndToEndThroughEvaluator(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"marksAvailable":5}`)})
	ev := NewEvaluator(NewLLMRemote(mock, DefaultLLMRemoteConfig()), nil, 0, nil)

	r, err := ev.Evaluate(context.Background(), longQuestion(), "prose")
	require.NoError(t, err)
	assert.True(t, r.Pending)
	assert.Equal(t, feedbackUnparseable, r.Feedback)
}
