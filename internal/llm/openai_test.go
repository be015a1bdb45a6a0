package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)
	return p
}

type openAIChoice struct {
	content string
	refusal string
	finish  string
}

func openAICompletion(c openAIChoice) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg := map[string]any{"role": "assistant", "content": c.content}
		if c.refusal != "" {
			msg["refusal"] = c.refusal
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "gpt-4o-mini-2024-07-18",
			"choices": []map[string]any{{"index": 0, "message": msg, "finish_reason": c.finish}},
			"usage":   map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
		})
	}
}

func TestOpenAIProvider_Grade(t *testing.T) {
	var got struct {
		Model          string `json:"model"`
		Messages       []map[string]any
		ResponseFormat struct {
			Type       string `json:"type"`
			JSONSchema struct {
				Name   string `json:"name"`
				Strict bool   `json:"strict"`
			} `json:"json_schema"`
		} `json:"response_format"`
	}
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		openAICompletion(openAIChoice{content: `{"marksAvailable":2,"marksAchieved":1}`, finish: "stop"})(w, r)
	}

	p := newTestOpenAIProvider(t, handler)
	resp, err := p.Generate(context.Background(), gradeRequest())
	require.NoError(t, err)

	assert.JSONEq(t, `{"marksAvailable":2,"marksAchieved":1}`, string(resp.Content))
	assert.Equal(t, Usage{InputTokens: 40, OutputTokens: 25, TotalTokens: 65}, resp.Usage)
	assert.Equal(t, "end", resp.StopReason)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", resp.Model)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0]["role"])
	assert.Equal(t, "json_schema", got.ResponseFormat.Type)
	assert.Equal(t, "test-marks", got.ResponseFormat.JSONSchema.Name)
	assert.False(t, got.ResponseFormat.JSONSchema.Strict)
}

func TestOpenAIProvider_StopReasons(t *testing.T) {
	tests := []struct {
		name   string
		choice openAIChoice
		check  func(t *testing.T, err error)
	}{
		{
			name:   "truncated",
			choice: openAIChoice{content: `{"marksAvail`, finish: "length"},
			check: func(t *testing.T, err error) {
				var truncated *ErrMaxTokensExceeded
				assert.ErrorAs(t, err, &truncated)
			},
		},
		{
			name:   "refused",
			choice: openAIChoice{refusal: "I can't grade this.", finish: "stop"},
			check: func(t *testing.T, err error) {
				var invalid *ErrInvalidResponse
				assert.ErrorAs(t, err, &invalid)
			},
		},
		{
			name:   "filtered",
			choice: openAIChoice{finish: "content_filter"},
			check: func(t *testing.T, err error) {
				var invalid *ErrInvalidResponse
				assert.ErrorAs(t, err, &invalid)
			},
		},
		{
			name:   "not json",
			choice: openAIChoice{content: "Two marks.", finish: "stop"},
			check: func(t *testing.T, err error) {
				var invalid *ErrInvalidResponse
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, retryOnce, classifyRetry(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOpenAIProvider(t, openAICompletion(tt.choice))
			_, err := p.Generate(context.Background(), gradeRequest())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestOpenAIProvider_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		target any
	}{
		{http.StatusTooManyRequests, new(*ErrRateLimit)},
		{http.StatusBadRequest, new(*ErrRequestRejected)},
		{http.StatusUnauthorized, new(*ErrRequestRejected)},
		{http.StatusBadGateway, new(*ErrProviderUnavailable)},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"type": "error", "message": "nope"},
				})
			})
			_, err := p.Generate(context.Background(), gradeRequest())
			require.Error(t, err)
			assert.ErrorAs(t, err, tt.target)
		})
	}
}

func TestOpenAIProvider_PlainText(t *testing.T) {
	p := newTestOpenAIProvider(t, openAICompletion(openAIChoice{content: "hello", finish: "length"}))
	req := gradeRequest()
	req.Schema = nil

	resp, err := p.Generate(context.Background(), req)
	require.NoError(t, err, "truncation only matters for structured output")
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o"})
	assert.Error(t, err)
	assert.Equal(t, "gpt-4o", resolveModel("gpt-4o", openaiModels))
}

func TestOpenRouterConfig_OpenAI(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OpenRouterConfig
		wantURL string
	}{
		{"default base URL", OpenRouterConfig{APIKey: "sk-or-test", Model: "google/gemini-2.0-flash-exp"}, defaultOpenRouterBaseURL},
		{"custom base URL", OpenRouterConfig{APIKey: "sk-or-test", Model: "meta-llama/llama-3-8b", BaseURL: "https://proxy.example/v1"}, "https://proxy.example/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oai := tt.cfg.openAI()
			assert.Equal(t, tt.wantURL, oai.BaseURL)
			assert.Equal(t, tt.cfg.APIKey, oai.APIKey)

			p, err := NewOpenAIProvider(oai)
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Model, p.ModelID(), "vendor-prefixed model IDs pass through")
		})
	}
}

func TestNewProvider_OpenRouter(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		openAICompletion(openAIChoice{content: `{"marksAvailable":3,"marksAchieved":3}`, finish: "stop"})(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.Provider = ProviderOpenRouter
	cfg.OpenRouter = OpenRouterConfig{APIKey: "sk-or-test", Model: "anthropic/claude-3-haiku", BaseURL: server.URL + "/api/v1"}
	repo := &recordingEvents{}

	p, err := NewProvider(context.Background(), cfg, repo, nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3-haiku", p.ModelID())

	resp, err := p.Generate(context.Background(), gradeRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"marksAvailable":3,"marksAchieved":3}`, string(resp.Content))
	assert.Equal(t, "/api/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-or-test", gotAuth)
	require.Len(t, repo.events, 1)
	assert.True(t, repo.events[0].Success)

	cfg.OpenRouter.APIKey = ""
	_, err = NewProvider(context.Background(), cfg, repo, nil)
	assert.ErrorContains(t, err, "llm.openrouter.api_key")
}
