package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnthropicProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// The SDK retries 429 and 5xx itself; keep that out of the tests.
	client := anthropic.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	return &AnthropicProvider{client: &client, model: "claude-haiku-4-5-20251001"}
}

func anthropicMessage(text, stopReason string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": text}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": stopReason,
			"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
		})
	}
}

func anthropicStatus(status int, errType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": errType, "message": "nope"},
		})
	}
}

func gradeRequest() Request {
	return Request{
		System:    "You grade short written answers.",
		Messages:  []Message{{Role: RoleUser, Content: "Grade this answer."}},
		Schema:    marksSchema(),
		MaxTokens: 256,
	}
}

func TestAnthropicProvider_Grade(t *testing.T) {
	var got map[string]any
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		anthropicMessage(`{"marksAvailable":2,"marksAchieved":2}`, "end_turn")(w, r)
	}

	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", Model: "claude-haiku", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), gradeRequest())
	require.NoError(t, err)

	assert.JSONEq(t, `{"marksAvailable":2,"marksAchieved":2}`, string(resp.Content))
	assert.Equal(t, Usage{InputTokens: 50, OutputTokens: 30, TotalTokens: 80}, resp.Usage)
	assert.Equal(t, "end", resp.StopReason)
	assert.Equal(t, "claude-haiku-4-5-20251001", resp.Model)

	assert.Equal(t, "claude-haiku-4-5-20251001", got["model"])
	assert.EqualValues(t, 256, got["max_tokens"])
	assert.NotContains(t, got, "temperature", "zero temperature is left to the API default")
}

func TestAnthropicProvider_StopReasons(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		stop  string
		check func(t *testing.T, err error)
	}{
		{
			name: "truncated",
			text: `{"marksAvailable":2,"marks`,
			stop: "max_tokens",
			check: func(t *testing.T, err error) {
				var truncated *ErrMaxTokensExceeded
				require.ErrorAs(t, err, &truncated)
				assert.Equal(t, `{"marksAvailable":2,"marks`, string(truncated.Content))
			},
		},
		{
			name: "refused",
			text: "I can't help with that.",
			stop: "refusal",
			check: func(t *testing.T, err error) {
				var invalid *ErrInvalidResponse
				assert.ErrorAs(t, err, &invalid)
			},
		},
		{
			name: "schema violation",
			text: `{"marksAvailable":2}`,
			stop: "end_turn",
			check: func(t *testing.T, err error) {
				var invalid *ErrInvalidResponse
				assert.ErrorAs(t, err, &invalid)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestAnthropicProvider(t, anthropicMessage(tt.text, tt.stop))
			_, err := p.Generate(context.Background(), gradeRequest())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestAnthropicProvider_StatusMapping(t *testing.T) {
	tests := []struct {
		status  int
		errType string
		target  any
	}{
		{http.StatusTooManyRequests, "rate_limit_error", new(*ErrRateLimit)},
		{http.StatusUnauthorized, "authentication_error", new(*ErrRequestRejected)},
		{http.StatusNotFound, "not_found_error", new(*ErrRequestRejected)},
		{http.StatusInternalServerError, "api_error", new(*ErrProviderUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.errType, func(t *testing.T) {
			p := newTestAnthropicProvider(t, anthropicStatus(tt.status, tt.errType))
			_, err := p.Generate(context.Background(), gradeRequest())
			require.Error(t, err)
			assert.ErrorAs(t, err, tt.target)
		})
	}
}

func TestAnthropicProvider_CancelledContext(t *testing.T) {
	p := newTestAnthropicProvider(t, anthropicMessage(`{}`, "end_turn"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, gradeRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, retryNever, classifyRetry(err))
}

func TestAnthropicModelMapping(t *testing.T) {
	tests := map[string]string{
		"claude-sonnet":            "claude-sonnet-4-20250514",
		"claude-haiku":             "claude-haiku-4-5-20251001",
		"claude-sonnet-4-20250514": "claude-sonnet-4-20250514",
	}
	for in, want := range tests {
		assert.Equal(t, want, resolveModel(in, anthropicModels), in)
	}

	_, err := NewAnthropicProvider(AnthropicConfig{})
	assert.Error(t, err)
}
