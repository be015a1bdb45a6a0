package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.0-flash"},
		{"gemini-pro", "gemini-2.0-pro"},
		{"gemini-2.5-flash", "gemini-2.5-flash"}, // Pass-through
	}
	for _, tt := range tests {
		if got := resolveModel(tt.input, geminiModels); got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBuildGeminiSchema_GradingShape(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"marksAvailable": map[string]any{"type": "number", "minimum": 0},
			"marksAchieved":  map[string]any{"type": "number", "minimum": 0.0, "maximum": 10},
			"feedback":       map[string]any{"type": "string", "description": "One or two sentences for the learner"},
			"verdict":        map[string]any{"type": "string", "enum": []any{"correct", "partial", "incorrect"}},
			"concepts": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"marksAvailable", "marksAchieved"},
	}

	schema := buildGeminiSchema(def)

	if schema.Type != genai.TypeObject {
		t.Fatalf("type = %s, want OBJECT", schema.Type)
	}
	if len(schema.Properties) != 5 {
		t.Fatalf("properties = %d, want 5", len(schema.Properties))
	}

	avail := schema.Properties["marksAvailable"]
	if avail.Type != genai.TypeNumber {
		t.Errorf("marksAvailable type = %s, want NUMBER", avail.Type)
	}
	if avail.Minimum == nil || *avail.Minimum != 0 {
		t.Errorf("marksAvailable minimum = %v, want 0", avail.Minimum)
	}
	achieved := schema.Properties["marksAchieved"]
	if achieved.Maximum == nil || *achieved.Maximum != 10 {
		t.Errorf("marksAchieved maximum = %v, want 10", achieved.Maximum)
	}
	if avail.Maximum != nil {
		t.Errorf("marksAvailable should have no maximum")
	}

	if schema.Properties["feedback"].Description == "" {
		t.Error("feedback description dropped")
	}
	if n := len(schema.Properties["verdict"].Enum); n != 3 {
		t.Errorf("verdict enum = %d values, want 3", n)
	}
	concepts := schema.Properties["concepts"]
	if concepts.Type != genai.TypeArray || concepts.Items == nil || concepts.Items.Type != genai.TypeString {
		t.Errorf("concepts = %+v, want ARRAY of STRING", concepts)
	}
	if len(schema.Required) != 2 {
		t.Errorf("required = %v, want 2 fields", schema.Required)
	}
	assert.Equal(t,
		[]string{"marksAvailable", "marksAchieved", "concepts", "feedback", "verdict"},
		schema.PropertyOrdering)
}

func TestBuildGeminiSchema_StringLiterals(t *testing.T) {
	schema := buildGeminiSchema(map[string]any{
		"type":       "object",
		"properties": map[string]any{"verdict": map[string]any{"type": "string", "enum": []string{"a", "b"}}},
		"required":   []string{"verdict", "missing"},
	})
	assert.Equal(t, []string{"a", "b"}, schema.Properties["verdict"].Enum)
	assert.Equal(t, []string{"verdict"}, schema.PropertyOrdering)
	assert.Equal(t, genai.TypeString, mapGeminiType("null"))
}

func TestBuildGeminiContents_Roles(t *testing.T) {
	contents := buildGeminiContents([]Message{
		{Role: RoleUser, Content: "Grade: mitochondria"},
		{Role: RoleAssistant, Content: `{"marksAchieved":1}`},
	})
	if len(contents) != 2 {
		t.Fatalf("len = %d, want 2", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Errorf("roles = %q, %q", contents[0].Role, contents[1].Role)
	}
	if contents[0].Parts[0].Text != "Grade: mitochondria" {
		t.Errorf("text = %q", contents[0].Parts[0].Text)
	}
}

func TestMapGeminiError(t *testing.T) {
	tests := []struct {
		code   int
		target any
	}{
		{429, new(*ErrRateLimit)},
		{403, new(*ErrRequestRejected)},
		{500, new(*ErrProviderUnavailable)},
		{503, new(*ErrProviderUnavailable)},
	}
	for _, tt := range tests {
		err := mapGeminiError(context.Background(), &genai.APIError{Code: tt.code, Message: "x"})
		assert.ErrorAs(t, err, tt.target, "code %d", tt.code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := mapGeminiError(ctx, errors.New("transport closed"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeminiStopReason(t *testing.T) {
	tests := map[genai.FinishReason]string{
		genai.FinishReasonStop:      "end",
		genai.FinishReasonMaxTokens: "max_tokens",
		genai.FinishReasonSafety:    "error",
	}
	for reason, want := range tests {
		result := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: reason}}}
		assert.Equal(t, want, mapGeminiStopReason(result), string(reason))
	}
	assert.Equal(t, "end", mapGeminiStopReason(&genai.GenerateContentResponse{}))
}
