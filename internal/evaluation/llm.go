package evaluation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/abhisek/revise/internal/llm"
)

// LLMRemoteConfig holds generation settings for LLM grading.
type LLMRemoteConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultLLMRemoteConfig returns sensible defaults.
func DefaultLLMRemoteConfig() LLMRemoteConfig {
	return LLMRemoteConfig{
		MaxTokens:   512,
		Temperature: 0.0,
	}
}

// LLMRemote grades answers by asking an LLM provider for a ResponseSchema
// document.
type LLMRemote struct {
	provider llm.Provider
	cfg      LLMRemoteConfig
}

// NewLLMRemote creates an LLM-backed remote evaluator.
func NewLLMRemote(provider llm.Provider, cfg LLMRemoteConfig) *LLMRemote {
	return &LLMRemote{provider: provider, cfg: cfg}
}

func (l *LLMRemote) Evaluate(ctx context.Context, req RemoteRequest) (*RemoteResponse, error) {
	ctx = llm.WithPurpose(ctx, "answer-evaluation")
	ctx = llm.WithQuestionID(ctx, req.QuestionID)

	userMsg, err := buildGradingMessage(req)
	if err != nil {
		return nil, transportError("build grading prompt: %w", err)
	}

	resp, err := l.provider.Generate(ctx, llm.Request{
		System: gradingSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		Schema:      ResponseSchema,
		MaxTokens:   l.cfg.MaxTokens,
		Temperature: l.cfg.Temperature,
	})
	if err != nil {
		var invalid *llm.ErrInvalidResponse
		var truncated *llm.ErrMaxTokensExceeded
		if errors.As(err, &invalid) || errors.As(err, &truncated) {
			return nil, &RemoteError{Kind: KindMalformed, Err: err}
		}
		return nil, &RemoteError{Kind: KindTransport, Err: fmt.Errorf("LLM evaluation failed: %w", err)}
	}

	// Providers validate against the schema already; this also covers the
	// mock provider, which does not.
	return DecodeResponse(resp.Content)
}

const gradingSystemPrompt = `You are a fair and consistent examiner marking a learner's answer to a study question.

Instructions:
- Compare the learner's answer with the model answer. Credit answers that express the same ideas in different words.
- Award marks between 0 and the marks available. Partial credit is allowed.
- Report marksAvailable exactly as given.
- Keep feedback to one or two sentences addressed to the learner.
- When marks were lost, give a correctedAnswer.
- List the key concepts the question tests in concepts.`

var gradingUserTemplate = template.Must(template.New("grading").Parse(`Question: {{.Question.Text}}
Model answer: {{.Question.Answer}}
Marks available: {{.Question.Marks}}
{{if .Question.Concepts}}Concepts: {{range $i, $c := .Question.Concepts}}{{if $i}}, {{end}}{{$c}}{{end}}
{{end}}
Learner's answer:
{{.AnswerText}}`))

func buildGradingMessage(req RemoteRequest) (string, error) {
	var buf bytes.Buffer
	if err := gradingUserTemplate.Execute(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}
