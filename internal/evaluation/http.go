package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBytes caps how much of an evaluator response is read.
const maxResponseBytes = 1 << 20

// HTTPRemote posts {questionId, answerText} to an evaluation endpoint and
// expects a ResponseSchema document back.
type HTTPRemote struct {
	url  string
	http *http.Client
}

// NewHTTPRemote creates an HTTPRemote. A nil client means http.DefaultClient.
func NewHTTPRemote(url string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRemote{url: url, http: client}
}

func (h *HTTPRemote) Evaluate(ctx context.Context, req RemoteRequest) (*RemoteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, transportError("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, transportError("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	res, err := h.http.Do(httpReq)
	if err != nil {
		return nil, transportError("post evaluation: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return nil, transportError("post evaluation: %s", res.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError("read response: %w", err)
	}
	resp, err := DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", req.QuestionID, err)
	}
	return resp, nil
}
