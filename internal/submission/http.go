package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abhisek/revise/internal/evaluation"
	"github.com/abhisek/revise/internal/session"
	"golang.org/x/oauth2/clientcredentials"
)

// maxErrorBody caps how much of an error response is read for its message.
const maxErrorBody = 64 << 10

// HTTPConfig configures an HTTPSink.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration

	// When ClientID is set, requests carry a bearer token obtained with
	// the OAuth2 client-credentials grant.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// HTTPSink posts batches as JSON to a results endpoint.
type HTTPSink struct {
	url  string
	http *http.Client
}

// NewHTTPSink builds an HTTPSink from cfg.
func NewHTTPSink(cfg HTTPConfig) *HTTPSink {
	var h *http.Client
	if cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		h = cc.Client(context.Background())
	} else {
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return NewHTTPSinkWithClient(cfg.URL, h)
}

// NewHTTPSinkWithClient builds an HTTPSink that uses client as is.
func NewHTTPSinkWithClient(url string, client *http.Client) *HTTPSink {
	return &HTTPSink{url: url, http: client}
}

// Submit posts b. Any 2xx is success and the body is ignored. A 4xx is a
// validation rejection and a 5xx or network failure is a transport error.
// Other statuses are treated as a malformed response.
func (s *HTTPSink) Submit(ctx context.Context, b session.Batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return &session.SubmitError{Kind: evaluation.KindValidation, Message: "could not encode batch", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return &session.SubmitError{Kind: evaluation.KindTransport, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := s.http.Do(req)
	if err != nil {
		return &session.SubmitError{Kind: evaluation.KindTransport, Message: err.Error(), Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	msg := serverMessage(raw)
	if msg == "" {
		msg = http.StatusText(res.StatusCode)
	}
	if msg == "" {
		msg = res.Status
	}

	kind := evaluation.KindMalformed
	switch res.StatusCode / 100 {
	case 4:
		kind = evaluation.KindValidation
	case 5:
		kind = evaluation.KindTransport
	}
	return &session.SubmitError{
		Kind:    kind,
		Message: msg,
		Err:     fmt.Errorf("post batch: %s", res.Status),
	}
}

// serverMessage extracts a human-readable message from an error body of the
// form {"message": "..."} or {"error": "..."}. It returns "" when there is none.
func serverMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if m := strings.TrimSpace(body.Message); m != "" {
		return m
	}
	switch e := body.Error.(type) {
	case string:
		return strings.TrimSpace(e)
	case map[string]any:
		if m, ok := e["message"].(string); ok {
			return strings.TrimSpace(m)
		}
	}
	return ""
}
