package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nibzard/tasklane/internal/history"
	"github.com/nibzard/tasklane/internal/usage"
)

// DefaultBaseURL is the chat-completions API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Function describes a callable tool to the model.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request is a chat-completions request.
type Request struct {
	Model       string            `json:"model"`
	Messages    []history.Message `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature"`
	Functions   []Function        `json:"functions,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int             `json:"index"`
	Message      history.Message `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// Response is a chat-completions response.
type Response struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []Choice    `json:"choices"`
	Usage   usage.Usage `json:"usage"`
}

// Completer sends one chat-completions request.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// HTTPClient calls a chat-completions endpoint with bearer auth. It never
// retries; every failure is returned as a *TransportError.
type HTTPClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// NewHTTPClient creates a client. An empty baseURL means DefaultBaseURL and
// a non-positive timeout disables the client timeout.
func NewHTTPClient(apiKey, baseURL string, timeout time.Duration) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := &http.Client{}
	if timeout > 0 {
		hc.Timeout = timeout
	}
	return &HTTPClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
	}
}

// Complete posts req to <base>/chat/completions.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &TransportError{Status: resp.StatusCode, Message: msg}
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return &out, nil
}
