package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nibzard/tasklane/internal/history"
	"github.com/nibzard/tasklane/internal/usage"
)

func TestHTTPClientComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": null,
				"function_call": {"name": "delete_tasks", "arguments": "{\"ids\":[5,999]}"}}}],
			"usage": {"prompt_tokens": 500, "completion_tokens": 300, "total_tokens": 800}
		}`)
	}))
	defer srv.Close()

	c := NewHTTPClient("sk-test", srv.URL+"/v1/", time.Second)
	resp, err := c.Complete(context.Background(), Request{
		Model:       "gpt-3.5-turbo",
		Messages:    []history.Message{{Role: history.RoleUser, Content: "delete 5 and 999"}},
		MaxTokens:   500,
		Temperature: 0.7,
		Functions:   Functions(),
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	call := resp.Choices[0].Message.FunctionCall
	if call == nil || call.Name != ToolDeleteTasks || call.Arguments != `{"ids":[5,999]}` {
		t.Errorf("function call = %+v", call)
	}
	if resp.Usage != (usage.Usage{PromptTokens: 500, CompletionTokens: 300, TotalTokens: 800}) {
		t.Errorf("usage = %+v", resp.Usage)
	}

	if got["model"] != "gpt-3.5-turbo" || got["max_tokens"] != float64(500) {
		t.Errorf("request = %v", got)
	}
	if fns, ok := got["functions"].([]any); !ok || len(fns) != 6 {
		t.Errorf("functions = %v", got["functions"])
	}
}

func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "api error body",
			status:     http.StatusUnauthorized,
			body:       `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`,
			wantStatus: 401,
			wantMsg:    "Incorrect API key provided",
		},
		{
			name:       "plain body",
			status:     http.StatusBadGateway,
			body:       "upstream down",
			wantStatus: 502,
			wantMsg:    "upstream down",
		},
		{
			name:       "empty body",
			status:     http.StatusTooManyRequests,
			wantStatus: 429,
			wantMsg:    "Too Many Requests",
		},
		{
			name:       "invalid json on success",
			status:     http.StatusOK,
			body:       "not json",
			wantStatus: 200,
			wantMsg:    "invalid response body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewHTTPClient("k", srv.URL, time.Second).Complete(context.Background(), Request{Model: "m"})
			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("error = %v, want TransportError", err)
			}
			if te.Status != tt.wantStatus || te.Message != tt.wantMsg {
				t.Errorf("TransportError = %+v", te)
			}
			if calls != 1 {
				t.Errorf("server saw %d calls, want 1", calls)
			}
		})
	}
}

func TestHTTPClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient("k", url, time.Second).Complete(context.Background(), Request{Model: "m"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want TransportError", err)
	}
	if te.Status != 0 || te.Err == nil {
		t.Errorf("TransportError = %+v, want status 0 with cause", te)
	}
}

func TestOrchestratorOverHTTP(t *testing.T) {
	round := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		round++
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch round {
		case 1:
			_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":null,
				"function_call":{"name":"add_tasks","arguments":"{\"title\":\"Buy milk\"}"}}}],
				"usage":{"prompt_tokens":500,"completion_tokens":300,"total_tokens":800}}`)
		default:
			if len(req.Functions) != 0 {
				t.Error("summary round offered tools")
			}
			_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Added Buy milk."}}],
				"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)
		}
	}))
	defer srv.Close()

	store := newTestStore(t)
	tracker := usage.NewTracker(nil, usage.WithClock(fixedNow))
	orch := New(Config{APIKey: "k", BaseURL: srv.URL}, store, tracker, history.NewManager(0), WithClock(fixedNow))

	reply := orch.Ask(context.Background(), "remind me to buy milk")
	if reply.Err != nil || reply.Text != "Added Buy milk." {
		t.Fatalf("reply = %+v", reply)
	}
	if tasks := store.Tasks(); len(tasks) != 1 || !strings.EqualFold(tasks[0].Title, "buy milk") {
		t.Errorf("tasks = %+v", tasks)
	}
	stats := tracker.Stats()
	if stats.QueriesToday != 2 || stats.TotalTokens != 815 {
		t.Errorf("stats = %+v", stats)
	}
	// First round: 500*0.0015/1000 + 300*0.002/1000.
	if first := stats.Events[0].Cost; first < 0.00134999 || first > 0.00135001 {
		t.Errorf("first round cost = %v, want 0.00135", first)
	}
}
