package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestGateway builds a client pointed at ts with fast retries.
func newTestGateway(ts *httptest.Server) *GatewayClient {
	c := NewGatewayClient(Config{
		GatewayURL: ts.URL,
		APIKey:     "test-key",
		Model:      "gpt-4o-mini",
	}, nil)
	c.backoffBase = time.Millisecond // fast retries in tests
	return c
}

func completionBody() string {
	return `{
		"choices": [
			{"message": {"content": "refined boundaries ready"}, "finish_reason": "stop"}
		],
		"usage": {"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18}
	}`
}

func TestGatewayClient_InvokeSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("expected JSON content type, got %q", got)
		}

		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			MaxTokens   int     `json:"max_tokens"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "gpt-4o-mini" {
			t.Errorf("expected model gpt-4o-mini, got %q", body.Model)
		}
		if body.Temperature != 0.1 {
			t.Errorf("expected temperature 0.1, got %v", body.Temperature)
		}
		if body.MaxTokens != 4096 {
			t.Errorf("expected max_tokens 4096, got %d", body.MaxTokens)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
			t.Fatalf("expected a single user message, got %+v", body.Messages)
		}
		if body.Messages[0].Content != "refine these boundaries" {
			t.Errorf("expected the prompt in the message, got %q", body.Messages[0].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody())
	}))
	defer ts.Close()

	c := newTestGateway(ts)
	resp, err := c.Invoke(context.Background(), "refine these boundaries")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "refined boundaries ready" {
		t.Errorf("expected content, got %q", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("expected finish reason stop, got %q", resp.FinishReason)
	}
	if resp.Usage.PromptTokens != 11 || resp.Usage.CompletionTokens != 7 || resp.Usage.TotalTokens != 18 {
		t.Errorf("expected usage 11/7/18, got %+v", resp.Usage)
	}
}

func TestGatewayClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error": "temporary failure"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody())
	}))
	defer ts.Close()

	c := newTestGateway(ts)
	resp, err := c.Invoke(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if resp.Content != "refined boundaries ready" {
		t.Errorf("expected content after retries, got %q", resp.Content)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", got)
	}
}

func TestGatewayClient_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "bad key"}`)
	}))
	defer ts.Close()

	c := newTestGateway(ts)
	_, err := c.Invoke(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("expected the status in the error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly 1 call for a client error, got %d", got)
	}
}

func TestGatewayClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, completionBody())
	}))
	defer ts.Close()

	c := newTestGateway(ts)
	c.client.Timeout = 50 * time.Millisecond
	c.maxElapsed = 200 * time.Millisecond

	_, err := c.Invoke(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestParseCompletion_Tolerant(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Response
	}{
		{"empty object", `{}`, Response{}},
		{"not json", `oops`, Response{}},
		{
			"completion style text field",
			`{"choices": [{"text": "plain text", "finish_reason": "stop"}]}`,
			Response{Content: "plain text", FinishReason: "stop"},
		},
		{
			"usage tokens as strings",
			`{"choices": [{"message": {"content": "x"}}], "usage": {"prompt_tokens": "101"}}`,
			Response{Content: "x", Usage: Usage{PromptTokens: 101}},
		},
		{
			"usage without choices",
			`{"usage": {"total_tokens": 42}}`,
			Response{Usage: Usage{TotalTokens: 42}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseCompletion([]byte(tc.body))
			if got != tc.want {
				t.Errorf("parseCompletion = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestFromEnv_MockWhenRequested(t *testing.T) {
	t.Setenv("USE_MOCK_LLM", "true")
	t.Setenv("LLM_MODEL", "mock-model")

	client, err := FromEnv(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := client.(*Mock); !ok {
		t.Fatalf("expected a *Mock, got %T", client)
	}
	if client.Model() != "mock-model" {
		t.Errorf("expected model mock-model, got %q", client.Model())
	}
}

func TestFromEnv_RequiresGatewayConfig(t *testing.T) {
	t.Setenv("USE_MOCK_LLM", "")
	t.Setenv("LLM_GATEWAY_URL", "")
	t.Setenv("LLM_API_KEY", "")

	if _, err := FromEnv(nil); err == nil {
		t.Fatal("expected a configuration error")
	}
}

func TestFromEnv_GatewayDefaults(t *testing.T) {
	t.Setenv("USE_MOCK_LLM", "")
	t.Setenv("LLM_GATEWAY_URL", "http://localhost:9999/v1/chat/completions")
	t.Setenv("LLM_API_KEY", "k")
	t.Setenv("LLM_MODEL", "")

	client, err := FromEnv(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Model() != "gpt-4o-mini" {
		t.Errorf("expected the default model, got %q", client.Model())
	}
}

func TestMock_RecordsPrompts(t *testing.T) {
	m := NewMock("")
	if m.Model() != "mock" {
		t.Errorf("expected model mock, got %q", m.Model())
	}

	resp, err := m.Invoke(context.Background(), "first prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("expected finish reason stop, got %q", resp.FinishReason)
	}
	if resp.Content == "" {
		t.Error("expected canned content")
	}

	_, _ = m.Invoke(context.Background(), "second prompt")
	if len(m.Prompts) != 2 || m.Prompts[0] != "first prompt" {
		t.Errorf("expected recorded prompts, got %v", m.Prompts)
	}
}
