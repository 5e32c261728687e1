package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ad-refiner-go/internal/logger"
)

// Defaults mirror the gateway's behaviour for boundary refinement calls.
const (
	defaultTimeoutSeconds = 25
	defaultMaxRetryTime   = 45 * time.Second
	requestTemperature    = 0.1
	requestMaxTokens      = 4096
)

// Usage is the token accounting reported by the gateway; zero means the
// gateway didn't report a value.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the distilled model reply: first-choice content plus the
// finish reason, which distinguishes a truncated reply ("length") from a
// complete but unusable one.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Client is the model transport. One call is one logical invocation;
// implementations may retry transient gateway failures internally but never
// re-prompt.
type Client interface {
	Model() string
	Invoke(ctx context.Context, prompt string) (Response, error)
}

// Config for the OpenAI-compatible gateway client.
type Config struct {
	GatewayURL     string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// GatewayClient talks to an OpenAI-compatible chat-completions endpoint.
type GatewayClient struct {
	cfg         Config
	client      *http.Client
	maxElapsed  time.Duration
	backoffBase time.Duration // zero means the backoff package default
	log         *logger.Logger
}

var _ Client = (*GatewayClient)(nil)

// NewGatewayClient applies defaults for anything Config leaves zero.
func NewGatewayClient(cfg Config, log *logger.Logger) *GatewayClient {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultTimeoutSeconds
	}
	if log == nil {
		log = logger.New()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &GatewayClient{
		cfg:        cfg,
		client:     &http.Client{Timeout: timeout},
		maxElapsed: defaultMaxRetryTime,
		log:        log,
	}
}

// FromEnv builds the client the service uses: the mock when USE_MOCK_LLM is
// set, otherwise the gateway client from LLM_GATEWAY_URL / LLM_API_KEY /
// LLM_MODEL / LLM_TIMEOUT_SECONDS.
func FromEnv(log *logger.Logger) (Client, error) {
	if os.Getenv("USE_MOCK_LLM") == "true" {
		return NewMock(os.Getenv("LLM_MODEL")), nil
	}

	cfg := Config{
		GatewayURL: os.Getenv("LLM_GATEWAY_URL"),
		APIKey:     os.Getenv("LLM_API_KEY"),
		Model:      os.Getenv("LLM_MODEL"),
	}
	if cfg.GatewayURL == "" || cfg.APIKey == "" {
		return nil, errors.New("llm gateway not configured: set LLM_GATEWAY_URL and LLM_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if t := os.Getenv("LLM_TIMEOUT_SECONDS"); t != "" {
		if sec, err := strconv.Atoi(t); err == nil && sec > 0 {
			cfg.TimeoutSeconds = sec
		}
	}
	return NewGatewayClient(cfg, log), nil
}

func (c *GatewayClient) Model() string {
	return c.cfg.Model
}

// Invoke posts the prompt and returns the parsed reply. Gateway 5xx
// responses are retried with exponential backoff inside this single logical
// invocation; 4xx responses abort immediately. A 2xx body is parsed
// tolerantly: missing choices yield an empty Content, never an error, so the
// caller's parse-failure path can classify it.
func (c *GatewayClient) Invoke(ctx context.Context, prompt string) (Response, error) {
	log := c.log.WithComponent("llm-gateway")

	reqBody := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": requestTemperature,
		"max_tokens":  requestMaxTokens,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, fmt.Errorf("marshal llm request: %w", err)
	}

	var out Response
	var lastErr error

	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.client.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.GatewayURL, bytes.NewReader(data))
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("llm gateway status %d: %s", resp.StatusCode, preview(body))
			log.WithField("http_status", resp.StatusCode).Warn("llm gateway server error")
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("llm gateway status %d: %s", resp.StatusCode, preview(body))
			// Client errors don't get better on retry.
			return backoff.Permanent(lastErr)
		}

		out = parseCompletion(body)
		lastErr = nil
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxElapsed
	if c.backoffBase > 0 {
		b.InitialInterval = c.backoffBase
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr != nil {
			return Response{}, fmt.Errorf("llm invoke failed: %w", lastErr)
		}
		return Response{}, fmt.Errorf("llm invoke failed: %w", err)
	}
	return out, nil
}

// parseCompletion pulls content, finish_reason and usage out of an
// OpenAI-style completion body. Tolerant of missing pieces: anything absent
// degrades to its zero value.
func parseCompletion(body []byte) Response {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return Response{}
	}

	resp := Response{Usage: parseUsage(obj["usage"])}

	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return resp
	}
	c0, _ := choices[0].(map[string]any)
	if c0 == nil {
		return resp
	}

	if msg, _ := c0["message"].(map[string]any); msg != nil {
		if content, _ := msg["content"].(string); content != "" {
			resp.Content = content
		}
	}
	// Completion-style responses put the text on the choice itself.
	if resp.Content == "" {
		if text, _ := c0["text"].(string); text != "" {
			resp.Content = text
		}
	}

	if fr := c0["finish_reason"]; fr != nil {
		resp.FinishReason = fmt.Sprint(fr)
	}
	return resp
}

func parseUsage(v any) Usage {
	m, _ := v.(map[string]any)
	if m == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     usageInt(m, "prompt_tokens"),
		CompletionTokens: usageInt(m, "completion_tokens"),
		TotalTokens:      usageInt(m, "total_tokens"),
	}
}

func usageInt(m map[string]any, key string) int {
	switch t := m[key].(type) {
	case float64:
		return int(t)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
	}
	return 0
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
