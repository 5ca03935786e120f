package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// OpenRouterConfig configures the HTTP-based OpenRouter client. Ported
// from the teacher's browser-fetch OpenRouter client (pkg/memory/
// openrouter.go, pkg/batch/openrouter.go) to net/http, since this core
// runs as a server process rather than inside a WASM sandbox.
type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string // defaults to https://openrouter.ai/api/v1
	Timeout time.Duration
}

// OpenRouterClient is an LLM implementation backed by OpenRouter's
// chat-completions endpoint, circuit-broken with sony/gobreaker so a
// provider outage degrades to fast ProviderErrors instead of hanging
// every caller (§7's Provider-error retry/backoff taxonomy).
type OpenRouterClient struct {
	cfg     OpenRouterConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewOpenRouterClient builds a client wrapping the given config with a
// circuit breaker. Five consecutive failures trips the breaker open for
// 30s, matching the "bounded retries, then surface" shape of §7.
func NewOpenRouterClient(cfg OpenRouterConfig, log zerolog.Logger) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openrouter-llm",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &OpenRouterClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		log:     log,
	}
}

type openRouterRequest struct {
	Model          string             `json:"model"`
	Messages       []openRouterMsg    `json:"messages"`
	Temperature    float64            `json:"temperature"`
	MaxTokens      int                `json:"max_tokens"`
	Stream         bool               `json:"stream"`
	Tools          []openRouterTool   `json:"tools,omitempty"`
	ResponseFormat *openRouterReplyFm `json:"response_format,omitempty"`
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterTool struct {
	Type     string                `json:"type"`
	Function openRouterToolFuncDef `json:"function"`
}

type openRouterToolFuncDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openRouterReplyFm struct {
	Type string `json:"type"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Complete implements LLM via OpenRouter's chat-completions endpoint.
func (c *OpenRouterClient) Complete(ctx context.Context, req CompleteRequest) (CompleteResponse, error) {
	body := openRouterRequest{
		Model:       c.cfg.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, openRouterMsg{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openRouterMsg{Role: m.Role, Content: m.Content})
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, openRouterTool{
			Type: "function",
			Function: openRouterToolFuncDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doComplete(ctx, body)
	})
	if err != nil {
		c.log.Warn().Err(err).Str("model", c.cfg.Model).Msg("openrouter completion failed")
		return CompleteResponse{}, fmt.Errorf("provider: openrouter complete: %w", err)
	}
	return result.(CompleteResponse), nil
}

func (c *OpenRouterClient) doComplete(ctx context.Context, body openRouterRequest) (CompleteResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CompleteResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return CompleteResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/kittclouds/cogmem")
	httpReq.Header.Set("X-Title", "cogmem")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return CompleteResponse{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompleteResponse{}, fmt.Errorf("read body: %w", err)
	}

	var parsed openRouterResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return CompleteResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return CompleteResponse{}, fmt.Errorf("openrouter error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return CompleteResponse{}, fmt.Errorf("openrouter http %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return CompleteResponse{}, fmt.Errorf("empty choices")
	}

	choice := parsed.Choices[0]
	var blocks []ContentBlock
	if choice.Message.Content != "" {
		blocks = append(blocks, ContentBlock{Kind: BlockText, Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		blocks = append(blocks, ContentBlock{
			Kind:      BlockToolUse,
			ToolName:  tc.Function.Name,
			ToolInput: args,
			ToolUseID: tc.ID,
		})
	}

	return CompleteResponse{
		Content:    blocks,
		StopReason: choice.FinishReason,
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
		Model: parsed.Model,
	}, nil
}
