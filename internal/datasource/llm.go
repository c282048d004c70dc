package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/transport"
	"github.com/lattice-lang/lattice/pkg/metrics"
)

// LLMClient generates text through an llm datasource's HTTP endpoint.
// The wire format is the chat completions shape most providers speak.
type LLMClient struct {
	reg  *Registry
	http *transport.Client
}

// NewLLMClient builds a client over the registry's llm datasources.
func NewLLMClient(reg *Registry, http *transport.Client) *LLMClient {
	return &LLMClient{reg: reg, http: http}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// Generate sends the prompt and returns the first choice's text.
func (c *LLMClient) Generate(ctx context.Context, datasource, model, system, prompt string, temperature *float64, maxTokens int) (string, error) {
	ds, ok := c.reg.Datasource(datasource)
	if !ok {
		return "", fmt.Errorf("datasource: %q is not configured", datasource)
	}
	if ds.DSKind != ast.DatasourceLLM {
		return "", fmt.Errorf("datasource: %q is %s, not llm", datasource, ds.DSKind)
	}
	if model == "" {
		model = ds.Model
	}

	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	headers := map[string]string{}
	if key := ds.Options["api_key"]; key != "" {
		headers["Authorization"] = "Bearer " + key
	}

	start := time.Now()
	raw, err := c.http.PostJSON(ctx, datasource, ds.URL, headers, chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	metrics.QuerySeconds.WithLabelValues(string(ast.DatasourceLLM)).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	text, err := extractChatText(raw)
	if err != nil {
		return "", fmt.Errorf("datasource %q: %w", datasource, err)
	}
	return text, nil
}

// extractChatText pulls the generated text out of a chat completions
// response, with a fallback for providers that return {"text": ...}.
func extractChatText(raw any) (string, error) {
	body, ok := raw.(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected response shape %T", raw)
	}
	if choices, ok := body["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
			if text, ok := choice["text"].(string); ok {
				return text, nil
			}
		}
	}
	if text, ok := body["text"].(string); ok {
		return text, nil
	}
	return "", fmt.Errorf("response has no generated text")
}
