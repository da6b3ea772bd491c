package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/agentflow/core/pkg/httpclient"
	"github.com/agentflow/core/pkg/llm/internal/sse"
)

// OllamaAdapter drives a local Ollama /api/chat streaming endpoint.
// Ollama's chat stream is newline-delimited JSON rather than "data:"
// framed SSE, so Stream reads it with internal/sse's RawLineReader
// instead of the "data:" Reader — the same ReadBytes('\n') idiom (and
// the same 64KB-Scanner-limit rationale) the sse package documents.
type OllamaAdapter struct {
	client  *httpclient.Client
	baseURL string
	model   string
}

// OllamaConfig configures one OllamaAdapter instance.
type OllamaConfig struct {
	BaseURL string // default "http://localhost:11434"
	Model   string
}

// NewOllamaAdapter constructs an adapter from cfg.
func NewOllamaAdapter(cfg OllamaConfig) *OllamaAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaAdapter{
		client:  httpclient.New(),
		baseURL: baseURL,
		model:   cfg.Model,
	}
}

func (a *OllamaAdapter) Name() string { return "ollama/" + a.model }

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    []ollamaTool        `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatMessage struct {
	Role      string             `json:"role"`
	Content   string             `json:"content,omitempty"`
	ToolCalls []ollamaToolCallOut `json:"tool_calls,omitempty"`
}

type ollamaToolCallOut struct {
	Function ollamaToolFunctionOut `json:"function"`
}

type ollamaToolFunctionOut struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaTool struct {
	Type     string               `json:"type"`
	Function ollamaToolDefinition `json:"function"`
}

type ollamaToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaStreamEvent struct {
	Message struct {
		Content   string `json:"content"`
		ToolCalls []struct {
			Function struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"message"`
	Done           bool `json:"done"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func toOllamaMessages(messages []Message) []ollamaChatMessage {
	out := make([]ollamaChatMessage, len(messages))
	for i, m := range messages {
		out[i] = ollamaChatMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			out[i].ToolCalls = append(out[i].ToolCalls, ollamaToolCallOut{
				Function: ollamaToolFunctionOut{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
	}
	return out
}

func toOllamaTools(tools []ToolDefinition) []ollamaTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]ollamaTool, len(tools))
	for i, t := range tools {
		out[i] = ollamaTool{
			Type: "function",
			Function: ollamaToolDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

func (a *OllamaAdapter) Stream(ctx context.Context, messages []Message, tools []ToolDefinition, temperature float64, maxTokens int) (<-chan Chunk, error) {
	reqBody, err := json.Marshal(ollamaChatRequest{
		Model:    a.model,
		Messages: toOllamaMessages(messages),
		Tools:    toOllamaTools(tools),
		Stream:   true,
		Options:  ollamaOptions{Temperature: temperature, NumPredict: maxTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("llm: build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("llm: ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	out := make(chan Chunk)
	go a.consumeStream(ctx, resp.Body, out)
	return out, nil
}

func (a *OllamaAdapter) consumeStream(ctx context.Context, body io.ReadCloser, out chan<- Chunk) {
	defer close(out)
	defer body.Close()

	reader := sse.NewRawLines(body)
	acc := NewToolCallAccumulator()
	var inputTokens, outputTokens int
	sawToolCalls := false

	for {
		line, err := reader.Next()
		if err != nil {
			if err != io.EOF {
				out <- Chunk{Type: ChunkError, Err: fmt.Errorf("llm: read ollama stream: %w", err)}
				return
			}
			break
		}
		if len(line) == 0 {
			continue
		}

		var event ollamaStreamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			slog.DebugContext(ctx, "llm: dropped unparseable ollama stream event", "error", err)
			continue
		}

		if event.Message.Content != "" {
			out <- Chunk{Type: ChunkText, Text: event.Message.Content}
		}
		for i, tc := range event.Message.ToolCalls {
			sawToolCalls = true
			argsJSON, _ := json.Marshal(tc.Function.Arguments)
			acc.Add(i, "", tc.Function.Name, string(argsJSON))
		}
		if event.Done {
			inputTokens = event.PromptEvalCount
			outputTokens = event.EvalCount
		}
	}

	if sawToolCalls {
		for _, tc := range acc.Finalize() {
			out <- Chunk{Type: ChunkToolCall, ToolCall: tc}
		}
	}

	out <- Chunk{Type: ChunkDone, InputTokens: inputTokens, OutputTokens: outputTokens}
}

func (a *OllamaAdapter) Complete(ctx context.Context, messages []Message, tools []ToolDefinition, temperature float64, maxTokens int) (string, []ToolCall, int, int, error) {
	ch, err := a.Stream(ctx, messages, tools, temperature, maxTokens)
	if err != nil {
		return "", nil, 0, 0, err
	}
	return Drain(ch)
}
