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

// OpenAIAdapter drives an OpenAI-compatible /chat/completions streaming
// endpoint, grounded on the teacher's pkg/llms/openai.go SSE loop. It
// also serves as the OpenRouter aggregator backend: OpenRouter is
// OpenAI-compatible and recognizes the optional HTTP-Referer/X-Title
// attribution headers spec.md §6 names.
type OpenAIAdapter struct {
	client      *httpclient.Client
	apiKey      string
	baseURL     string
	model       string
	httpReferer string
	xTitle      string
}

// OpenAIConfig configures one OpenAIAdapter instance.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // default "https://api.openai.com/v1"
	Model       string
	HTTPReferer string // OpenRouter attribution, optional
	XTitle      string // OpenRouter attribution, optional
}

// NewOpenAIAdapter constructs an adapter from cfg.
func NewOpenAIAdapter(cfg OpenAIConfig) *OpenAIAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIAdapter{
		client:      httpclient.New(),
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		httpReferer: cfg.HTTPReferer,
		xTitle:      cfg.XTitle,
	}
}

func (a *OpenAIAdapter) Name() string { return "openai/" + a.model }

type openAIChatRequest struct {
	Model         string              `json:"model"`
	Messages      []openAIChatMessage `json:"messages"`
	Tools         []openAITool        `json:"tools,omitempty"`
	Temperature   float64             `json:"temperature"`
	MaxTokens     int                 `json:"max_tokens,omitempty"`
	Stream        bool                `json:"stream"`
	StreamOptions *openAIStreamOpts   `json:"stream_options,omitempty"`
}

type openAIStreamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIChatMessage struct {
	Role       string             `json:"role"`
	Content    string             `json:"content,omitempty"`
	ToolCalls  []openAIToolCallOut `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	Name       string             `json:"name,omitempty"`
}

type openAIToolCallOut struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func toOpenAIMessages(messages []Message) []openAIChatMessage {
	out := make([]openAIChatMessage, len(messages))
	for i, m := range messages {
		out[i] = openAIChatMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			out[i].ToolCalls = append(out[i].ToolCalls, openAIToolCallOut{
				ID:   tc.ID,
				Type: "function",
				Function: openAIToolFunction{
					Name:      tc.Name,
					Arguments: string(argsJSON),
				},
			})
		}
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openAITool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openAITool, len(tools))
	for i, t := range tools {
		out[i] = openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

func (a *OpenAIAdapter) Stream(ctx context.Context, messages []Message, tools []ToolDefinition, temperature float64, maxTokens int) (<-chan Chunk, error) {
	reqBody, err := json.Marshal(openAIChatRequest{
		Model:         a.model,
		Messages:      toOpenAIMessages(messages),
		Tools:         toOpenAITools(tools),
		Temperature:   temperature,
		MaxTokens:     maxTokens,
		Stream:        true,
		StreamOptions: &openAIStreamOpts{IncludeUsage: true},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("llm: build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	if a.httpReferer != "" {
		httpReq.Header.Set("HTTP-Referer", a.httpReferer)
	}
	if a.xTitle != "" {
		httpReq.Header.Set("X-Title", a.xTitle)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: openai request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("llm: openai returned status %d: %s", resp.StatusCode, string(body))
	}

	out := make(chan Chunk)
	go a.consumeStream(ctx, resp.Body, out)
	return out, nil
}

func (a *OpenAIAdapter) consumeStream(ctx context.Context, body io.ReadCloser, out chan<- Chunk) {
	defer close(out)
	defer body.Close()

	reader := sse.New(body)
	acc := NewToolCallAccumulator()
	var inputTokens, outputTokens int
	sawToolCalls := false

	for {
		payload, err := reader.Next()
		if err != nil {
			if err != io.EOF {
				out <- Chunk{Type: ChunkError, Err: fmt.Errorf("llm: read openai stream: %w", err)}
				return
			}
			break
		}
		if string(payload) == "[DONE]" {
			break
		}

		var event openAIStreamEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			slog.DebugContext(ctx, "llm: dropped unparseable openai stream event", "error", err)
			continue
		}

		if event.Usage != nil {
			inputTokens = event.Usage.PromptTokens
			outputTokens = event.Usage.CompletionTokens
		}

		for _, choice := range event.Choices {
			if choice.Delta.Content != "" {
				out <- Chunk{Type: ChunkText, Text: choice.Delta.Content}
			}
			for _, tc := range choice.Delta.ToolCalls {
				sawToolCalls = true
				acc.Add(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
			}
		}
	}

	if sawToolCalls {
		for _, tc := range acc.Finalize() {
			out <- Chunk{Type: ChunkToolCall, ToolCall: tc}
		}
	}

	out <- Chunk{Type: ChunkDone, InputTokens: inputTokens, OutputTokens: outputTokens}
}

func (a *OpenAIAdapter) Complete(ctx context.Context, messages []Message, tools []ToolDefinition, temperature float64, maxTokens int) (string, []ToolCall, int, int, error) {
	ch, err := a.Stream(ctx, messages, tools, temperature, maxTokens)
	if err != nil {
		return "", nil, 0, 0, err
	}
	return Drain(ch)
}
