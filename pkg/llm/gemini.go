package llm

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// GeminiAdapter drives Google's Gemini API via the official
// google.golang.org/genai SDK, directly grounded on the teacher's
// pkg/model/gemini/gemini.go — same client construction, same
// GenerateContentStream iterator, same stable-function-call-ID
// fallback for providers that omit the call ID on some chunks.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

// GeminiConfig configures one GeminiAdapter instance.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGeminiAdapter constructs an adapter from cfg.
func NewGeminiAdapter(cfg GeminiConfig) (*GeminiAdapter, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &GeminiAdapter{client: client, model: cfg.Model}, nil
}

func (a *GeminiAdapter) Name() string { return "gemini/" + a.model }

func toGeminiContents(messages []Message) ([]*genai.Content, *genai.Content) {
	var systemInstruction *genai.Content
	var contents []*genai.Content

	for _, m := range messages {
		if m.Role == "system" {
			systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
			continue
		}

		var parts []*genai.Part
		if m.Content != "" {
			parts = append(parts, &genai.Part{Text: m.Content})
		}
		if m.Role == "tool" {
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.Name,
					Response: map[string]any{"result": m.Content},
				},
			})
		}
		for _, tc := range m.ToolCalls {
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Arguments},
			})
		}
		if len(parts) == 0 {
			continue
		}

		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{Parts: parts, Role: role})
	}

	return contents, systemInstruction
}

func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	return s
}

func toGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]*genai.Tool, len(tools))
	for i, t := range tools {
		out[i] = &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGeminiSchema(t.Parameters),
			}},
		}
	}
	return out
}

// stableCallID hashes name+args into a deterministic identifier for
// function calls Gemini streams without an ID — the teacher's
// generateStableFunctionCallID.
func stableCallID(name string, args map[string]any) string {
	data := map[string]any{"name": name, "args": args}
	b, _ := json.Marshal(data)
	hash := sha256.Sum256(b)
	return fmt.Sprintf("gemini-%x", hash[:16])
}

func (a *GeminiAdapter) Stream(ctx context.Context, messages []Message, tools []ToolDefinition, temperature float64, maxTokens int) (<-chan Chunk, error) {
	contents, systemInstruction := toGeminiContents(messages)
	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       genai.Ptr(float32(temperature)),
		MaxOutputTokens:   int32(maxTokens),
		Tools:             toGeminiTools(tools),
	}

	out := make(chan Chunk)
	go a.consumeStream(ctx, contents, config, out)
	return out, nil
}

func (a *GeminiAdapter) consumeStream(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig, out chan<- Chunk) {
	defer close(out)

	var inputTokens, outputTokens int
	emitted := make(map[string]bool)

	for resp, err := range a.client.Models.GenerateContentStream(ctx, a.model, contents, config) {
		if err != nil {
			out <- Chunk{Type: ChunkError, Err: fmt.Errorf("llm: gemini stream: %w", err)}
			return
		}
		if resp.UsageMetadata != nil {
			inputTokens = int(resp.UsageMetadata.PromptTokenCount)
			outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}

		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" && !part.Thought {
				out <- Chunk{Type: ChunkText, Text: part.Text}
			}
			if part.FunctionCall != nil {
				callID := part.FunctionCall.ID
				if callID == "" {
					callID = stableCallID(part.FunctionCall.Name, part.FunctionCall.Args)
				}
				if emitted[callID] {
					continue
				}
				emitted[callID] = true
				out <- Chunk{Type: ChunkToolCall, ToolCall: ToolCall{
					ID:        callID,
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				}}
			}
		}
	}

	out <- Chunk{Type: ChunkDone, InputTokens: inputTokens, OutputTokens: outputTokens}
}

func (a *GeminiAdapter) Complete(ctx context.Context, messages []Message, tools []ToolDefinition, temperature float64, maxTokens int) (string, []ToolCall, int, int, error) {
	ch, err := a.Stream(ctx, messages, tools, temperature, maxTokens)
	if err != nil {
		return "", nil, 0, 0, err
	}
	return Drain(ch)
}
