package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/agentflow/core/pkg/httpclient"
)

// OllamaProvider drives a local Ollama embeddings endpoint, grounded on
// the teacher's pkg/embedders/ollama.go. Unlike the teacher, requests are
// not globally mutex-serialized here: that workaround guarded against a
// specific Ollama crash under concurrent embedding calls on the teacher's
// target models, which is not a constraint this runtime assumes.
type OllamaProvider struct {
	client    *httpclient.Client
	baseURL   string
	model     string
	dimension int
}

// NewOllamaProvider constructs a provider against baseURL (e.g.
// "http://localhost:11434").
func NewOllamaProvider(baseURL, model string, dimension int) *OllamaProvider {
	return &OllamaProvider{
		client:    httpclient.New(),
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: ollama request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: ollama returned status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded ollamaEmbedResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("embedding: decode ollama response: %w", err)
	}
	if len(decoded.Embedding) == 0 {
		return nil, fmt.Errorf("embedding: ollama returned an empty embedding")
	}
	return decoded.Embedding, nil
}

func (p *OllamaProvider) Dimension() int { return p.dimension }
func (p *OllamaProvider) Name() string   { return "ollama:" + p.model }
