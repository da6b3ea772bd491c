package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentflow/core/pkg/llm"
	"github.com/agentflow/core/pkg/logger"
	"github.com/agentflow/core/pkg/model"
	"github.com/agentflow/core/pkg/store"
)

// defaultExtractionBatchSize mirrors spec.md §4.12's "batches them
// (default 10)".
const defaultExtractionBatchSize = 10

const extractionPrompt = `You are extracting durable long-term memories from a conversation transcript.
Read the messages below and identify facts, preferences, events, or skills worth
remembering beyond this conversation. Respond with ONLY a JSON array — no prose,
no markdown fences — where each element has the shape:
{"content": string, "content_type": "fact"|"preference"|"event"|"skill"|"document", "categories": [string], "importance": number between 0 and 1}
If nothing is worth remembering, respond with an empty array: []

Transcript:
%s`

// MemoryCreator is the subset of pkg/memory.Service the extractor needs:
// embedding and persisting a new Memory.
type MemoryCreator interface {
	Create(ctx context.Context, content string, contentType model.ContentType, categories []string, importance float64, confidence *float64, source model.MemorySource) (string, error)
}

// Extraction implements the background memory-extraction job of
// spec.md §4.12, grounded on the teacher's context/extraction package's
// batch-then-LLM-then-parse shape (pkg/context/extraction/mcp_extractor.go
// runs a structurally similar "call the model, parse a JSON result"
// loop, generalized here from MCP resource extraction to conversation
// transcripts).
type Extraction struct {
	agents        store.AgentStore
	conversations store.ConversationStore
	llmManager    *llm.Manager
	memories      MemoryCreator
	batchSize     int
}

// NewExtraction constructs an Extraction job runner.
func NewExtraction(agents store.AgentStore, conversations store.ConversationStore, llmManager *llm.Manager, memories MemoryCreator, batchSize int) *Extraction {
	if batchSize <= 0 {
		batchSize = defaultExtractionBatchSize
	}
	return &Extraction{agents: agents, conversations: conversations, llmManager: llmManager, memories: memories, batchSize: batchSize}
}

// extractedMemory is one element of the LLM's requested JSON array.
type extractedMemory struct {
	Content     string   `json:"content"`
	ContentType string   `json:"content_type"`
	Categories  []string `json:"categories"`
	Importance  float64  `json:"importance"`
}

// Extract scans conversationID for unprocessed messages and runs every
// outstanding batch through the extraction prompt, persisting valid
// results as new Memories and marking processed messages as it goes. A
// batch whose LLM response fails to parse as JSON is logged and skipped
// — left unprocessed for the next invocation to retry — rather than
// failing the whole run.
func (e *Extraction) Extract(ctx context.Context, conversationID string) error {
	log := logger.FromContext(ctx).With("conversation_id", conversationID)

	conversation, err := e.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("extraction: load conversation: %w", err)
	}
	agent, err := e.agents.GetAgent(ctx, conversation.AgentSlug)
	if err != nil {
		return fmt.Errorf("extraction: load agent %s: %w", conversation.AgentSlug, err)
	}
	adapter, err := e.llmManager.Resolve(agent.Primary.Backend, agent.Primary.Model)
	if err != nil {
		return fmt.Errorf("extraction: resolve adapter: %w", err)
	}

	for {
		batch, err := e.conversations.UnprocessedMessages(ctx, conversationID, e.batchSize)
		if err != nil {
			return fmt.Errorf("extraction: load unprocessed messages: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		if err := e.processBatch(ctx, conversationID, agent, adapter, batch); err != nil {
			log.Warn("extraction batch failed, will retry next invocation", "error", err)
			return nil
		}

		if len(batch) < e.batchSize {
			return nil
		}
	}
}

func (e *Extraction) processBatch(ctx context.Context, conversationID string, agent *model.Agent, adapter llm.Adapter, batch []model.Message) error {
	transcript := formatTranscript(batch)
	prompt := fmt.Sprintf(extractionPrompt, transcript)

	text, _, _, _, err := adapter.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, agent.Primary.Temperature, agent.Primary.MaxTokens)
	if err != nil {
		return fmt.Errorf("extraction: llm call: %w", err)
	}

	var extracted []extractedMemory
	if err := json.Unmarshal([]byte(text), &extracted); err != nil {
		return fmt.Errorf("extraction: parse llm response: %w", err)
	}

	messageIDs := make([]string, len(batch))
	for i, m := range batch {
		messageIDs[i] = m.ID
	}

	confidence := 0.8
	source := model.MemorySource{
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
		ExtractedAt:    time.Now().UTC(),
	}

	for _, em := range extracted {
		if em.Content == "" {
			continue
		}
		if _, err := e.memories.Create(ctx, em.Content, model.ContentType(em.ContentType), em.Categories, em.Importance, &confidence, source); err != nil {
			return fmt.Errorf("extraction: create memory: %w", err)
		}
	}

	if err := e.conversations.MarkMessagesProcessed(ctx, conversationID, messageIDs); err != nil {
		return fmt.Errorf("extraction: mark messages processed: %w", err)
	}
	return nil
}

func formatTranscript(messages []model.Message) string {
	var out string
	for _, m := range messages {
		out += fmt.Sprintf("%s: %s\n", m.Role, m.Content)
	}
	return out
}

var _ Extractor = (*Extraction)(nil)
