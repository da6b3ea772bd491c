// Package orchestrator implements the message-processing pipeline (C11):
// the ten steps of spec.md §4.11 that turn one user utterance into a
// streamed assistant reply, touching every other component in the
// runtime. No single teacher file matches this shape — hector's own
// agent loop runs a different, multi-turn ReAct continuation rather than
// spec.md's single-turn-per-request pipeline — so this package is
// original code written in the teacher's idiom: explicit context
// plumbing, log/slog structured logging keyed by conversation/agent,
// errors wrapped with %w, one OpenTelemetry span per turn.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentflow/core/pkg/contextbuilder"
	"github.com/agentflow/core/pkg/llm"
	"github.com/agentflow/core/pkg/logger"
	"github.com/agentflow/core/pkg/model"
	"github.com/agentflow/core/pkg/store"
	"github.com/agentflow/core/pkg/tool"
)

var tracer = otel.Tracer("github.com/agentflow/core/pkg/orchestrator")

// Extractor is the subset of pkg/memory's background-extraction entry
// point the orchestrator schedules after a turn, kept as an interface so
// tests can substitute a no-op.
type Extractor interface {
	Extract(ctx context.Context, conversationID string) error
}

// Router is the subset of pkg/tool.Router the orchestrator dispatches
// captured tool calls through.
type Router interface {
	Describe() []tool.Info
	Execute(ctx context.Context, name string, args map[string]any, timeout time.Duration) tool.Result
}

// Orchestrator wires every other component into the single pipeline of
// spec.md §4.11.
type Orchestrator struct {
	agents        store.AgentStore
	conversations store.ConversationStore
	longTerm      contextbuilder.LongTermMemory
	llmManager    *llm.Manager
	router        Router
	extractor     Extractor
	toolTimeout   time.Duration
}

// New constructs an Orchestrator. longTerm and router may be nil when an
// agent never needs memory or tools; extractor may be nil to disable
// background extraction scheduling entirely (tests, or a deployment that
// runs extraction out-of-process).
func New(agents store.AgentStore, conversations store.ConversationStore, longTerm contextbuilder.LongTermMemory, llmManager *llm.Manager, router Router, extractor Extractor, toolTimeout time.Duration) *Orchestrator {
	if toolTimeout <= 0 {
		toolTimeout = 300 * time.Second
	}
	return &Orchestrator{
		agents:        agents,
		conversations: conversations,
		longTerm:      longTerm,
		llmManager:    llmManager,
		router:        router,
		extractor:     extractor,
		toolTimeout:   toolTimeout,
	}
}

// ChunkType tags one event on the orchestrator's external streaming
// contract — the same taxonomy as llm.ChunkType, since process_message's
// caller-facing stream is a thin superset of an adapter's own stream
// (plus the tool-result marker text spec.md §4.11 step 9 describes).
type ChunkType = llm.ChunkType

const (
	ChunkText     = llm.ChunkText
	ChunkToolCall = llm.ChunkToolCall
	ChunkDone     = llm.ChunkDone
	ChunkError    = llm.ChunkError
)

// Chunk is one event on process_message's output channel.
type Chunk struct {
	Type         ChunkType
	Text         string
	ToolCall     llm.ToolCall
	InputTokens  int
	OutputTokens int
	Err          error
}

// ProcessMessage runs spec.md §4.11's ten steps and returns a channel of
// Chunk, closed once the turn (including tool execution) is complete.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID, userText string) (<-chan Chunk, error) {
	out := make(chan Chunk, 16)

	ctx, span := tracer.Start(ctx, "orchestrator.ProcessMessage",
		trace.WithAttributes(attribute.String("conversation_id", conversationID)))

	log := logger.FromContext(ctx).With("conversation_id", conversationID)
	ctx = logger.WithContext(ctx, log)

	go func() {
		defer span.End()
		defer close(out)
		o.run(ctx, span, out, conversationID, userText, log)
	}()

	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, span trace.Span, out chan<- Chunk, conversationID, userText string, log interface {
	Error(string, ...any)
	Info(string, ...any)
	Warn(string, ...any)
}) {
	fail := func(err error) {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		o.yieldError(out, err)
	}

	// Step 1: load conversation.
	conversation, err := o.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		fail(fmt.Errorf("load conversation: %w", err))
		return
	}

	// Step 2: load agent.
	agent, err := o.agents.GetAgent(ctx, conversation.AgentSlug)
	if err != nil {
		fail(fmt.Errorf("load agent %s: %w", conversation.AgentSlug, err))
		return
	}

	// Step 3: build context messages.
	var longTerm contextbuilder.LongTermMemory
	if agent.Capabilities.MemoryEnabled {
		longTerm = o.longTerm
	}
	messages, err := contextbuilder.Build(ctx, longTerm, conversation, agent, userText)
	if err != nil {
		fail(fmt.Errorf("build context: %w", err))
		return
	}

	// Step 4: append user message before the LLM call, so it is durable
	// even if the LLM acquisition or streaming fails.
	userMessage := model.Message{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Content:   userText,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.conversations.AppendMessage(ctx, conversationID, userMessage); err != nil {
		fail(fmt.Errorf("append user message: %w", err))
		return
	}

	// Step 5: acquire an adapter, walking the fallback chain on failure.
	adapter, triple, usedFallback, err := o.acquireAdapter(agent)
	if err != nil {
		log.Error("no adapter available", "error", err)
		fail(fmt.Errorf("acquire llm adapter: %w", err))
		return
	}
	if usedFallback {
		out <- Chunk{Type: ChunkText, Text: fmt.Sprintf("[Falling back to %s]\n", adapter.Name())}
	}

	// Step 6: prepare the tool surface.
	var toolDefs []llm.ToolDefinition
	if agent.Capabilities.ToolsEnabled && o.router != nil {
		toolDefs = o.buildToolDefinitions(agent)
	}

	// Step 7: stream the adapter, forwarding text/tool_call chunks.
	llmMessages := toLLMMessages(messages)
	stream, err := adapter.Stream(ctx, llmMessages, toolDefs, triple.Temperature, triple.MaxTokens)
	if err != nil {
		fail(fmt.Errorf("start llm stream: %w", err))
		return
	}

	var textAccum string
	var capturedCalls []llm.ToolCall
	var inputTokens, outputTokens int

	for chunk := range stream {
		switch chunk.Type {
		case llm.ChunkText:
			textAccum += chunk.Text
			out <- Chunk{Type: ChunkText, Text: chunk.Text}
		case llm.ChunkToolCall:
			capturedCalls = append(capturedCalls, chunk.ToolCall)
			out <- Chunk{Type: ChunkToolCall, ToolCall: chunk.ToolCall}
		case llm.ChunkDone:
			inputTokens = chunk.InputTokens
			outputTokens = chunk.OutputTokens
		case llm.ChunkError:
			out <- Chunk{Type: ChunkError, Err: chunk.Err}
			return
		}
	}

	// Step 8: append the assistant message.
	assistantToolCalls := make([]model.ToolCall, 0, len(capturedCalls))
	for _, tc := range capturedCalls {
		assistantToolCalls = append(assistantToolCalls, model.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	assistantMessage := model.Message{
		ID:           uuid.NewString(),
		Role:         model.RoleAssistant,
		Content:      textAccum,
		ToolCalls:    assistantToolCalls,
		Model:        adapter.Name(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.conversations.AppendMessage(ctx, conversationID, assistantMessage); err != nil {
		fail(fmt.Errorf("append assistant message: %w", err))
		return
	}

	// Step 9: execute captured tool calls and append tool messages. Their
	// "[Tool <name>: <status>]" markers are forwarded as ordinary text
	// chunks, so they must reach the caller before the terminal done
	// chunk below — a stream must not emit anything after its one
	// terminal chunk.
	if len(capturedCalls) > 0 && o.router != nil {
		o.executeToolCalls(ctx, out, conversationID, capturedCalls, log)
	}

	out <- Chunk{Type: ChunkDone, InputTokens: inputTokens, OutputTokens: outputTokens}

	// Step 10: schedule background extraction without blocking stream
	// close.
	if agent.MemoryConfig.AutoExtract && o.extractor != nil {
		go func() {
			bgCtx := context.Background()
			if err := o.extractor.Extract(bgCtx, conversationID); err != nil {
				log.Warn("background memory extraction failed", "error", err)
			}
		}()
	}
}

func (o *Orchestrator) executeToolCalls(ctx context.Context, out chan<- Chunk, conversationID string, calls []llm.ToolCall, log interface {
	Warn(string, ...any)
}) {
	for _, tc := range calls {
		result := o.router.Execute(ctx, tc.Name, tc.Arguments, o.toolTimeout)

		content := result.Output
		if result.Status == tool.StatusError {
			content = result.Error
		}

		toolMessage := model.Message{
			ID:         uuid.NewString(),
			Role:       model.RoleTool,
			Content:    content,
			ToolCallID: tc.ID,
			ToolName:   tc.Name,
			CreatedAt:  time.Now().UTC(),
		}
		if err := o.conversations.AppendMessage(ctx, conversationID, toolMessage); err != nil {
			log.Warn("append tool message failed", "tool", tc.Name, "error", err)
		}

		out <- Chunk{Type: ChunkText, Text: fmt.Sprintf("[Tool %s: %s]\n", tc.Name, result.Status)}
	}
}

// acquireAdapter tries the agent's primary triple, then walks the
// fallback chain for the first entry with conditions.on_error=true whose
// adapter can be constructed, per spec.md §4.11 step 5.
func (o *Orchestrator) acquireAdapter(agent *model.Agent) (llm.Adapter, model.LLMTriple, bool, error) {
	adapter, err := o.llmManager.Resolve(agent.Primary.Backend, agent.Primary.Model)
	if err == nil {
		return adapter, agent.Primary, false, nil
	}
	firstErr := err

	for _, entry := range agent.FallbackChain {
		if !entry.Conditions.OnError {
			continue
		}
		adapter, err := o.llmManager.Resolve(entry.LLMTriple.Backend, entry.LLMTriple.Model)
		if err == nil {
			return adapter, entry.LLMTriple, true, nil
		}
	}

	return nil, model.LLMTriple{}, false, fmt.Errorf("primary adapter unavailable and no fallback succeeded: %w", firstErr)
}

func (o *Orchestrator) buildToolDefinitions(agent *model.Agent) []llm.ToolDefinition {
	allowed := make(map[string]bool, len(agent.EnabledTools))
	for _, name := range agent.EnabledTools {
		allowed[name] = true
	}

	var defs []llm.ToolDefinition
	for _, info := range o.router.Describe() {
		if len(allowed) > 0 && !allowed[info.Name] {
			continue
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  parametersToSchema(info.Parameters),
		})
	}
	return defs
}

func parametersToSchema(params []tool.ParameterSchema) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		prop := map[string]any{"type": p.Type, "description": p.Description}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func toLLMMessages(messages []model.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		calls := make([]llm.ToolCall, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, llm.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		out = append(out, llm.Message{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCalls:  calls,
			ToolCallID: m.ToolCallID,
			Name:       m.ToolName,
		})
	}
	return out
}

func (o *Orchestrator) yieldError(out chan<- Chunk, err error) {
	out <- Chunk{Type: ChunkError, Err: err}
}
