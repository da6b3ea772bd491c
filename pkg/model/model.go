// Package model defines the runtime's durable entities — Agent,
// Conversation, Message, Memory — and the invariants spec.md §3 attaches
// to them. Structs carry both json tags (wire format for the client API)
// and bson tags (MongoDB persistence via pkg/store), mirroring the
// teacher's dual-tag convention for config types.
package model

import "time"

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ConversationStatus is the lifecycle state of a Conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// ContentType classifies a Memory's content.
type ContentType string

const (
	ContentFact       ContentType = "fact"
	ContentPreference ContentType = "preference"
	ContentEvent      ContentType = "event"
	ContentSkill      ContentType = "skill"
	ContentDocument   ContentType = "document"
)

// MemoryStatus is the lifecycle state of a Memory (soft-delete only).
type MemoryStatus string

const (
	MemoryActive  MemoryStatus = "active"
	MemoryDeleted MemoryStatus = "deleted"
)

// ToolCall is a single tool invocation requested by an assistant turn.
type ToolCall struct {
	ID        string         `json:"id" bson:"id"`
	Name      string         `json:"name" bson:"name"`
	Arguments map[string]any `json:"arguments" bson:"arguments"`
}

// LLMTriple identifies one concrete LLM configuration: backend, model,
// sampling temperature, and output budget.
type LLMTriple struct {
	Backend     string  `json:"backend" bson:"backend"`
	Model       string  `json:"model" bson:"model"`
	Temperature float64 `json:"temperature" bson:"temperature"`
	MaxTokens   int     `json:"max_tokens" bson:"max_tokens"`
}

// FallbackConditions gate when a FallbackEntry may be used.
type FallbackConditions struct {
	OnError           bool `json:"on_error" bson:"on_error"`
	OnContextOverflow bool `json:"on_context_overflow" bson:"on_context_overflow"`
	MaxInputTokens    int  `json:"max_input_tokens,omitempty" bson:"max_input_tokens,omitempty"`
}

// FallbackEntry is one ordered alternative in an Agent's fallback chain.
//
// OnContextOverflow and MaxInputTokens are parsed and stored but never
// evaluated by the orchestrator's fallback walk — spec.md §9 notes the
// source has no detectable code path that triggers context-overflow
// fallback, so this implementation leaves the signal recognized but not
// yet honored rather than inventing semantics for it.
type FallbackEntry struct {
	LLMTriple  LLMTriple          `json:"llm" bson:"llm"`
	Conditions FallbackConditions `json:"conditions" bson:"conditions"`
}

// Capabilities are the feature flags an Agent turns on or off.
type Capabilities struct {
	MemoryEnabled bool `json:"memory_enabled" bson:"memory_enabled"`
	ToolsEnabled  bool `json:"tools_enabled" bson:"tools_enabled"`
}

// MemoryConfig configures an Agent's use of long-term memory.
type MemoryConfig struct {
	AutoExtract       bool `json:"auto_extract" bson:"auto_extract"`
	ShortTermMessages int  `json:"short_term_messages" bson:"short_term_messages"`
	LongTermResults   int  `json:"long_term_results" bson:"long_term_results"`
}

// Agent is immutable-after-create configuration for one agent persona.
type Agent struct {
	ID            string          `json:"id" bson:"_id,omitempty"`
	Slug          string          `json:"slug" bson:"slug"`
	SystemPrompt  string          `json:"system_prompt" bson:"system_prompt"`
	Primary       LLMTriple       `json:"primary" bson:"primary"`
	FallbackChain []FallbackEntry `json:"fallback_chain" bson:"fallback_chain"`
	Capabilities  Capabilities    `json:"capabilities" bson:"capabilities"`
	MemoryConfig  MemoryConfig    `json:"memory_config" bson:"memory_config"`
	EnabledTools  []string        `json:"enabled_tools" bson:"enabled_tools"`
	IsDefault     bool            `json:"is_default" bson:"is_default"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
}

// ConversationStats tracks running counters for a Conversation.
type ConversationStats struct {
	MessageCount int `json:"message_count" bson:"message_count"`
	TotalTokens  int `json:"total_tokens" bson:"total_tokens"`
	ToolCalls    int `json:"tool_calls" bson:"tool_calls"`
}

// Conversation owns an ordered, append-only sequence of Messages.
type Conversation struct {
	ID        string             `json:"id" bson:"_id,omitempty"`
	AgentSlug string             `json:"agent_slug" bson:"agent_slug"`
	Title     string             `json:"title" bson:"title"`
	Status    ConversationStatus `json:"status" bson:"status"`
	Messages  []Message          `json:"messages" bson:"messages"`
	Stats     ConversationStats  `json:"stats" bson:"stats"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// Message is one immutable (except MemoryProcessed) turn in a Conversation.
type Message struct {
	ID              string     `json:"id" bson:"id"`
	Role            Role       `json:"role" bson:"role"`
	Content         string     `json:"content" bson:"content"`
	ToolCalls       []ToolCall `json:"tool_calls,omitempty" bson:"tool_calls,omitempty"`
	ToolCallID      string     `json:"tool_call_id,omitempty" bson:"tool_call_id,omitempty"`
	ToolName        string     `json:"tool_name,omitempty" bson:"tool_name,omitempty"`
	Model           string     `json:"model,omitempty" bson:"model,omitempty"`
	InputTokens     int        `json:"input_tokens,omitempty" bson:"input_tokens,omitempty"`
	OutputTokens    int        `json:"output_tokens,omitempty" bson:"output_tokens,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	MemoryProcessed bool       `json:"memory_processed" bson:"memory_processed"`
}

// MemorySource describes where a Memory came from.
type MemorySource struct {
	Manual         bool      `json:"manual,omitempty" bson:"manual,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty" bson:"conversation_id,omitempty"`
	MessageIDs     []string  `json:"message_ids,omitempty" bson:"message_ids,omitempty"`
	ExtractedAt    time.Time `json:"extracted_at,omitempty" bson:"extracted_at,omitempty"`
}

// Memory is a durable, searchable, embedded piece of knowledge.
type Memory struct {
	ID             string       `json:"id" bson:"_id,omitempty"`
	Content        string       `json:"content" bson:"content"`
	ContentType    ContentType  `json:"content_type" bson:"content_type"`
	Categories     []string     `json:"categories" bson:"categories"`
	Importance     float64      `json:"importance" bson:"importance"`
	Confidence     *float64     `json:"confidence,omitempty" bson:"confidence,omitempty"`
	Verified       bool         `json:"verified" bson:"verified"`
	Status         MemoryStatus `json:"status" bson:"status"`
	Embedding      []byte       `json:"-" bson:"embedding"`
	EmbeddingModel string       `json:"embedding_model" bson:"embedding_model"`
	Source         MemorySource `json:"source" bson:"source"`
	CreatedAt      time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" bson:"updated_at"`
	LastAccessedAt time.Time    `json:"last_accessed_at" bson:"last_accessed_at"`
	AccessCount    int          `json:"access_count" bson:"access_count"`
}
