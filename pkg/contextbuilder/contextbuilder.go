// Package contextbuilder composes the message list handed to an LLM
// adapter (C4): system prompt, an optional long-term-memory block, the
// recent short-term turns, and the new user message — as spec.md §4.4
// lays out step by step. There is no teacher file that does exactly
// this (hector's agent loop inlines prompt assembly); this package is
// original code written in the teacher's plain-constructor, explicit-
// error idiom rather than ported from a specific source file.
package contextbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentflow/core/pkg/model"
	"github.com/agentflow/core/pkg/shortterm"
	"github.com/agentflow/core/pkg/store"
)

// LongTermMemory is the subset of pkg/memory.Service the context builder
// needs: hybrid search plus the increment-access side effect spec.md
// §4.4 step 2 requires for every memory it surfaces.
type LongTermMemory interface {
	Search(ctx context.Context, query string, limit int, filters store.MemoryFilters) ([]model.Memory, error)
	IncrementAccess(ctx context.Context, id string) error
}

// Build assembles the ordered message list for one LLM turn. Retrieval
// happens on every call — there is no cache — and the memory block is
// omitted entirely when no memories match, per spec.md §4.4.
func Build(ctx context.Context, longTerm LongTermMemory, conversation *model.Conversation, agent *model.Agent, userMessage string) ([]model.Message, error) {
	systemContent := agent.SystemPrompt

	if agent.Capabilities.MemoryEnabled && longTerm != nil {
		memories, err := longTerm.Search(ctx, userMessage, agent.MemoryConfig.LongTermResults, store.MemoryFilters{})
		if err != nil {
			return nil, fmt.Errorf("contextbuilder: long-term search: %w", err)
		}
		if len(memories) > 0 {
			var block strings.Builder
			block.WriteString("\n\nRelevant memories:\n")
			for _, m := range memories {
				fmt.Fprintf(&block, "- [%s] %s\n", m.ContentType, m.Content)
				if err := longTerm.IncrementAccess(ctx, m.ID); err != nil {
					return nil, fmt.Errorf("contextbuilder: increment access for memory %s: %w", m.ID, err)
				}
			}
			systemContent += block.String()
		}
	}

	messages := make([]model.Message, 0, agent.MemoryConfig.ShortTermMessages+2)
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: systemContent})

	recent := shortterm.RecentMessages(conversation.Messages, agent.MemoryConfig.ShortTermMessages)
	messages = append(messages, recent...)

	messages = append(messages, model.Message{Role: model.RoleUser, Content: userMessage})

	return messages, nil
}
