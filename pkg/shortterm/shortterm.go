// Package shortterm implements bounded-window retrieval of recent
// conversation turns (C3), grounded on the teacher's
// pkg/memory/buffer_window.go sliding-window strategy — the same
// "keep the last N, all if fewer" shape, generalized from an in-process
// event buffer to a conversation's persisted Message slice.
package shortterm

import "github.com/agentflow/core/pkg/model"

// DefaultMaxMessages mirrors the teacher's DefaultBufferWindowSize.
const DefaultMaxMessages = 20

// RecentMessages returns up to maxMessages most-recent messages from the
// conversation, in chronological order. If the conversation has fewer
// messages than maxMessages, all of them are returned.
func RecentMessages(messages []model.Message, maxMessages int) []model.Message {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if len(messages) <= maxMessages {
		return messages
	}
	return messages[len(messages)-maxMessages:]
}

// TrimToBudget keeps the newest messages whose combined size fits within
// maxTokens, using the heuristic tokens ≈ characters/4 (spec.md §4.3).
// Iteration starts from the tail and stops at the first message that no
// longer fits, so the most recent turns are preferred over older ones.
// The newest message is always kept, even when it alone exceeds the budget.
func TrimToBudget(messages []model.Message, maxTokens int) []model.Message {
	if maxTokens <= 0 {
		return nil
	}

	kept := make([]model.Message, 0, len(messages))
	budget := maxTokens

	for i := len(messages) - 1; i >= 0; i-- {
		cost := estimateTokens(messages[i].Content)
		if cost > budget && len(kept) > 0 {
			break
		}
		kept = append(kept, messages[i])
		budget -= cost
	}

	// kept was built newest-first; reverse to restore chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

func estimateTokens(content string) int {
	return len(content) / 4
}
