package agent

import (
	"sync"

	"github.com/martinemde/mojocode/unifiedllm"
)

// Role is the speaker of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one record of the conversation.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the append-only record of (feedback, plan) pairs replayed to
// the model on every turn.
type History struct {
	mu      sync.RWMutex
	entries []Entry
}

// Append records the user's feedback followed by the agent's plan.
func (h *History) Append(feedback, plan string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries,
		Entry{Role: RoleUser, Content: feedback},
		Entry{Role: RoleAssistant, Content: plan},
	)
}

// Snapshot returns a copy of the entries in insertion order.
func (h *History) Snapshot() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Messages projects the history into model conversation context.
func (h *History) Messages() []unifiedllm.Message {
	entries := h.Snapshot()
	msgs := make([]unifiedllm.Message, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case RoleAssistant:
			msgs = append(msgs, unifiedllm.AssistantMessage(e.Content))
		default:
			msgs = append(msgs, unifiedllm.UserMessage(e.Content))
		}
	}
	return msgs
}
