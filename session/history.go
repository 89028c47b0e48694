package session

import (
	"github.com/sweetpotato0/chatflow/message"
	"github.com/sweetpotato0/chatflow/tokenizer"
)

// History holds a conversation's message log and trims it to stay inside
// a message-count cap and an optional token budget. System messages are
// always kept.
type History struct {
	messages    []*message.Message
	maxMessages int
	tokenBudget int
	counter     tokenizer.Tokenizer
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithMaxMessages caps how many messages the history keeps.
func WithMaxMessages(n int) HistoryOption {
	return func(h *History) {
		if n > 0 {
			h.maxMessages = n
		}
	}
}

// WithTokenBudget bounds the history's total token count. A nil counter
// falls back to the heuristic tokenizer.
func WithTokenBudget(budget int, counter tokenizer.Tokenizer) HistoryOption {
	return func(h *History) {
		if budget > 0 {
			h.tokenBudget = budget
		}
		if counter != nil {
			h.counter = counter
		}
	}
}

// NewHistory creates a history keeping at most 100 messages by default.
func NewHistory(opts ...HistoryOption) *History {
	h := &History{
		messages:    make([]*message.Message, 0),
		maxMessages: 100,
		counter:     tokenizer.Heuristic{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add appends a message and trims the history to its limits.
func (h *History) Add(msg *message.Message) {
	if msg == nil {
		return
	}
	h.messages = append(h.messages, msg)
	h.trimCount()
	h.trimTokens()
}

// trimCount drops the oldest non-system messages beyond the count cap.
func (h *History) trimCount() {
	if len(h.messages) <= h.maxMessages {
		return
	}

	systemMsgs := make([]*message.Message, 0)
	for _, m := range h.messages {
		if m.Role == message.RoleSystem {
			systemMsgs = append(systemMsgs, m)
		}
	}

	keepCount := h.maxMessages - len(systemMsgs)
	if keepCount < 0 {
		keepCount = 0
	}
	recentMsgs := h.messages[len(h.messages)-keepCount:]

	newMessages := make([]*message.Message, 0, h.maxMessages)
	newMessages = append(newMessages, systemMsgs...)
	for _, m := range recentMsgs {
		if m.Role != message.RoleSystem {
			newMessages = append(newMessages, m)
		}
	}
	h.messages = newMessages
}

// trimTokens drops the oldest non-system messages until the history fits
// the token budget. The newest message always stays.
func (h *History) trimTokens() {
	if h.tokenBudget <= 0 {
		return
	}
	for h.Tokens() > h.tokenBudget {
		dropped := false
		for i, m := range h.messages {
			if m.Role == message.RoleSystem || i == len(h.messages)-1 {
				continue
			}
			h.messages = append(h.messages[:i], h.messages[i+1:]...)
			dropped = true
			break
		}
		if !dropped {
			return
		}
	}
}

// Tokens returns the token count of the current history.
func (h *History) Tokens() int {
	total := 0
	for _, m := range h.messages {
		total += h.counter.CountTokens(m.Content)
	}
	return total
}

// Messages returns a copy of the history.
func (h *History) Messages() []*message.Message {
	return message.CloneMessages(h.messages)
}

// LastMessage returns the last message or nil if empty.
func (h *History) LastMessage() *message.Message {
	if len(h.messages) == 0 {
		return nil
	}
	return h.messages[len(h.messages)-1]
}

// ByRole returns all messages with the given role.
func (h *History) ByRole(role message.Role) []*message.Message {
	result := make([]*message.Message, 0)
	for _, m := range h.messages {
		if m.Role == role {
			result = append(result, message.Clone(m))
		}
	}
	return result
}

// Clear removes all messages.
func (h *History) Clear() {
	h.messages = make([]*message.Message, 0)
}

// Size returns the current number of messages.
func (h *History) Size() int {
	return len(h.messages)
}
