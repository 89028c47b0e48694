package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sweetpotato0/chatflow/completion"
	errorskg "github.com/sweetpotato0/chatflow/errors"
	"github.com/sweetpotato0/chatflow/pkg/logging"
)

// Manager stores live conversations. Conversations exist only for the
// lifetime of the process.
type Manager struct {
	mu            sync.RWMutex
	client        *completion.Client
	conversations map[string]*Conversation
	defaults      []ConversationOption
	logger        *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger overrides the logger used by the manager.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConversationDefaults sets options applied to every conversation the
// manager creates, before per-call options.
func WithConversationDefaults(opts ...ConversationOption) ManagerOption {
	return func(m *Manager) {
		m.defaults = opts
	}
}

// NewManager creates a conversation manager bound to a completion client.
func NewManager(client *completion.Client, opts ...ManagerOption) *Manager {
	m := &Manager{
		client:        client,
		conversations: make(map[string]*Conversation),
		logger:        logging.WithComponent("session_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create creates a new conversation. An empty id picks a random UUID.
func (m *Manager) Create(id string, opts ...ConversationOption) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if _, ok := m.conversations[id]; ok {
			m.logger.Warn("create conversation aborted; already exists", "id", id)
			return nil, fmt.Errorf("conversation %s: %w", id, errorskg.ErrAlreadyExists)
		}
	}

	merged := make([]ConversationOption, 0, len(m.defaults)+len(opts)+1)
	merged = append(merged, WithID(id))
	merged = append(merged, m.defaults...)
	merged = append(merged, opts...)

	conv := NewConversation(m.client, merged...)
	m.conversations[conv.ID()] = conv
	m.logger.Info("conversation created", "id", conv.ID())
	return conv, nil
}

// Get returns a conversation by ID.
func (m *Manager) Get(id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, errorskg.ErrNotFound)
	}
	return conv, nil
}

// GetOrCreate returns an existing conversation or creates one lazily.
func (m *Manager) GetOrCreate(id string, opts ...ConversationOption) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.conversations[id]; ok {
		return conv
	}

	merged := make([]ConversationOption, 0, len(m.defaults)+len(opts)+1)
	merged = append(merged, WithID(id))
	merged = append(merged, m.defaults...)
	merged = append(merged, opts...)

	conv := NewConversation(m.client, merged...)
	m.conversations[conv.ID()] = conv
	m.logger.Info("conversation created", "id", conv.ID())
	return conv
}

// List returns the IDs of all live conversations.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.conversations))
	for id := range m.conversations {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live conversations.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// Delete closes and removes a conversation.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return fmt.Errorf("conversation %s: %w", id, errorskg.ErrNotFound)
	}
	conv.Close()
	delete(m.conversations, id)
	m.logger.Info("conversation deleted", "id", id)
	return nil
}

// CloseAll closes every conversation and clears the manager.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, conv := range m.conversations {
		conv.Close()
		delete(m.conversations, id)
	}
	m.logger.Info("all conversations closed")
}
