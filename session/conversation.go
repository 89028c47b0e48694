package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweetpotato0/chatflow/completion"
	errorskg "github.com/sweetpotato0/chatflow/errors"
	"github.com/sweetpotato0/chatflow/message"
	"github.com/sweetpotato0/chatflow/middleware"
	"github.com/sweetpotato0/chatflow/pkg/logging"
	"github.com/sweetpotato0/chatflow/tool"
)

// Conversation runs successive completion turns against shared history.
// Turns are serialized: a second Send blocks until the first finishes.
type Conversation struct {
	id        string
	mu        sync.Mutex
	state     State
	createdAt time.Time
	updatedAt time.Time

	client  *completion.Client
	tools   *tool.Registry
	system  string
	history *History
	chain   *middleware.MiddlewareChain
	logger  *slog.Logger
}

// ConversationOption configures a Conversation.
type ConversationOption func(*Conversation)

// WithID sets the conversation identifier. The default is a random UUID.
func WithID(id string) ConversationOption {
	return func(c *Conversation) {
		if id != "" {
			c.id = id
		}
	}
}

// WithSystemPrompt sets the system message prepended to every turn.
func WithSystemPrompt(prompt string) ConversationOption {
	return func(c *Conversation) {
		c.system = prompt
	}
}

// WithTools declares the tools available to every turn.
func WithTools(registry *tool.Registry) ConversationOption {
	return func(c *Conversation) {
		c.tools = registry
	}
}

// WithMiddleware sets the middleware chain each turn runs through.
func WithMiddleware(chain *middleware.MiddlewareChain) ConversationOption {
	return func(c *Conversation) {
		if chain != nil {
			c.chain = chain
		}
	}
}

// WithHistory replaces the conversation's history, e.g. to apply a token
// budget.
func WithHistory(history *History) ConversationOption {
	return func(c *Conversation) {
		if history != nil {
			c.history = history
		}
	}
}

// WithConversationLogger overrides the conversation's logger.
func WithConversationLogger(logger *slog.Logger) ConversationOption {
	return func(c *Conversation) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConversation creates a conversation bound to a completion client.
func NewConversation(client *completion.Client, opts ...ConversationOption) *Conversation {
	c := &Conversation{
		id:        uuid.NewString(),
		state:     StateActive,
		createdAt: time.Now(),
		updatedAt: time.Now(),
		client:    client,
		history:   NewHistory(),
		chain:     middleware.NewChain(),
		logger:    logging.WithComponent("conversation"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the conversation identifier.
func (c *Conversation) ID() string {
	return c.id
}

// State returns the conversation state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the conversation history.
func (c *Conversation) Messages() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Messages()
}

// Send runs one turn: the input passes through the middleware chain, the
// completion turn streams through cb, and on success the user input and
// the turn's wire messages are folded into the history. Display units
// reach cb but never the history.
func (c *Conversation) Send(ctx context.Context, input string, cb completion.Callbacks) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return fmt.Errorf("conversation %s: %w", c.id, errorskg.ErrClosed)
	}
	if c.state != StateActive {
		return fmt.Errorf("conversation %s is not active (state: %s)", c.id, c.state)
	}

	mctx := middleware.NewContext(ctx)
	mctx.Input = input
	mctx.Messages = c.history.Messages()

	err := c.chain.Execute(mctx, func(mc *middleware.Context) error {
		return c.turn(mc, cb)
	})
	c.updatedAt = time.Now()
	return err
}

// Ask runs one turn and blocks until it finishes, returning the final
// assistant text.
func (c *Conversation) Ask(ctx context.Context, input string) (string, error) {
	var reply string
	err := c.Send(ctx, input, completion.Callbacks{
		OnDone: func(outputs []completion.Output) {
			for _, msg := range completion.Messages(outputs) {
				if msg.Role == message.RoleAssistant {
					reply = msg.Content
				}
			}
		},
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// turn executes the completion call for one middleware-approved input.
func (c *Conversation) turn(mctx *middleware.Context, cb completion.Callbacks) error {
	input := mctx.Input
	user := message.NewMessage(message.RoleUser, input)

	msgs := make([]*message.Message, 0, c.history.Size()+2)
	if c.system != "" {
		msgs = append(msgs, message.NewMessage(message.RoleSystem, c.system))
	}
	msgs = append(msgs, c.history.Messages()...)
	msgs = append(msgs, user)

	var turnOutputs []completion.Output
	wrapped := completion.Callbacks{
		OnChunk: cb.OnChunk,
		OnDone: func(outputs []completion.Output) {
			turnOutputs = outputs
			if cb.OnDone != nil {
				cb.OnDone(outputs)
			}
		},
		OnError: cb.OnError,
	}

	err := c.client.Complete(mctx.Context(), &completion.Request{
		Messages: msgs,
		Tools:    c.tools,
	}, wrapped)
	if err != nil {
		mctx.Error = err
		return err
	}

	c.history.Add(user)
	for _, msg := range completion.Messages(turnOutputs) {
		c.history.Add(msg)
		if msg.Role == message.RoleAssistant {
			mctx.Response = msg
		}
	}

	c.logger.Debug("turn finished",
		"conversation", c.id,
		"history", c.history.Size(),
		"tokens", c.history.Tokens())
	return nil
}

// Close marks the conversation as closed.
func (c *Conversation) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return fmt.Errorf("conversation %s: %w", c.id, errorskg.ErrClosed)
	}
	c.state = StateClosed
	c.updatedAt = time.Now()
	return nil
}
