// Package session layers multi-turn conversations on top of the
// completion client: it keeps per-conversation history, budgets it, and
// runs each turn through a middleware chain.
package session

// State represents the state of a conversation
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
	StateClosed   State = "closed"
)
