package completion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventKind discriminates decoded stream events.
type EventKind int

const (
	// EventNone is a recognized frame carrying no data yet.
	EventNone EventKind = iota
	// EventToken carries a fragment of assistant text.
	EventToken
	// EventToolCallDelta carries tool-call name and/or argument fragments.
	EventToolCallDelta
	// EventFinishStop signals a completed text reply.
	EventFinishStop
	// EventFinishToolCalls signals a completed tool-call request.
	EventFinishToolCalls
	// EventTerminator signals the end of the stream; the caller closes the
	// transport.
	EventTerminator
)

// Event is one decoded stream event. Text is set for EventToken; ToolName
// and ToolArgs are set for EventToolCallDelta, either possibly empty when
// the frame carried only the other fragment.
type Event struct {
	Kind     EventKind
	Text     string
	ToolName string
	ToolArgs string
}

// DecodeEvent interprets one raw frame payload as exactly one event or one
// error. Decoding is a pure function of the payload and the toolActive
// flag, which tells the decoder whether a tool call is already
// accumulating; bookkeeping frames that belong to an active tool call but
// carry no fragments decode to EventNone instead of an error.
//
// Rules, in priority order: terminator sentinel; empty payload (error);
// unparseable envelope (error); parseable envelope without choices (no-op);
// finish reason "tool_calls" then "stop"; non-null content; tool-call
// fragments from the first slot only; anything else is an error.
func DecodeEvent(payload string, toolActive bool) (Event, error) {
	if payload == Terminator {
		return Event{Kind: EventTerminator}, nil
	}
	if strings.TrimSpace(payload) == "" {
		return Event{}, ErrEmptyMessage
	}

	var chunk Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrUnknownMessage, err)
	}
	if len(chunk.Choices) == 0 {
		return Event{Kind: EventNone}, nil
	}

	choice := chunk.Choices[0]
	switch choice.FinishReason {
	case "tool_calls":
		return Event{Kind: EventFinishToolCalls}, nil
	case "stop":
		return Event{Kind: EventFinishStop}, nil
	}

	if choice.Delta.Content != nil {
		return Event{Kind: EventToken, Text: *choice.Delta.Content}, nil
	}

	if len(choice.Delta.ToolCalls) > 0 {
		// Multi-slot tool calls are unsupported; only the first slot is
		// honored.
		fn := choice.Delta.ToolCalls[0].Function
		if fn.Name != "" || fn.Arguments != "" {
			return Event{Kind: EventToolCallDelta, ToolName: fn.Name, ToolArgs: fn.Arguments}, nil
		}
		if toolActive {
			return Event{Kind: EventNone}, nil
		}
	}

	return Event{}, ErrUnknownMessage
}
