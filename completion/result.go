package completion

import "github.com/sweetpotato0/chatflow/message"

// Output is one element of a session's result list. Exactly one of Message
// and Display is set: Message for wire-valid conversation messages, Display
// for tool display units that are shown to the caller but never sent back
// to the model.
type Output struct {
	Message *message.Message
	Display any
}

// Messages filters the outputs down to their wire-valid messages.
func Messages(outputs []Output) []*message.Message {
	var msgs []*message.Message
	for _, out := range outputs {
		if out.Message != nil {
			msgs = append(msgs, out.Message)
		}
	}
	return msgs
}

// Callbacks delivers a turn's notifications to the caller. All fields are
// optional.
//
// OnChunk fires after every token delta and after every tool render step,
// each time with a freshly built result list reflecting the turn so far.
// OnDone fires exactly once per top-level Complete call, after the whole
// recursive chain has finished, with every session's results concatenated
// in chronological order. OnError fires once per distinguishable failure
// and does not by itself stop the stream.
type Callbacks struct {
	OnChunk func(outputs []Output)
	OnDone  func(outputs []Output)
	OnError func(err error)
}
