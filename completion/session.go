package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sweetpotato0/chatflow/message"
	"github.com/sweetpotato0/chatflow/pkg/telemetry"
	"github.com/sweetpotato0/chatflow/transport"
)

// state tracks a session through its turn. No transition leaves stateDone.
type state int

const (
	stateStreaming state = iota
	stateAwaitingToolResult
	stateDone
)

// session owns the accumulation for one completion request. A session is
// single-goroutine: events are pulled from the stream and applied in
// order, so notifications are strictly ordered with the event stream. A
// session may spawn at most one child session, run synchronously as the
// recursive continuation of a tool call; the child's completion is the
// parent's completion signal.
type session struct {
	client *Client
	req    *Request
	cb     Callbacks
	depth  int

	state    state
	finished bool

	text     strings.Builder
	toolName strings.Builder
	toolArgs strings.Builder

	display    any
	resultData json.RawMessage
}

// run drives the session until its stream ends or the turn finishes.
// Protocol errors are reported and the stream continues; transport errors
// and tool-cycle failures are reported and end the turn.
func (s *session) run(ctx context.Context) (err error) {
	ctx, span := s.client.tracer.Start(ctx, "completion.session",
		trace.WithAttributes(attribute.Int("depth", s.depth)))
	defer func() { telemetry.End(span, err) }()

	body, err := s.req.Serialize()
	if err != nil {
		err = fmt.Errorf("serialize request: %w", err)
		s.report(err)
		return err
	}

	stream, err := s.client.open(ctx, body)
	if err != nil {
		s.report(err)
		return err
	}
	defer stream.Close()

	for {
		payload, rerr := stream.Recv(ctx)
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			if errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded) {
				return rerr
			}
			if !errors.Is(rerr, transport.ErrConnection) {
				rerr = fmt.Errorf("%w: %v", transport.ErrConnection, rerr)
			}
			s.report(rerr)
			return rerr
		}

		event, derr := DecodeEvent(payload, s.toolStarted())
		if derr != nil {
			s.report(derr)
			continue
		}

		stop, aerr := s.apply(ctx, event)
		if aerr != nil {
			return aerr
		}
		if stop {
			return nil
		}
	}
}

// apply advances the state machine by one event. It returns true once the
// stream should be closed, either because the turn finished or because the
// terminator arrived.
func (s *session) apply(ctx context.Context, event Event) (bool, error) {
	if s.state == stateDone {
		return event.Kind == EventTerminator, nil
	}

	switch event.Kind {
	case EventNone:

	case EventTerminator:
		// End of stream without a finish reason: close the transport and
		// stop. No callback fires for the terminator itself.
		return true, nil

	case EventToken:
		s.text.WriteString(event.Text)
		s.notifyChunk()

	case EventToolCallDelta:
		s.toolName.WriteString(event.ToolName)
		s.toolArgs.WriteString(event.ToolArgs)

	case EventFinishStop:
		s.state = stateDone
		s.finished = true
		s.notifyDone()
		return true, nil

	case EventFinishToolCalls:
		s.state = stateAwaitingToolResult
		err := s.runToolCycle(ctx)
		s.state = stateDone
		if err != nil {
			// Tool-cycle failures finish the session rather than leaving
			// it pending; the transport is closed on return.
			s.finished = true
			return true, err
		}
		return true, nil
	}

	return false, nil
}

func (s *session) toolStarted() bool {
	return s.toolName.Len() > 0 || s.toolArgs.Len() > 0
}

// runToolCycle validates and drives the accumulated tool call, then spawns
// the recursive continuation. On success the session's finished flag
// follows the child's; every failure is reported before it is returned.
func (s *session) runToolCycle(ctx context.Context) (err error) {
	name := s.toolName.String()
	ctx, span := s.client.tracer.Start(ctx, "completion.tool",
		trace.WithAttributes(attribute.String("tool", name)))
	defer func() { telemetry.End(span, err) }()

	if name == "" {
		err = ErrToolCallMissingName
		s.report(err)
		return err
	}

	if s.req.Tools == nil {
		err = fmt.Errorf("%w: %s", ErrUnknownTool, name)
		s.report(err)
		return err
	}
	declared, gerr := s.req.Tools.Get(name)
	if gerr != nil {
		err = fmt.Errorf("%w: %s", ErrUnknownTool, name)
		s.report(err)
		return err
	}

	var args map[string]any
	if uerr := json.Unmarshal([]byte(s.toolArgs.String()), &args); uerr != nil {
		err = fmt.Errorf("%w: %v", ErrMalformedToolArguments, uerr)
		s.report(err)
		return err
	}

	if verr := declared.ValidateArgs(args); verr != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidToolArguments, verr)
		s.report(err)
		return err
	}

	if declared.Render == nil {
		err = fmt.Errorf("tool %s has no render capability", name)
		s.report(err)
		return err
	}

	s.client.logger.Debug("invoking tool", "tool", name, "depth", s.depth)

	terminal := false
	for artifact, perr := range declared.Render(ctx, args) {
		if perr != nil {
			err = perr
			s.report(err)
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if display := artifact.Display(); display != nil {
			s.display = display
		}
		if artifact.IsTerminal() {
			raw, merr := json.Marshal(artifact.Data())
			if merr != nil {
				err = fmt.Errorf("serialize tool result: %w", merr)
				s.report(err)
				return err
			}
			s.resultData = raw
			terminal = true
		}
		s.notifyChunk()
	}
	if !terminal {
		err = fmt.Errorf("%w: %s", ErrNoTerminalArtifact, name)
		s.report(err)
		return err
	}

	return s.continueTurn(ctx)
}

// continueTurn builds the continuation request from the non-display
// portion of the current result and runs the child session. The child's
// chunk and done notifications are forwarded with this session's result
// prefixed; errors are forwarded unchanged.
func (s *session) continueTurn(ctx context.Context) error {
	if s.depth+1 > s.client.maxToolDepth {
		err := fmt.Errorf("%w (%d)", ErrToolDepthExceeded, s.client.maxToolDepth)
		s.report(err)
		return err
	}

	next := &Request{
		Model:       s.req.Model,
		Temperature: s.req.Temperature,
		MaxTokens:   s.req.MaxTokens,
		Tools:       s.req.Tools,
		Messages:    append(message.CloneMessages(s.req.Messages), Messages(s.buildResult())...),
	}

	child := &session{
		client: s.client,
		req:    next,
		cb:     s.wrapCallbacks(),
		depth:  s.depth + 1,
	}
	if err := child.run(ctx); err != nil {
		return err
	}
	s.finished = child.finished
	return nil
}

// buildResult assembles the session's current result list. It is built
// fresh on every call: accumulated assistant text first, then the current
// display unit, then the function-role message carrying the tool's
// serialized data.
func (s *session) buildResult() []Output {
	var outputs []Output
	if s.text.Len() > 0 {
		outputs = append(outputs, Output{Message: message.NewMessage(message.RoleAssistant, s.text.String())})
	}
	if s.display != nil {
		outputs = append(outputs, Output{Display: s.display})
	}
	if s.resultData != nil {
		outputs = append(outputs, Output{Message: message.NewFunctionResult(s.toolName.String(), string(s.resultData))})
	}
	return outputs
}

func (s *session) wrapCallbacks() Callbacks {
	return Callbacks{
		OnChunk: func(outputs []Output) {
			if s.cb.OnChunk != nil {
				s.cb.OnChunk(s.prefix(outputs))
			}
		},
		OnDone: func(outputs []Output) {
			if s.cb.OnDone != nil {
				s.cb.OnDone(s.prefix(outputs))
			}
		},
		OnError: s.cb.OnError,
	}
}

func (s *session) prefix(outputs []Output) []Output {
	parent := s.buildResult()
	merged := make([]Output, 0, len(parent)+len(outputs))
	merged = append(merged, parent...)
	return append(merged, outputs...)
}

func (s *session) notifyChunk() {
	if s.cb.OnChunk != nil {
		s.cb.OnChunk(s.buildResult())
	}
}

func (s *session) notifyDone() {
	if s.cb.OnDone != nil {
		s.cb.OnDone(s.buildResult())
	}
}

func (s *session) report(err error) {
	s.client.logger.Warn("completion error", "error", err, "depth", s.depth)
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
}
