package tool

import (
	"context"
	"iter"
)

// Artifact is a single value produced by a tool's render stream. A tool
// yields zero or more intermediate artifacts followed by exactly one
// terminal artifact. The variant is chosen by the tool author through the
// Intermediate and Terminal constructors, never inferred from shape.
type Artifact struct {
	display  any
	data     any
	terminal bool
}

// Intermediate creates a progress artifact carrying only a display unit.
// The display unit is opaque to the engine and surfaced to the caller
// through chunk notifications.
func Intermediate(display any) Artifact {
	return Artifact{display: display}
}

// Terminal creates the final artifact of a render stream. The display unit
// is surfaced to the caller; the structured data is serialized to JSON and
// sent back to the model as the tool's result.
func Terminal(display, data any) Artifact {
	return Artifact{display: display, data: data, terminal: true}
}

// Display returns the caller-visible display unit, which may be nil.
func (a Artifact) Display() any { return a.display }

// Data returns the model-visible structured data. Only meaningful on
// terminal artifacts.
func (a Artifact) Data() any { return a.data }

// IsTerminal reports whether this artifact ends the render stream.
func (a Artifact) IsTerminal() bool { return a.terminal }

// RenderFunc produces a tool's artifacts as a lazy sequence. Each step may
// perform blocking work before yielding; consumption drives progress, so a
// caller that stops ranging stops the work. Implementations should honor
// ctx between steps.
type RenderFunc func(ctx context.Context, args map[string]any) iter.Seq2[Artifact, error]
