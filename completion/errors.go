package completion

import "errors"

// Protocol-level errors, reported per frame without stopping the stream.
var (
	// ErrEmptyMessage indicates an empty frame payload
	ErrEmptyMessage = errors.New("empty message received")

	// ErrUnknownMessage indicates a frame that matched no known shape
	ErrUnknownMessage = errors.New("unknown message received")
)

// Tool-cycle errors. Each aborts the current tool call and finishes the
// session; the stream is not resumed afterwards.
var (
	// ErrToolCallMissingName indicates a finished tool call without a name
	ErrToolCallMissingName = errors.New("tool call missing function name")

	// ErrUnknownTool indicates a tool call naming an undeclared tool
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMalformedToolArguments indicates accumulated arguments that are
	// not valid JSON
	ErrMalformedToolArguments = errors.New("malformed tool arguments")

	// ErrInvalidToolArguments indicates arguments rejected by the tool's
	// declared schema; the tool is never invoked
	ErrInvalidToolArguments = errors.New("invalid tool arguments")

	// ErrNoTerminalArtifact indicates a render stream that ended without
	// producing its terminal artifact
	ErrNoTerminalArtifact = errors.New("tool produced no terminal artifact")

	// ErrToolDepthExceeded indicates a tool-call chain longer than the
	// configured maximum
	ErrToolDepthExceeded = errors.New("maximum tool call depth exceeded")
)
