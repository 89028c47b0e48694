package completion

// Terminator is the sentinel payload the endpoint sends after the last
// frame of a stream.
const Terminator = "[DONE]"

// Chunk is the JSON envelope carried by one stream frame.
type Chunk struct {
	ID      string   `json:"id,omitempty"`
	Object  string   `json:"object,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
}

// Choice is one completion slot of a chunk. The engine only honors the
// first choice; multi-choice responses are out of scope.
type Choice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta carries the incremental payload of a choice. Content is a pointer
// so a null content and an empty-string token stay distinguishable.
type Delta struct {
	Role      string          `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is one slot of a streamed tool call.
type ToolCallDelta struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function FunctionDelta `json:"function"`
}

// FunctionDelta carries name and argument fragments of a tool call. Both
// fields accumulate by concatenation across frames.
type FunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// RequestBody is the outbound JSON body of a streaming completion call.
type RequestBody struct {
	Model       string           `json:"model"`
	Messages    []WireMessage    `json:"messages"`
	Stream      bool             `json:"stream"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int64            `json:"max_tokens,omitempty"`
	Tools       []map[string]any `json:"tools,omitempty"`
}

// WireMessage is the wire form of a conversation message. Name carries the
// tool name on function-role messages.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}
