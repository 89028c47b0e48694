// Package claude adapts Anthropic's Messages API to the engine's transport
// boundary, so the standard decoder and turn state machine drive Claude
// streams unchanged.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	anthropicstream "github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/sweetpotato0/chatflow/completion"
	"github.com/sweetpotato0/chatflow/message"
	"github.com/sweetpotato0/chatflow/transport"
)

const defaultMaxTokens = 4096

// Option configures the opener.
type Option func(*Opener)

// WithAPIKey sets the Anthropic API key.
func WithAPIKey(key string) Option {
	return func(o *Opener) { o.apiKey = key }
}

// WithBaseURL overrides the Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(o *Opener) { o.baseURL = url }
}

// WithModel forces a model, overriding the one carried in request bodies.
func WithModel(model string) Option {
	return func(o *Opener) { o.model = model }
}

// WithMaxTokens sets the token cap used when the request body carries none.
// The Messages API requires an explicit cap on every call.
func WithMaxTokens(max int64) Option {
	return func(o *Opener) {
		if max > 0 {
			o.maxTokens = max
		}
	}
}

// WithClient replaces the SDK client, ignoring WithAPIKey and WithBaseURL.
func WithClient(client anthropic.Client) Option {
	return func(o *Opener) {
		o.client = client
		o.clientSet = true
	}
}

// Opener opens completion streams against Anthropic's Messages API.
type Opener struct {
	client    anthropic.Client
	clientSet bool
	apiKey    string
	baseURL   string
	model     string
	maxTokens int64
}

// New builds an opener. Pass it to the completion client with WithOpener.
func New(opts ...Option) *Opener {
	o := &Opener{maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(o)
	}
	if !o.clientSet {
		options := []option.RequestOption{option.WithAPIKey(o.apiKey)}
		if o.baseURL != "" {
			options = append(options, option.WithBaseURL(o.baseURL))
		}
		o.client = anthropic.NewClient(options...)
	}
	return o
}

// Open implements transport.Opener. The request body is the engine's wire
// body; URL and headers are ignored in favor of the SDK configuration.
func (o *Opener) Open(ctx context.Context, req transport.Request) (transport.Stream, error) {
	var body completion.RequestBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, fmt.Errorf("claude: decode request body: %w", err)
	}

	params, err := o.buildParams(body)
	if err != nil {
		return nil, err
	}

	stream := o.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: %v", transport.ErrConnection, err)
	}
	return &claudeStream{stream: stream}, nil
}

func (o *Opener) buildParams(body completion.RequestBody) (anthropic.MessageNewParams, error) {
	model := o.model
	if model == "" {
		model = body.Model
	}
	maxTokens := body.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}

	msgs, system, err := messageParams(body.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if body.Temperature > 0 {
		params.Temperature = param.NewOpt(body.Temperature)
	}
	if len(body.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(body.Tools))
		for _, decl := range body.Tools {
			converted, err := claudeTool(decl)
			if err != nil {
				return anthropic.MessageNewParams{}, err
			}
			tools = append(tools, converted)
		}
		params.Tools = tools
	}
	return params, nil
}

// messageParams converts wire messages to SDK params. System messages are
// pulled out and joined for the params' System field. A function-role result
// becomes a synthetic assistant tool_use block followed by the matching
// tool_result, which is how the Messages API expects tool outcomes to be
// replayed.
func messageParams(messages []completion.WireMessage) ([]anthropic.MessageParam, string, error) {
	var system []string
	params := make([]anthropic.MessageParam, 0, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case string(message.RoleSystem):
			system = append(system, msg.Content)
		case string(message.RoleUser):
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case string(message.RoleAssistant):
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		case string(message.RoleFunction):
			id := fmt.Sprintf("toolu_%03d", i)
			params = append(params, toolUseParam(id, msg.Name), toolResultParam(id, msg.Content))
		default:
			return nil, "", fmt.Errorf("claude: unsupported message role %q", msg.Role)
		}
	}
	return params, strings.Join(system, "\n"), nil
}

func toolUseParam(id, name string) anthropic.MessageParam {
	return anthropic.MessageParam{
		Role: anthropic.MessageParamRoleAssistant,
		Content: []anthropic.ContentBlockParamUnion{{
			OfToolUse: &anthropic.ToolUseBlockParam{ID: id, Name: name, Input: map[string]any{}},
		}},
	}
}

func toolResultParam(id, content string) anthropic.MessageParam {
	return anthropic.MessageParam{
		Role: anthropic.MessageParamRoleUser,
		Content: []anthropic.ContentBlockParamUnion{{
			OfToolResult: &anthropic.ToolResultBlockParam{
				ToolUseID: id,
				Content: []anthropic.ToolResultBlockParamContentUnion{{
					OfText: &anthropic.TextBlockParam{Text: content},
				}},
			},
		}},
	}
}

// claudeTool reshapes one wire tool declaration into the Messages API form.
func claudeTool(decl map[string]any) (anthropic.ToolUnionParam, error) {
	fn, ok := decl["function"].(map[string]any)
	if !ok {
		return anthropic.ToolUnionParam{}, fmt.Errorf("claude: tool declaration missing function object")
	}
	shaped := map[string]any{
		"name":         fn["name"],
		"description":  fn["description"],
		"input_schema": fn["parameters"],
	}
	raw, err := json.Marshal(shaped)
	if err != nil {
		return anthropic.ToolUnionParam{}, fmt.Errorf("claude: marshal tool: %w", err)
	}
	var toolParam anthropic.ToolParam
	if err := json.Unmarshal(raw, &toolParam); err != nil {
		return anthropic.ToolUnionParam{}, fmt.Errorf("claude: convert tool: %w", err)
	}
	return anthropic.ToolUnionParam{OfTool: &toolParam}, nil
}

type claudeStream struct {
	stream  *anthropicstream.Stream[anthropic.MessageStreamEventUnion]
	pending []string
	done    bool
}

func (s *claudeStream) Recv(ctx context.Context) (string, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if s.done {
			return "", io.EOF
		}
		if !s.stream.Next() {
			if err := s.stream.Err(); err != nil {
				return "", fmt.Errorf("%w: %v", transport.ErrConnection, err)
			}
			s.done = true
			s.pending = append(s.pending, completion.Terminator)
			continue
		}
		s.pending = append(s.pending, translate(s.stream.Current())...)
	}

	payload := s.pending[0]
	s.pending = s.pending[1:]
	return payload, nil
}

func (s *claudeStream) Close() error {
	return s.stream.Close()
}

// translate maps one SDK event onto the engine's wire payloads. Events that
// carry nothing the engine consumes produce no payloads.
func translate(event anthropic.MessageStreamEventUnion) []string {
	switch event.Type {
	case "content_block_start":
		start := event.AsContentBlockStart()
		if start.ContentBlock.Type == "tool_use" {
			return []string{toolNamePayload(start.ContentBlock.Name)}
		}
	case "content_block_delta":
		delta := event.AsContentBlockDelta()
		switch delta.Delta.Type {
		case "text_delta":
			if delta.Delta.Text != "" {
				return []string{tokenPayload(delta.Delta.Text)}
			}
		case "input_json_delta":
			if delta.Delta.PartialJSON != "" {
				return []string{toolArgsPayload(delta.Delta.PartialJSON)}
			}
		}
	case "message_delta":
		md := event.AsMessageDelta()
		switch string(md.Delta.StopReason) {
		case "":
			// Usage-only delta.
		case "tool_use":
			return []string{finishPayload("tool_calls")}
		default:
			return []string{finishPayload("stop")}
		}
	}
	return nil
}

func tokenPayload(text string) string {
	return chunkPayload(completion.Delta{Content: &text}, "")
}

func toolNamePayload(name string) string {
	return chunkPayload(completion.Delta{
		ToolCalls: []completion.ToolCallDelta{{Function: completion.FunctionDelta{Name: name}}},
	}, "")
}

func toolArgsPayload(fragment string) string {
	return chunkPayload(completion.Delta{
		ToolCalls: []completion.ToolCallDelta{{Function: completion.FunctionDelta{Arguments: fragment}}},
	}, "")
}

func finishPayload(reason string) string {
	return chunkPayload(completion.Delta{}, reason)
}

func chunkPayload(delta completion.Delta, finish string) string {
	chunk := completion.Chunk{Choices: []completion.Choice{{Delta: delta, FinishReason: finish}}}
	raw, err := json.Marshal(chunk)
	if err != nil {
		return completion.Terminator
	}
	return string(raw)
}
