// Package gemini adapts Google's Generative Language API to the engine's
// transport boundary using the official SDK, so the standard decoder and
// turn state machine drive Gemini streams unchanged.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/sweetpotato0/chatflow/completion"
	"github.com/sweetpotato0/chatflow/message"
	"github.com/sweetpotato0/chatflow/transport"
)

// Option configures the opener.
type Option func(*Opener)

// WithModel forces a model, overriding the one carried in request bodies.
func WithModel(model string) Option {
	return func(o *Opener) { o.model = model }
}

// Opener opens completion streams against the Gemini API.
type Opener struct {
	client *genai.Client
	model  string
}

// New dials the Gemini API. The client is shared by every opened stream;
// Close releases it.
func New(ctx context.Context, apiKey string, opts ...Option) (*Opener, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	o := &Opener{client: client}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Close releases the underlying API client.
func (o *Opener) Close() error {
	return o.client.Close()
}

// Open implements transport.Opener. The request body is the engine's wire
// body; URL and headers are ignored in favor of the SDK configuration.
func (o *Opener) Open(ctx context.Context, req transport.Request) (transport.Stream, error) {
	var body completion.RequestBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, fmt.Errorf("gemini: decode request body: %w", err)
	}

	name := o.model
	if name == "" {
		name = body.Model
	}
	model := o.client.GenerativeModel(name)
	if body.Temperature > 0 {
		model.SetTemperature(float32(body.Temperature))
	}
	if body.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(body.MaxTokens))
	}
	if system := systemText(body.Messages); system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if tools := geminiTools(body.Tools); tools != nil {
		model.Tools = tools
	}

	conversation := withoutSystem(body.Messages)
	if len(conversation) == 0 {
		return nil, fmt.Errorf("gemini: request carries no conversation messages")
	}
	last := conversation[len(conversation)-1]

	chat := model.StartChat()
	history, err := historyContents(conversation[:len(conversation)-1])
	if err != nil {
		return nil, err
	}
	chat.History = history

	part, err := partForMessage(last)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	return &geminiStream{
		iter:   chat.SendMessageStream(streamCtx, part),
		cancel: cancel,
	}, nil
}

func systemText(messages []completion.WireMessage) string {
	var parts []string
	for _, msg := range messages {
		if msg.Role == string(message.RoleSystem) {
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func withoutSystem(messages []completion.WireMessage) []completion.WireMessage {
	out := make([]completion.WireMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role != string(message.RoleSystem) {
			out = append(out, msg)
		}
	}
	return out
}

// historyContents maps wire messages onto chat history entries. Gemini only
// knows user and model roles; tool results ride along as user-role function
// responses.
func historyContents(messages []completion.WireMessage) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		part, err := partForMessage(msg)
		if err != nil {
			return nil, err
		}
		role := "user"
		if msg.Role == string(message.RoleAssistant) {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{part}})
	}
	return contents, nil
}

func partForMessage(msg completion.WireMessage) (genai.Part, error) {
	switch msg.Role {
	case string(message.RoleUser), string(message.RoleAssistant):
		return genai.Text(msg.Content), nil
	case string(message.RoleFunction):
		return functionResponse(msg.Name, msg.Content), nil
	default:
		return nil, fmt.Errorf("gemini: unsupported message role %q", msg.Role)
	}
}

// functionResponse wraps a tool result for the API, which wants a JSON
// object; scalar results get wrapped under a "result" key.
func functionResponse(name, content string) genai.FunctionResponse {
	response := map[string]any{}
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		response = map[string]any{"result": content}
	}
	return genai.FunctionResponse{Name: name, Response: response}
}

// geminiTools converts the wire tool declarations into SDK declarations.
func geminiTools(decls []map[string]any) []*genai.Tool {
	fns := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, decl := range decls {
		fn, ok := decl["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		if name == "" {
			continue
		}
		description, _ := fn["description"].(string)
		var params *genai.Schema
		if raw, ok := fn["parameters"].(map[string]any); ok {
			params = toSchema(raw)
		}
		fns = append(fns, &genai.FunctionDeclaration{
			Name:        name,
			Description: description,
			Parameters:  params,
		})
	}
	if len(fns) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: fns}}
}

// toSchema converts a JSON schema map into the SDK's typed schema. Only the
// subset the API understands is carried over.
func toSchema(m map[string]any) *genai.Schema {
	if len(m) == 0 {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = schemaType(t)
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	for _, e := range anySlice(m["enum"]) {
		if str, ok := e.(string); ok {
			s.Enum = append(s.Enum, str)
		}
	}
	if props, ok := m["properties"].(map[string]any); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	for _, r := range anySlice(m["required"]) {
		if str, ok := r.(string); ok {
			s.Required = append(s.Required, str)
		}
	}
	return s
}

func anySlice(v any) []any {
	switch vs := v.(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	}
	return nil
}

func schemaType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeUnspecified
}

type geminiStream struct {
	iter    *genai.GenerateContentResponseIterator
	cancel  context.CancelFunc
	pending []string
	sawCall bool
	done    bool
}

func (s *geminiStream) Recv(ctx context.Context) (string, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if s.done {
			return "", io.EOF
		}
		resp, err := s.iter.Next()
		if err == iterator.Done {
			s.done = true
			finish := "stop"
			if s.sawCall {
				finish = "tool_calls"
			}
			s.pending = append(s.pending, finishPayload(finish), completion.Terminator)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", transport.ErrConnection, err)
		}
		payloads, sawCall := chunkPayloads(resp)
		s.sawCall = s.sawCall || sawCall
		s.pending = append(s.pending, payloads...)
	}

	payload := s.pending[0]
	s.pending = s.pending[1:]
	return payload, nil
}

func (s *geminiStream) Close() error {
	s.cancel()
	return nil
}

// chunkPayloads maps one streamed response onto wire payloads and reports
// whether it carried a function call.
func chunkPayloads(resp *genai.GenerateContentResponse) ([]string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, false
	}

	var payloads []string
	sawCall := false
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			if v != "" {
				payloads = append(payloads, tokenPayload(string(v)))
			}
		case genai.FunctionCall:
			sawCall = true
			payloads = append(payloads, toolNamePayload(v.Name))
			args := v.Args
			if args == nil {
				args = map[string]any{}
			}
			if raw, err := json.Marshal(args); err == nil {
				payloads = append(payloads, toolArgsPayload(string(raw)))
			}
		}
	}
	return payloads, sawCall
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
