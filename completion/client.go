// Package completion implements one logical turn of a streaming chat
// conversation: decoding the endpoint's event stream, accumulating text
// and tool-call deltas, validating and driving declared tools, and
// recursively resuming the conversation with tool results.
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sweetpotato0/chatflow/message"
	"github.com/sweetpotato0/chatflow/pkg/logging"
	"github.com/sweetpotato0/chatflow/pkg/telemetry"
	"github.com/sweetpotato0/chatflow/tool"
	"github.com/sweetpotato0/chatflow/transport"
	"github.com/sweetpotato0/chatflow/transport/sse"
)

// Request describes one completion turn: the conversation so far, the
// declared tools and the model parameters. Zero-valued parameters are
// filled from the client's defaults.
type Request struct {
	Model       string
	Messages    []*message.Message
	Tools       *tool.Registry
	Temperature float64
	MaxTokens   int64
}

// Serialize builds the outbound JSON body, including the function-tool
// declarations for every registered tool.
func (r *Request) Serialize() ([]byte, error) {
	body := RequestBody{
		Model:       r.Model,
		Stream:      true,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
		Messages:    make([]WireMessage, 0, len(r.Messages)),
	}
	for _, msg := range r.Messages {
		if msg == nil {
			continue
		}
		body.Messages = append(body.Messages, WireMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
			Name:    msg.Name,
		})
	}
	if r.Tools != nil && r.Tools.Len() > 0 {
		body.Tools = r.Tools.WireSchemas()
	}
	return json.Marshal(body)
}

// Client runs completion turns against one endpoint. Construct it
// explicitly and share it freely; it holds no per-turn state.
type Client struct {
	opener       transport.Opener
	baseURL      string
	apiKey       string
	header       http.Header
	model        string
	temperature  float64
	maxTokens    int64
	maxToolDepth int
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option is a function that configures a Client
type Option func(*Client)

// WithOpener replaces the transport used to open streams. The default is
// the HTTP SSE transport.
func WithOpener(opener transport.Opener) Option {
	return func(c *Client) {
		if opener != nil {
			c.opener = opener
		}
	}
}

// WithBaseURL sets the endpoint base URL, e.g. "https://api.openai.com/v1".
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithAPIKey sets the bearer token sent on each request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.header == nil {
			c.header = make(http.Header)
		}
		c.header.Add(key, value)
	}
}

// WithModel sets the default model
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithTemperature sets the default sampling temperature
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.temperature = temp
	}
}

// WithMaxTokens sets the default response token limit
func WithMaxTokens(max int64) Option {
	return func(c *Client) {
		c.maxTokens = max
	}
}

// WithMaxToolDepth bounds how many chained tool-call continuations a
// single turn may spawn. Exceeding the bound reports
// ErrToolDepthExceeded and finishes the turn.
func WithMaxToolDepth(depth int) Option {
	return func(c *Client) {
		if depth > 0 {
			c.maxToolDepth = depth
		}
	}
}

// WithLogger replaces the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client with the given options
func New(opts ...Option) *Client {
	client := &Client{
		opener:       sse.New(),
		baseURL:      "https://api.openai.com/v1",
		model:        "gpt-4o-mini",
		temperature:  0.7,
		maxToolDepth: 10,
		logger:       logging.WithComponent("completion"),
		tracer:       otel.Tracer("chatflow/completion"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Complete runs one top-level completion turn, including any recursive
// tool-call continuations, and blocks until the turn has ended. Failures
// are delivered through cb.OnError as they happen; the first error that
// ends the turn is also returned.
func (c *Client) Complete(ctx context.Context, req *Request, cb Callbacks) (err error) {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	filled := c.fill(req)
	ctx, span := c.tracer.Start(ctx, "completion.turn",
		trace.WithAttributes(attribute.String("model", filled.Model)))
	defer func() { telemetry.End(span, err) }()

	c.logger.Debug("starting completion turn",
		"model", filled.Model,
		"messages", len(filled.Messages),
		"tools", toolCount(filled.Tools))

	s := &session{client: c, req: filled, cb: cb}
	err = s.run(ctx)
	return err
}

// fill copies the request and applies the client's defaults to zero-valued
// parameters.
func (c *Client) fill(req *Request) *Request {
	filled := *req
	if filled.Model == "" {
		filled.Model = c.model
	}
	if filled.Temperature == 0 {
		filled.Temperature = c.temperature
	}
	if filled.MaxTokens == 0 {
		filled.MaxTokens = c.maxTokens
	}
	return &filled
}

func (c *Client) open(ctx context.Context, body []byte) (transport.Stream, error) {
	header := make(http.Header)
	for key, values := range c.header {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.opener.Open(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    c.endpoint(),
		Header: header,
		Body:   body,
	})
}

func (c *Client) endpoint() string {
	return strings.TrimSuffix(c.baseURL, "/") + "/chat/completions"
}

func toolCount(registry *tool.Registry) int {
	if registry == nil {
		return 0
	}
	return registry.Len()
}
