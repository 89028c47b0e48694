// Package sse implements the transport boundary over HTTP server-sent
// events, the framing used by OpenAI-compatible completion endpoints.
package sse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/openai/openai-go/v3/packages/ssestream"

	"github.com/sweetpotato0/chatflow/transport"
)

// Opener opens SSE streams over HTTP.
type Opener struct {
	client *http.Client
}

// Option configures an Opener.
type Option func(*Opener)

// WithHTTPClient replaces the http.Client used for requests. The client
// should not set a Timeout; streams are long-lived and cancellation is
// handled through the request context.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opener) {
		if c != nil {
			o.client = c
		}
	}
}

// New creates an SSE opener.
func New(opts ...Option) *Opener {
	o := &Opener{client: &http.Client{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open issues the HTTP request and returns a stream of raw event payloads.
// Non-2xx responses are reported as connection errors with a body excerpt.
func (o *Opener) Open(ctx context.Context, req transport.Request) (transport.Stream, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrConnection, err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-store")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrConnection, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %d: %s",
			transport.ErrConnection, resp.StatusCode, bytes.TrimSpace(excerpt))
	}

	return &stream{decoder: ssestream.NewDecoder(resp)}, nil
}

type stream struct {
	decoder ssestream.Decoder
}

func (s *stream) Recv(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !s.decoder.Next() {
		if err := s.decoder.Err(); err != nil && !errors.Is(err, io.EOF) {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			return "", fmt.Errorf("%w: %v", transport.ErrConnection, err)
		}
		return "", io.EOF
	}
	return string(s.decoder.Event().Data), nil
}

func (s *stream) Close() error {
	return s.decoder.Close()
}
