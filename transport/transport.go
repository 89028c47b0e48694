// Package transport defines the streaming boundary the completion engine
// consumes: something that can open a request and hand back a stream of raw
// message payloads. Implementations live in subpackages; the engine never
// sees HTTP details.
package transport

import (
	"context"
	"errors"
	"net/http"
)

// Request describes one streaming call to a completion endpoint.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Stream delivers raw message payloads one frame at a time. Recv blocks
// until the next frame arrives and returns io.EOF once the server has
// closed the stream. Errors other than io.EOF indicate a connection-level
// failure. Close releases the underlying connection; it is safe to call
// after Recv returned an error.
type Stream interface {
	Recv(ctx context.Context) (string, error)
	Close() error
}

// Opener opens a stream for a request.
type Opener interface {
	Open(ctx context.Context, req Request) (Stream, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, req Request) (Stream, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, req Request) (Stream, error) {
	return f(ctx, req)
}

// ErrConnection marks connection-level transport failures: dial errors,
// unexpected HTTP statuses, broken reads.
var ErrConnection = errors.New("transport: connection failed")
