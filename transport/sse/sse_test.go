package sse

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sweetpotato0/chatflow/transport"
)

func TestOpenAndRecv(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("Expected Accept text/event-stream, got %s", accept)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	opener := New()
	stream, err := opener.Open(context.Background(), transport.Request{
		URL:  server.URL,
		Body: []byte(`{"model":"test"}`),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	first, err := stream.Recv(context.Background())
	if err != nil {
		t.Fatalf("First Recv failed: %v", err)
	}
	if first != `{"choices":[]}` {
		t.Errorf("Expected choices payload, got %q", first)
	}

	second, err := stream.Recv(context.Background())
	if err != nil {
		t.Fatalf("Second Recv failed: %v", err)
	}
	if second != "[DONE]" {
		t.Errorf("Expected terminator payload, got %q", second)
	}

	if _, err := stream.Recv(context.Background()); err != io.EOF {
		t.Errorf("Expected io.EOF after server close, got %v", err)
	}
}

func TestOpenBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer server.Close()

	opener := New()
	_, err := opener.Open(context.Background(), transport.Request{URL: server.URL})
	if err == nil {
		t.Fatal("Expected error for 404 response, got nil")
	}
	if !errors.Is(err, transport.ErrConnection) {
		t.Errorf("Expected connection error, got %v", err)
	}
}

func TestRecvCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: one\n\n")
	}))
	defer server.Close()

	opener := New()
	stream, err := opener.Open(context.Background(), transport.Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := stream.Recv(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestOpenConnectionRefused(t *testing.T) {
	opener := New()
	_, err := opener.Open(context.Background(), transport.Request{URL: "http://127.0.0.1:1/v1/chat/completions"})
	if err == nil {
		t.Fatal("Expected error for unreachable endpoint, got nil")
	}
	if !errors.Is(err, transport.ErrConnection) {
		t.Errorf("Expected connection error, got %v", err)
	}
}
