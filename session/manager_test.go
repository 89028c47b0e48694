package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	errorskg "github.com/sweetpotato0/chatflow/errors"
)

func TestManagerCreateAndGet(t *testing.T) {
	mgr := NewManager(newTestClient(&fakeOpener{}))

	conv, err := mgr.Create("conv-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if conv.ID() != "conv-1" {
		t.Errorf("Expected ID 'conv-1', got %q", conv.ID())
	}

	got, err := mgr.Get("conv-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != conv {
		t.Error("Expected Get to return the created conversation")
	}

	if mgr.Count() != 1 {
		t.Errorf("Expected count 1, got %d", mgr.Count())
	}
}

func TestManagerCreateGeneratesID(t *testing.T) {
	mgr := NewManager(newTestClient(&fakeOpener{}))

	conv, err := mgr.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if conv.ID() == "" {
		t.Error("Expected generated ID")
	}
	if _, err := mgr.Get(conv.ID()); err != nil {
		t.Errorf("Expected conversation registered under generated ID: %v", err)
	}
}

func TestManagerCreateDuplicate(t *testing.T) {
	mgr := NewManager(newTestClient(&fakeOpener{}))

	if _, err := mgr.Create("dup"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := mgr.Create("dup")
	if !errors.Is(err, errorskg.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}
}

func TestManagerGetMissing(t *testing.T) {
	mgr := NewManager(newTestClient(&fakeOpener{}))

	_, err := mgr.Get("missing")
	if !errors.Is(err, errorskg.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestManagerGetOrCreate(t *testing.T) {
	mgr := NewManager(newTestClient(&fakeOpener{}))

	c1 := mgr.GetOrCreate("lazy")
	c2 := mgr.GetOrCreate("lazy")
	if c1 != c2 {
		t.Error("Expected same conversation on repeated GetOrCreate")
	}
	if mgr.Count() != 1 {
		t.Errorf("Expected count 1, got %d", mgr.Count())
	}
}

func TestManagerDelete(t *testing.T) {
	mgr := NewManager(newTestClient(&fakeOpener{}))

	conv, _ := mgr.Create("gone")
	if err := mgr.Delete("gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if conv.State() != StateClosed {
		t.Error("Expected deleted conversation to be closed")
	}
	if err := mgr.Delete("gone"); !errors.Is(err, errorskg.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestManagerDefaults(t *testing.T) {
	opener := &fakeOpener{scripts: [][]string{replyScript("ok")}}
	mgr := NewManager(newTestClient(opener),
		WithConversationDefaults(WithSystemPrompt("always brief")))

	conv, err := mgr.Create("with-defaults")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := conv.Ask(context.Background(), "hi"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	if len(opener.bodies) != 1 {
		t.Fatalf("Expected one request, got %d", len(opener.bodies))
	}
	body := string(opener.bodies[0])
	if !strings.Contains(body, "always brief") {
		t.Errorf("Expected default system prompt on wire, got %s", body)
	}
}

func TestManagerCloseAll(t *testing.T) {
	mgr := NewManager(newTestClient(&fakeOpener{}))
	c1, _ := mgr.Create("a")
	c2, _ := mgr.Create("b")

	mgr.CloseAll()

	if mgr.Count() != 0 {
		t.Errorf("Expected empty manager, got %d", mgr.Count())
	}
	if c1.State() != StateClosed || c2.State() != StateClosed {
		t.Error("Expected all conversations closed")
	}
}
