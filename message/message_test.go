package message

import (
	"testing"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "Hello, world!")

	if msg.Role != RoleUser {
		t.Errorf("Expected role %s, got %s", RoleUser, msg.Role)
	}

	if msg.Content != "Hello, world!" {
		t.Errorf("Expected content 'Hello, world!', got '%s'", msg.Content)
	}

	if msg.ID == "" {
		t.Error("Expected non-empty ID")
	}

	if msg.CreatedAt.IsZero() {
		t.Error("Expected non-zero created time")
	}
}

func TestNewFunctionResult(t *testing.T) {
	msg := NewFunctionResult("getWeather", `{"temp":21}`)

	if msg.Role != RoleFunction {
		t.Errorf("Expected role %s, got %s", RoleFunction, msg.Role)
	}

	if msg.Name != "getWeather" {
		t.Errorf("Expected name 'getWeather', got '%s'", msg.Name)
	}

	if msg.Content != `{"temp":21}` {
		t.Errorf("Expected content '{\"temp\":21}', got '%s'", msg.Content)
	}
}

func TestMessageIDsUnique(t *testing.T) {
	a := NewMessage(RoleUser, "one")
	b := NewMessage(RoleUser, "two")

	if a.ID == b.ID {
		t.Errorf("Expected unique IDs, both were '%s'", a.ID)
	}
}

func TestClone(t *testing.T) {
	msg := NewMessage(RoleAssistant, "original")
	msg.Metadata["key"] = "value"

	cloned := Clone(msg)
	cloned.Content = "changed"
	cloned.Metadata["key"] = "other"

	if msg.Content != "original" {
		t.Errorf("Expected original content unchanged, got '%s'", msg.Content)
	}

	if msg.Metadata["key"] != "value" {
		t.Errorf("Expected original metadata unchanged, got '%v'", msg.Metadata["key"])
	}
}

func TestCloneNil(t *testing.T) {
	if Clone(nil) != nil {
		t.Error("Expected nil clone for nil message")
	}

	if CloneMessages(nil) != nil {
		t.Error("Expected nil clone for empty slice")
	}
}
