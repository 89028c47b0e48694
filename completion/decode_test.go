package completion

import (
	"errors"
	"testing"
)

func TestDecodeTerminator(t *testing.T) {
	event, err := DecodeEvent("[DONE]", false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if event.Kind != EventTerminator {
		t.Errorf("Expected terminator event, got %v", event.Kind)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	for _, payload := range []string{"", "   ", "\n"} {
		_, err := DecodeEvent(payload, false)
		if !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Payload %q: expected empty message error, got %v", payload, err)
		}
	}
}

func TestDecodeUnparseable(t *testing.T) {
	_, err := DecodeEvent("not json at all", false)
	if !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Expected unknown message error, got %v", err)
	}
}

func TestDecodeNoChoices(t *testing.T) {
	for _, payload := range []string{`{}`, `{"choices":[]}`, `{"id":"x","choices":null}`} {
		event, err := DecodeEvent(payload, false)
		if err != nil {
			t.Fatalf("Payload %q: expected no error, got %v", payload, err)
		}
		if event.Kind != EventNone {
			t.Errorf("Payload %q: expected no-op event, got %v", payload, event.Kind)
		}
	}
}

func TestDecodeFinishReasons(t *testing.T) {
	event, err := DecodeEvent(`{"choices":[{"finish_reason":"tool_calls","delta":{}}]}`, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if event.Kind != EventFinishToolCalls {
		t.Errorf("Expected finish-tool-calls event, got %v", event.Kind)
	}

	event, err = DecodeEvent(`{"choices":[{"finish_reason":"stop","delta":{}}]}`, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if event.Kind != EventFinishStop {
		t.Errorf("Expected finish-stop event, got %v", event.Kind)
	}
}

func TestDecodeFinishReasonBeatsContent(t *testing.T) {
	// A frame carrying both a finish reason and content resolves to the
	// finish reason; rules apply in priority order.
	event, err := DecodeEvent(`{"choices":[{"finish_reason":"stop","delta":{"content":"tail"}}]}`, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if event.Kind != EventFinishStop {
		t.Errorf("Expected finish-stop event, got %v", event.Kind)
	}
}

func TestDecodeToken(t *testing.T) {
	event, err := DecodeEvent(`{"choices":[{"delta":{"content":"Hello"}}]}`, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if event.Kind != EventToken {
		t.Fatalf("Expected token event, got %v", event.Kind)
	}
	if event.Text != "Hello" {
		t.Errorf("Expected text 'Hello', got %q", event.Text)
	}
}

func TestDecodeEmptyStringToken(t *testing.T) {
	// An empty string is still a token; only null content is skipped.
	event, err := DecodeEvent(`{"choices":[{"delta":{"role":"assistant","content":""}}]}`, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if event.Kind != EventToken {
		t.Errorf("Expected token event for empty string content, got %v", event.Kind)
	}
	if event.Text != "" {
		t.Errorf("Expected empty text, got %q", event.Text)
	}
}

func TestDecodeNullContentWithToolCalls(t *testing.T) {
	payload := `{"choices":[{"delta":{"content":null,"tool_calls":[{"index":0,"function":{"name":"getWeather"}}]}}]}`
	event, err := DecodeEvent(payload, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if event.Kind != EventToolCallDelta {
		t.Fatalf("Expected tool-call delta, got %v", event.Kind)
	}
	if event.ToolName != "getWeather" {
		t.Errorf("Expected name fragment 'getWeather', got %q", event.ToolName)
	}
	if event.ToolArgs != "" {
		t.Errorf("Expected no args fragment, got %q", event.ToolArgs)
	}
}

func TestDecodeToolCallBothFragments(t *testing.T) {
	payload := `{"choices":[{"delta":{"tool_calls":[{"function":{"name":"get","arguments":"{\"a\":"}}]}}]}`
	event, err := DecodeEvent(payload, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if event.Kind != EventToolCallDelta {
		t.Fatalf("Expected tool-call delta, got %v", event.Kind)
	}
	if event.ToolName != "get" || event.ToolArgs != `{"a":` {
		t.Errorf("Expected both fragments, got name=%q args=%q", event.ToolName, event.ToolArgs)
	}
}

func TestDecodeToolCallFirstSlotOnly(t *testing.T) {
	payload := `{"choices":[{"delta":{"tool_calls":[` +
		`{"index":0,"function":{"arguments":"first"}},` +
		`{"index":1,"function":{"arguments":"second"}}]}}]}`
	event, err := DecodeEvent(payload, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if event.ToolArgs != "first" {
		t.Errorf("Expected only the first slot honored, got %q", event.ToolArgs)
	}
}

func TestDecodeUnknownShape(t *testing.T) {
	_, err := DecodeEvent(`{"choices":[{"delta":{}}]}`, false)
	if !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Expected unknown message error, got %v", err)
	}
}

func TestDecodeEmptyToolSlotDuringAccumulation(t *testing.T) {
	// Bookkeeping frames without fragments are no-ops while a tool call is
	// accumulating, and unknown otherwise.
	payload := `{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{}}]}}]}`

	event, err := DecodeEvent(payload, true)
	if err != nil {
		t.Fatalf("Expected no error during accumulation, got %v", err)
	}
	if event.Kind != EventNone {
		t.Errorf("Expected no-op event, got %v", event.Kind)
	}

	if _, err := DecodeEvent(payload, false); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Expected unknown message error outside accumulation, got %v", err)
	}
}
