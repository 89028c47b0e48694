package gemini

import (
	"encoding/json"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/sweetpotato0/chatflow/completion"
)

func TestChunkPayloadsText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []genai.Part{genai.Text("Hel")}},
		}},
	}

	payloads, sawCall := chunkPayloads(resp)
	if sawCall {
		t.Error("expected no function call")
	}
	if len(payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(payloads))
	}

	event, err := completion.DecodeEvent(payloads[0], false)
	if err != nil {
		t.Fatalf("payload did not decode: %v", err)
	}
	if event.Kind != completion.EventToken || event.Text != "Hel" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestChunkPayloadsFunctionCall(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []genai.Part{
				genai.FunctionCall{Name: "get_weather", Args: map[string]any{"city": "Berlin"}},
			}},
		}},
	}

	payloads, sawCall := chunkPayloads(resp)
	if !sawCall {
		t.Fatal("expected function call to be reported")
	}
	if len(payloads) != 2 {
		t.Fatalf("expected name and args payloads, got %d", len(payloads))
	}

	nameEvent, err := completion.DecodeEvent(payloads[0], false)
	if err != nil {
		t.Fatalf("name payload did not decode: %v", err)
	}
	if nameEvent.Kind != completion.EventToolCallDelta || nameEvent.ToolName != "get_weather" {
		t.Errorf("unexpected name event: %+v", nameEvent)
	}

	argsEvent, err := completion.DecodeEvent(payloads[1], true)
	if err != nil {
		t.Fatalf("args payload did not decode: %v", err)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(argsEvent.ToolArgs), &args); err != nil {
		t.Fatalf("arguments are not JSON: %v", err)
	}
	if args["city"] != "Berlin" {
		t.Errorf("expected city argument, got %v", args)
	}
}

func TestChunkPayloadsEmptyResponse(t *testing.T) {
	if payloads, _ := chunkPayloads(nil); payloads != nil {
		t.Errorf("expected no payloads for nil response, got %v", payloads)
	}
	if payloads, _ := chunkPayloads(&genai.GenerateContentResponse{}); payloads != nil {
		t.Errorf("expected no payloads for empty response, got %v", payloads)
	}
}

func TestToSchema(t *testing.T) {
	schema := toSchema(map[string]any{
		"type":        "object",
		"description": "weather query",
		"properties": map[string]any{
			"city":  map[string]any{"type": "string", "description": "city name"},
			"days":  map[string]any{"type": "integer"},
			"units": map[string]any{"type": "string", "enum": []any{"metric", "imperial"}},
			"tags":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"city"},
	})

	if schema.Type != genai.TypeObject {
		t.Errorf("expected object type, got %v", schema.Type)
	}
	if schema.Description != "weather query" {
		t.Errorf("unexpected description: %q", schema.Description)
	}
	if schema.Properties["city"].Type != genai.TypeString {
		t.Errorf("expected string city, got %v", schema.Properties["city"].Type)
	}
	if schema.Properties["days"].Type != genai.TypeInteger {
		t.Errorf("expected integer days, got %v", schema.Properties["days"].Type)
	}
	if got := schema.Properties["units"].Enum; len(got) != 2 || got[0] != "metric" {
		t.Errorf("unexpected enum: %v", got)
	}
	if schema.Properties["tags"].Items == nil || schema.Properties["tags"].Items.Type != genai.TypeString {
		t.Error("expected array items schema")
	}
	if len(schema.Required) != 1 || schema.Required[0] != "city" {
		t.Errorf("unexpected required: %v", schema.Required)
	}

	if toSchema(nil) != nil {
		t.Error("expected nil schema for empty map")
	}
}

func TestGeminiTools(t *testing.T) {
	tools := geminiTools([]map[string]any{{
		"type": "function",
		"function": map[string]any{
			"name":        "get_weather",
			"description": "Current weather",
			"parameters":  map[string]any{"type": "object"},
		},
	}})

	if len(tools) != 1 || len(tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("expected one declaration, got %v", tools)
	}
	decl := tools[0].FunctionDeclarations[0]
	if decl.Name != "get_weather" || decl.Description != "Current weather" {
		t.Errorf("unexpected declaration: %+v", decl)
	}

	if geminiTools(nil) != nil {
		t.Error("expected nil for no declarations")
	}
}

func TestFunctionResponseWrapsScalars(t *testing.T) {
	fr := functionResponse("get_weather", `{"temp":21}`)
	if fr.Name != "get_weather" {
		t.Errorf("unexpected name: %q", fr.Name)
	}
	if fr.Response["temp"] != float64(21) {
		t.Errorf("expected object payload to pass through, got %v", fr.Response)
	}

	fr = functionResponse("get_weather", "sunny")
	if fr.Response["result"] != "sunny" {
		t.Errorf("expected scalar to be wrapped, got %v", fr.Response)
	}
}

func TestHistoryContents(t *testing.T) {
	contents, err := historyContents([]completion.WireMessage{
		{Role: "user", Content: "weather?"},
		{Role: "assistant", Content: "checking"},
		{Role: "function", Name: "get_weather", Content: `{"temp":21}`},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Errorf("unexpected roles: %q, %q", contents[0].Role, contents[1].Role)
	}
	if contents[2].Role != "user" {
		t.Errorf("expected function result under user role, got %q", contents[2].Role)
	}
	if _, ok := contents[2].Parts[0].(genai.FunctionResponse); !ok {
		t.Errorf("expected FunctionResponse part, got %T", contents[2].Parts[0])
	}

	if _, err := historyContents([]completion.WireMessage{{Role: "tool"}}); err == nil {
		t.Error("expected error for unsupported role")
	}
}

func TestSystemTextSplit(t *testing.T) {
	messages := []completion.WireMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}
	if got := systemText(messages); got != "be brief" {
		t.Errorf("unexpected system text: %q", got)
	}
	rest := withoutSystem(messages)
	if len(rest) != 1 || rest[0].Role != "user" {
		t.Errorf("unexpected conversation remainder: %v", rest)
	}
}
