package mcp

import (
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestNormalizeContent(t *testing.T) {
	content := []sdkmcp.Content{
		&sdkmcp.TextContent{Text: "hello"},
		&sdkmcp.ResourceLink{URI: "file://foo", Name: "foo.txt"},
	}

	got := normalizeContent(content)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), got)
	}
	if lines[0] != "hello" {
		t.Fatalf("expected first line to be 'hello', got %q", lines[0])
	}
	if !strings.Contains(lines[1], "\"resource_link\"") {
		t.Fatalf("expected JSON output to include resource link type: %q", lines[1])
	}
}

func TestNormalizeContentEmpty(t *testing.T) {
	if got := normalizeContent(nil); got != "" {
		t.Errorf("expected empty string for no content, got %q", got)
	}
}

func TestToolErrorMessage(t *testing.T) {
	err := &ToolError{Name: "search", Message: "index unavailable"}
	if got := err.Error(); got != "mcp: tool search failed: index unavailable" {
		t.Errorf("unexpected error message: %q", got)
	}

	bare := &ToolError{Name: "search"}
	if got := bare.Error(); got != "mcp: tool search failed" {
		t.Errorf("unexpected error message without detail: %q", got)
	}
}

func TestConvertInitializeResult(t *testing.T) {
	if convertInitializeResult(nil) != nil {
		t.Fatal("expected nil result for nil input")
	}

	res := &sdkmcp.InitializeResult{
		ProtocolVersion: "2025-03-26",
		ServerInfo: &sdkmcp.Implementation{
			Name:    "files",
			Version: "1.2.0",
		},
		Instructions: "prefer absolute paths",
	}

	got := convertInitializeResult(res)
	if got.ProtocolVersion != "2025-03-26" {
		t.Errorf("expected protocol version to carry over, got %q", got.ProtocolVersion)
	}
	if got.ServerInfo.Name != "files" || got.ServerInfo.Version != "1.2.0" {
		t.Errorf("unexpected server info: %+v", got.ServerInfo)
	}
	if got.Instructions != "prefer absolute paths" {
		t.Errorf("unexpected instructions: %q", got.Instructions)
	}
}
