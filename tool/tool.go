package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	errorskg "github.com/sweetpotato0/chatflow/errors"
)

// Tool represents a capability the model may invoke by name. Parameters is
// a JSON Schema describing the arguments object; a nil schema accepts any
// arguments. Render produces the tool's artifacts (see RenderFunc).
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Render      RenderFunc     `json:"-"`

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// Simple wraps a plain handler as a tool whose render stream yields a
// single terminal artifact. The handler's display value is shown to the
// caller and its data value is serialized back to the model.
func Simple(name, description string, parameters map[string]any, fn func(ctx context.Context, args map[string]any) (display, data any, err error)) *Tool {
	return &Tool{
		Name:        name,
		Description: description,
		Parameters:  parameters,
		Render: func(ctx context.Context, args map[string]any) iter.Seq2[Artifact, error] {
			return func(yield func(Artifact, error) bool) {
				display, data, err := fn(ctx, args)
				if err != nil {
					yield(Artifact{}, err)
					return
				}
				yield(Terminal(display, data), nil)
			}
		},
	}
}

// ValidateArgs checks the arguments against the tool's declared schema.
// Validation is pure: no tool code runs and no state changes. A tool
// without a schema accepts anything.
func (t *Tool) ValidateArgs(args map[string]any) error {
	schema, err := t.compile()
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", t.Name, err)
	}
	if schema == nil {
		return nil
	}
	// Round-trip through JSON so hand-built argument maps validate the same
	// way as wire-decoded ones.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("tool %s: encode arguments: %w", t.Name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("tool %s: decode arguments: %w", t.Name, err)
	}
	return schema.Validate(doc)
}

// Execute validates the arguments, drives the render stream to completion
// and returns the terminal artifact's display unit and structured data.
// Intermediate displays are discarded; callers that want them should range
// over Render directly.
func (t *Tool) Execute(ctx context.Context, args map[string]any) (display, data any, err error) {
	if t.Render == nil {
		return nil, nil, fmt.Errorf("tool %s has no render capability", t.Name)
	}
	if err := t.ValidateArgs(args); err != nil {
		return nil, nil, fmt.Errorf("invalid arguments: %w", err)
	}

	terminal := false
	for artifact, rerr := range t.Render(ctx, args) {
		if rerr != nil {
			return nil, nil, rerr
		}
		display = artifact.Display()
		if artifact.IsTerminal() {
			data = artifact.Data()
			terminal = true
		}
	}
	if !terminal {
		return nil, nil, fmt.Errorf("tool %s produced no terminal artifact", t.Name)
	}
	return display, data, nil
}

func (t *Tool) compile() (*jsonschema.Schema, error) {
	t.compileOnce.Do(func() {
		if t.Parameters == nil {
			return
		}
		raw, err := json.Marshal(t.Parameters)
		if err != nil {
			t.compileErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			t.compileErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("schema.json", doc); err != nil {
			t.compileErr = err
			return
		}
		t.compiled, t.compileErr = c.Compile("schema.json")
	})
	return t.compiled, t.compileErr
}

// WireSchema returns the tool definition in the completion endpoint's
// function-tool format.
func (t *Tool) WireSchema() map[string]any {
	parameters := t.Parameters
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  parameters,
		},
	}
}

// Registry manages a collection of tools
// All operations are thread-safe using RWMutex protection
type Registry struct {
	mu    sync.RWMutex // Protects tools map
	tools map[string]*Tool
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry. Tool names are unique; a duplicate
// name or an invalid parameter schema is rejected.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, err := tool.compile(); err != nil {
		return fmt.Errorf("tool %s: invalid parameter schema: %w", tool.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s: %w", tool.Name, errorskg.ErrAlreadyExists)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Upsert adds or replaces a tool definition in the registry.
func (r *Registry) Upsert(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, err := tool.compile(); err != nil {
		return fmt.Errorf("tool %s: invalid parameter schema: %w", tool.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = make(map[string]*Tool)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", name, errorskg.ErrNotFound)
	}
	return tool, nil
}

// List returns all registered tools
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// WireSchemas returns all tools in the completion endpoint's function-tool
// format, ordered by name.
func (r *Registry) WireSchemas() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	schemas := make([]map[string]any, 0, len(names))
	for _, name := range names {
		schemas = append(schemas, r.tools[name].WireSchema())
	}
	return schemas
}

// Execute runs a tool by name with given arguments
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (display, data any, err error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, nil, err
	}
	return tool.Execute(ctx, args)
}

// MarshalJSON customizes JSON marshaling for Registry
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.WireSchemas())
}
