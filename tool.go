package grokcode

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool defines a capability exposed to the model. A Tool may contribute
// one or more named definitions; Execute dispatches on the name.
type Tool interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// Interceptor runs before a tool executes. Returning (observation, true)
// short-circuits execution and the observation is returned to the model
// instead. The permission gate and the task-completion gate are wired as
// interceptors.
type Interceptor func(ctx context.Context, tc ToolCall) (string, bool)

// Registry holds all registered tools and dispatches execution by name.
// Errors never propagate as Go errors past Execute: the model sees them
// as observation strings starting with "Error".
type Registry struct {
	mu           sync.RWMutex
	tools        map[string]Tool
	defs         map[string]ToolDefinition
	schemas      map[string]*jsonschema.Schema
	order        []string
	interceptors []Interceptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		defs:    make(map[string]ToolDefinition),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool under each of its definition names, compiling the
// parameter schema for argument validation. Re-registering a name
// replaces the previous tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range t.Definitions() {
		if _, exists := r.tools[d.Name]; !exists {
			r.order = append(r.order, d.Name)
		}
		r.tools[d.Name] = t
		r.defs[d.Name] = d
		if len(d.Parameters) > 0 {
			if sch, err := jsonschema.CompileString(d.Name+".json", string(d.Parameters)); err == nil {
				r.schemas[d.Name] = sch
			}
		}
	}
}

// Intercept appends a pre-execution interceptor. Interceptors run in
// registration order; the first one that claims the call wins.
func (r *Registry) Intercept(i Interceptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interceptors = append(r.interceptors, i)
}

// Get returns the tool registered under name, or nil.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all registered definition names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schemas returns the tool definitions in registration order, for export
// to the model as {type:function, function:{...}} entries.
func (r *Registry) Schemas() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Execute runs the named tool and returns its observation string.
// Unknown names, invalid arguments and tool-level errors come back as
// "Error: ..." strings (interceptor observations are returned as the
// interceptor wrote them); Go errors and panics from the tool come back
// as "Error executing <name>: ..." strings.
func (r *Registry) Execute(ctx context.Context, tc ToolCall) (out string) {
	r.mu.RLock()
	tool := r.tools[tc.Name]
	sch := r.schemas[tc.Name]
	interceptors := r.interceptors
	r.mu.RUnlock()

	if tool == nil {
		return fmt.Sprintf("Error: Unknown tool '%s'", tc.Name)
	}

	args := tc.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	if sch != nil {
		var v any
		if err := json.Unmarshal(args, &v); err != nil {
			return fmt.Sprintf("Error: Invalid arguments for %s: %v", tc.Name, err)
		}
		if err := sch.Validate(v); err != nil {
			return fmt.Sprintf("Error: Invalid arguments for %s: %v", tc.Name, err)
		}
	}

	for _, ic := range interceptors {
		if obs, handled := ic(ctx, tc); handled {
			return obs
		}
	}

	defer func() {
		if p := recover(); p != nil {
			out = fmt.Sprintf("Error executing %s: panic: %v", tc.Name, p)
		}
	}()

	result, err := tool.Execute(ctx, tc.Name, args)
	if err != nil {
		return fmt.Sprintf("Error executing %s: %v", tc.Name, err)
	}
	if result.Error != "" {
		return "Error: " + result.Error
	}
	return result.Content
}
