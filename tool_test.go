package grokcode

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRegistryExecute(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newEchoTool("greet"))

	if got := reg.Execute(context.Background(), call("1", "greet", "")); got != "ran greet" {
		t.Errorf("expected 'ran greet', got %q", got)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	reg := NewRegistry()
	got := reg.Execute(context.Background(), call("1", "nope", ""))
	if got != "Error: Unknown tool 'nope'" {
		t.Errorf("unexpected observation: %q", got)
	}
}

func TestRegistryToolError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(errorTool{})

	got := reg.Execute(context.Background(), call("1", "fail", ""))
	if got != "Error executing fail: tool broken" {
		t.Errorf("unexpected observation: %q", got)
	}
}

func TestRegistryErrorResultPrefix(t *testing.T) {
	reg := NewRegistry()
	reg.Register(resultErrorTool{})

	got := reg.Execute(context.Background(), call("1", "warn", ""))
	if got != "Error: something specific" {
		t.Errorf("unexpected observation: %q", got)
	}
}

type resultErrorTool struct{}

func (resultErrorTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{Name: "warn", Description: "returns a tool-level error"}}
}

func (resultErrorTool) Execute(_ context.Context, _ string, _ json.RawMessage) (ToolResult, error) {
	return ToolResult{Error: "something specific"}, nil
}

func TestRegistrySchemaValidation(t *testing.T) {
	reg := NewRegistry()
	reg.Register(schemaTool{})

	// Missing required field.
	got := reg.Execute(context.Background(), call("1", "typed", `{}`))
	if !strings.HasPrefix(got, "Error: Invalid arguments for typed") {
		t.Errorf("expected validation error, got %q", got)
	}

	// Valid arguments pass through.
	got = reg.Execute(context.Background(), call("2", "typed", `{"path": "x"}`))
	if got != "ok" {
		t.Errorf("expected 'ok', got %q", got)
	}
}

type schemaTool struct{}

func (schemaTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{
		Name:        "typed",
		Description: "schema-validated tool",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
	}}
}

func (schemaTool) Execute(_ context.Context, _ string, _ json.RawMessage) (ToolResult, error) {
	return ToolResult{Content: "ok"}, nil
}

func TestRegistryInterceptorShortCircuits(t *testing.T) {
	reg := NewRegistry()
	echo := newEchoTool("gated")
	reg.Register(echo)
	reg.Intercept(func(_ context.Context, tc ToolCall) (string, bool) {
		if tc.Name == "gated" {
			return "Error: denied", true
		}
		return "", false
	})

	if got := reg.Execute(context.Background(), call("1", "gated", "")); got != "Error: denied" {
		t.Errorf("expected interceptor observation, got %q", got)
	}
	if echo.callCount() != 0 {
		t.Error("tool must not execute when intercepted")
	}
}

func TestRegistrySchemasOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(newEchoTool("b_tool"))
	reg.Register(newEchoTool("a_tool"))

	defs := reg.Schemas()
	if len(defs) != 2 || defs[0].Name != "b_tool" || defs[1].Name != "a_tool" {
		t.Errorf("schemas must preserve registration order, got %v", defs)
	}
}
