// Package grokcode is the agent and tool-execution core of an interactive
// terminal coding assistant driving an OpenAI-compatible LLM endpoint.
//
// It provides the conversation controller, a sub-agent runtime, a tool
// registry with permission and validation interception, and session-scoped
// state (tasks, read-file tracking, plan mode, background commands).
//
// # Quick Start
//
// Compose a session, a registry, and a controller:
//
//	session := grokcode.NewSession(cwd)
//	provider := openaicompat.NewProvider(apiKey, model, baseURL)
//	registry := toolkit.New(session, toolkit.Options{})
//	runner := grokcode.NewAgentRunner(provider, registry, session)
//	grokcode.RegisterAgentTools(registry, runner)
//	ctrl := grokcode.NewController(provider, registry, session, nil)
//	ctrl.RunTurn(ctx, "add a retry wrapper to the fetcher")
//
// # Core Interfaces
//
// The root package defines the contracts all components implement:
//
//   - [Provider] — LLM backend (blocking chat + streaming with tool calls)
//   - [Tool] — pluggable capability exposed to the model
//   - [InputHandler] — human-in-the-loop bridge (approvals, ask_user)
//   - [FinishHook] — policy run when the model stops emitting tool calls
//   - [HistoryStore] — optional persistent session journal
//
// # Included Implementations
//
// Transport: provider/openaicompat (any OpenAI-compatible API).
// Tools: tools/file, tools/find, tools/shell, tools/web, tools/task,
// tools/plan, composed by toolkit.
// Storage: store/sqlite (local), store/postgres (shared).
// Definitions: plugin (markdown agents, commands, skills from .grok/).
//
// See cmd/grok for the reference terminal application.
package grokcode
