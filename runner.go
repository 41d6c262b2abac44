package grokcode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// AgentLookup resolves a custom agent name to its definition. Wired to
// the plugin registry by the composition root; nil disables custom agents.
type AgentLookup func(name string) (AgentDefinition, bool)

// runningAgent pairs a live agent with its completion signal.
type runningAgent struct {
	agent  *SubAgent
	prompt string
	done   chan struct{}
}

// AgentRunner manages sub-agent lifecycle: creation by type or plugin
// name, synchronous and background execution, result retrieval and
// cancellation. One cancel signal propagates to whichever agent is
// currently executing in the foreground path.
type AgentRunner struct {
	provider Provider
	registry *Registry
	session  *Session

	mu        sync.Mutex
	running   map[string]*runningAgent
	completed map[string]AgentResult
	current   *SubAgent

	lookup      AgentLookup
	onStatus    func(string)
	cancelCheck func() bool
	logger      *slog.Logger
	tracer      Tracer
}

// RunnerOption configures an AgentRunner.
type RunnerOption func(*AgentRunner)

// WithAgentLookup wires custom (plugin) agent resolution.
func WithAgentLookup(fn AgentLookup) RunnerOption {
	return func(r *AgentRunner) { r.lookup = fn }
}

// WithRunnerStatus sets the status fan-out callback passed to every
// spawned agent.
func WithRunnerStatus(fn func(string)) RunnerOption {
	return func(r *AgentRunner) { r.onStatus = fn }
}

// WithRunnerCancelCheck injects the controller's cancellation predicate,
// propagated to foreground agent runs.
func WithRunnerCancelCheck(fn func() bool) RunnerOption {
	return func(r *AgentRunner) { r.cancelCheck = fn }
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *AgentRunner) { r.logger = l }
}

// WithRunnerTracer sets the tracer handed to spawned agents.
func WithRunnerTracer(t Tracer) RunnerOption {
	return func(r *AgentRunner) { r.tracer = t }
}

// NewAgentRunner creates a runner spawning agents against the given
// provider, registry and session.
func NewAgentRunner(provider Provider, registry *Registry, session *Session, opts ...RunnerOption) *AgentRunner {
	r := &AgentRunner{
		provider:  provider,
		registry:  registry,
		session:   session,
		running:   make(map[string]*runningAgent),
		completed: make(map[string]AgentResult),
		logger:    nopLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// createAgent builds an agent for a built-in type or a plugin name.
// Unknown names fall back to explore, mirroring the safest capability.
func (r *AgentRunner) createAgent(agentType, prompt string) *SubAgent {
	opts := []SubAgentOption{}
	if r.onStatus != nil {
		opts = append(opts, WithAgentStatus(r.onStatus))
	}
	if r.tracer != nil {
		opts = append(opts, WithAgentTracer(r.tracer))
	}
	if r.logger != nil {
		opts = append(opts, WithAgentLogger(r.logger))
	}

	if !BuiltinAgentType(agentType) && r.lookup != nil {
		if def, ok := r.lookup(agentType); ok {
			return NewPluginAgent(def, r.provider, r.registry, r.session, opts...)
		}
	}
	switch AgentType(agentType) {
	case AgentPlan:
		return NewPlanAgent(prompt, r.provider, r.registry, r.session, opts...)
	case AgentGeneral:
		return NewGeneralAgent(r.provider, r.registry, r.session, opts...)
	default:
		return NewExploreAgent(r.provider, r.registry, r.session, opts...)
	}
}

// Run executes an agent synchronously and returns its result.
func (r *AgentRunner) Run(ctx context.Context, agentType, prompt string) AgentResult {
	agent := r.createAgent(agentType, prompt)
	if r.cancelCheck != nil {
		agent.SetCancelCheck(r.cancelCheck)
	}

	r.mu.Lock()
	r.current = agent
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.current = nil
		r.mu.Unlock()
	}()

	result := agent.Run(ctx, prompt)

	r.mu.Lock()
	r.completed[agent.ID()] = result
	r.mu.Unlock()
	return result
}

// RunBackground launches an agent concurrently and returns its id
// immediately. The agent leaves the running map on completion.
func (r *AgentRunner) RunBackground(ctx context.Context, agentType, prompt string) string {
	agent := r.createAgent(agentType, prompt)
	ra := &runningAgent{agent: agent, prompt: prompt, done: make(chan struct{})}

	r.mu.Lock()
	r.running[agent.ID()] = ra
	r.mu.Unlock()

	go func() {
		defer close(ra.done)
		result := agent.Run(ctx, prompt)
		r.mu.Lock()
		r.completed[agent.ID()] = result
		delete(r.running, agent.ID())
		r.mu.Unlock()
		r.logger.Info("background agent finished",
			"agent_id", agent.ID(), "type", agent.Type(), "success", result.Success)
	}()

	return agent.ID()
}

// CancelCurrent cancels the agent currently executing in the foreground
// path, if any.
func (r *AgentRunner) CancelCurrent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.Cancel()
	}
}

// Cancel cancels a background agent by id. Returns false for unknown ids.
func (r *AgentRunner) Cancel(agentID string) bool {
	r.mu.Lock()
	ra := r.running[agentID]
	r.mu.Unlock()
	if ra == nil {
		return false
	}
	ra.agent.Cancel()
	return true
}

// Result returns the completed result for agentID, if any.
func (r *AgentRunner) Result(agentID string) (AgentResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.completed[agentID]
	return res, ok
}

// RunningIDs lists the ids of agents still running.
func (r *AgentRunner) RunningIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	return ids
}

// Wait blocks until a background agent completes or the timeout elapses.
func (r *AgentRunner) Wait(ctx context.Context, agentID string, timeout time.Duration) (AgentResult, bool) {
	if res, ok := r.Result(agentID); ok {
		return res, true
	}
	r.mu.Lock()
	ra := r.running[agentID]
	r.mu.Unlock()
	if ra == nil {
		return AgentResult{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ra.done:
		return r.Result(agentID)
	case <-timer.C:
		return AgentResult{}, false
	case <-ctx.Done():
		return AgentResult{}, false
	}
}

// --- agent tools ---

// spawnTool is the "task" tool: launch a sub-agent synchronously or in
// the background.
type spawnTool struct {
	runner *AgentRunner
}

// outputTool is the "task_output" tool: retrieve a background agent's
// result.
type outputTool struct {
	runner *AgentRunner
}

// RegisterAgentTools adds the task and task_output tools to the registry.
// Called after the runner exists since the tools close over it.
func RegisterAgentTools(registry *Registry, runner *AgentRunner) {
	registry.Register(&spawnTool{runner: runner})
	registry.Register(&outputTool{runner: runner})
}

func (t *spawnTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{
		Name: "task",
		Description: `Launch a sub-agent to handle tasks. Built-in agents:
- explore: Fast read-only codebase exploration
- plan: Creates implementation plans with task lists
- general: Full tool access for implementing features

Also supports custom project agents defined in .grok/agents/ (e.g., "engineer", "code-reviewer").`,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"agent_type": {"type": "string", "description": "Agent to spawn: 'explore', 'plan', 'general', or custom agent name"},
				"prompt": {"type": "string", "description": "The task/prompt for the agent, including any relevant context from the conversation"},
				"run_in_background": {"type": "boolean", "description": "If true, run in background and return immediately with agent ID"}
			},
			"required": ["agent_type", "prompt"]
		}`),
	}}
}

func (t *spawnTool) Execute(ctx context.Context, _ string, args json.RawMessage) (ToolResult, error) {
	var params struct {
		AgentType       string `json:"agent_type"`
		Prompt          string `json:"prompt"`
		RunInBackground bool   `json:"run_in_background"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	if params.RunInBackground {
		id := t.runner.RunBackground(ctx, params.AgentType, params.Prompt)
		return ToolResult{Content: "Agent started in background with ID: " + id}, nil
	}

	result := t.runner.Run(ctx, params.AgentType, params.Prompt)
	if !result.Success {
		return ToolResult{Content: fmt.Sprintf("Agent failed: %s\n\nPartial output:\n%s", result.Error, result.Output)}, nil
	}
	return ToolResult{Content: result.Output}, nil
}

func (t *outputTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{
		Name:        "task_output",
		Description: "Get the output from a background agent by its ID",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"agent_id": {"type": "string", "description": "The agent ID returned from task tool"},
				"wait": {"type": "boolean", "description": "If true, wait for agent to complete. Default true."},
				"timeout": {"type": "number", "description": "Timeout in seconds when waiting. Default 60."}
			},
			"required": ["agent_id"]
		}`),
	}}
}

func (t *outputTool) Execute(ctx context.Context, _ string, args json.RawMessage) (ToolResult, error) {
	params := struct {
		AgentID string   `json:"agent_id"`
		Wait    *bool    `json:"wait"`
		Timeout *float64 `json:"timeout"`
	}{}
	if err := json.Unmarshal(args, &params); err != nil {
		return ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	if res, ok := t.runner.Result(params.AgentID); ok {
		return ToolResult{Content: "Agent completed.\n\n" + res.Output}, nil
	}
	if !slices.Contains(t.runner.RunningIDs(), params.AgentID) {
		return ToolResult{Error: fmt.Sprintf("No agent found with ID %s", params.AgentID)}, nil
	}

	wait := true
	if params.Wait != nil {
		wait = *params.Wait
	}
	if !wait {
		return ToolResult{Content: fmt.Sprintf("Agent %s is still running", params.AgentID)}, nil
	}

	timeout := 60.0
	if params.Timeout != nil && *params.Timeout > 0 {
		timeout = *params.Timeout
	}
	if res, ok := t.runner.Wait(ctx, params.AgentID, time.Duration(timeout*float64(time.Second))); ok {
		return ToolResult{Content: "Agent completed.\n\n" + res.Output}, nil
	}
	return ToolResult{Content: fmt.Sprintf("Agent %s did not complete within %.0f seconds", params.AgentID, timeout)}, nil
}
