package grokcode

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Controller drives the foreground conversation: it owns the
// Conversation, reassembles the system prompt every turn, streams the
// model's reply, fans out tool calls through the registry and buffers
// user input that arrives while a turn is busy.
type Controller struct {
	provider  Provider
	registry  *Registry
	session   *Session
	assembler *PromptAssembler
	conv      *Conversation

	interrupted atomic.Bool
	busy        atomic.Bool

	queueMu sync.Mutex
	queue   []string

	temperature float64
	onContent   func(string)
	onStatus    func(string)
	onToolDone  func(tc ToolCall, observation string)
	history     HistoryStore
	threadID    string
	logger      *slog.Logger
	tracer      Tracer
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithContentSink sets the streaming content callback.
func WithContentSink(fn func(string)) ControllerOption {
	return func(c *Controller) { c.onContent = fn }
}

// WithStatusSink sets the status fan-out callback.
func WithStatusSink(fn func(string)) ControllerOption {
	return func(c *Controller) { c.onStatus = fn }
}

// WithToolDone sets a callback observing each tool observation, used by
// UI layers to render diffs and result summaries.
func WithToolDone(fn func(tc ToolCall, observation string)) ControllerOption {
	return func(c *Controller) { c.onToolDone = fn }
}

// WithTemperature sets the sampling temperature sent on every request.
func WithTemperature(t float64) ControllerOption {
	return func(c *Controller) { c.temperature = t }
}

// WithHistory journals every completed turn to the given store.
func WithHistory(h HistoryStore, threadID string) ControllerOption {
	return func(c *Controller) { c.history = h; c.threadID = threadID }
}

// WithControllerLogger sets the controller's logger.
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithControllerTracer sets the controller's tracer.
func WithControllerTracer(t Tracer) ControllerOption {
	return func(c *Controller) { c.tracer = t }
}

// NewController creates the foreground controller. agents (may be nil)
// feeds the available-agents section of the system prompt.
func NewController(provider Provider, registry *Registry, session *Session, agents func() []AgentInfo, opts ...ControllerOption) *Controller {
	c := &Controller{
		provider:    provider,
		registry:    registry,
		session:     session,
		temperature: 0.7,
		logger:      nopLogger,
	}
	c.assembler = NewPromptAssembler(session, agents)
	c.conv = NewConversation(c.assembler.Assemble)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conversation exposes the foreground conversation (transcript save,
// tests).
func (c *Controller) Conversation() *Conversation { return c.conv }

// Assembler exposes the prompt assembler (welcome banner).
func (c *Controller) Assembler() *PromptAssembler { return c.assembler }

// Busy reports whether a turn is currently running.
func (c *Controller) Busy() bool { return c.busy.Load() }

// Interrupt requests the current turn to stop at its next suspension
// point. When idle the flag stays set, and Interrupted reports true,
// until the next turn starts and clears it.
func (c *Controller) Interrupt() { c.interrupted.Store(true) }

// Interrupted reports whether an interrupt is pending; the sub-agent
// runner uses this as its cancel check.
func (c *Controller) Interrupted() bool { return c.interrupted.Load() }

// Enqueue buffers user input typed while a turn is busy; it is drained as
// fresh turns after the current turn settles. Returns false when the
// controller was idle (caller should RunTurn directly).
func (c *Controller) Enqueue(input string) bool {
	if !c.busy.Load() {
		return false
	}
	c.queueMu.Lock()
	c.queue = append(c.queue, input)
	c.queueMu.Unlock()
	return true
}

func (c *Controller) dequeue() (string, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) == 0 {
		return "", false
	}
	input := c.queue[0]
	c.queue = c.queue[1:]
	return input, true
}

// Clear resets the conversation to a freshly assembled system message.
func (c *Controller) Clear() { c.conv.Clear() }

// RunTurn processes one user message: the system prompt is refreshed with
// current task state, then the loop streams and dispatches until the
// model stops emitting tool calls or an interrupt fires. Queued input is
// drained afterwards. Returns the assistant's final text of the last
// turn run.
func (c *Controller) RunTurn(ctx context.Context, userInput string) (string, error) {
	c.busy.Store(true)
	defer c.busy.Store(false)

	c.conv.AddUser(userInput)
	output, err := c.runOne(ctx)
	if err != nil {
		return output, err
	}
	c.journal(ctx, userInput, output)

	for {
		queued, ok := c.dequeue()
		if !ok {
			break
		}
		c.conv.AddUser(queued)
		output, err = c.runOne(ctx)
		if err != nil {
			return output, err
		}
		c.journal(ctx, queued, output)
	}
	return output, nil
}

// runOne executes a single turn loop over the shared conversation.
func (c *Controller) runOne(ctx context.Context) (string, error) {
	c.conv.Refresh()
	c.interrupted.Store(false)

	cfg := loopConfig{
		name:        "foreground",
		provider:    c.provider,
		registry:    c.registry,
		temperature: c.temperature,
		onContent:   c.onContent,
		onStatus:    c.onStatus,
		cancelCheck: c.interrupted.Load,
		logger:      c.logger,
		tracer:      c.tracer,
	}
	if c.onToolDone != nil {
		done := c.onToolDone
		cfg.processors = NewProcessorChain()
		cfg.processors.Add(toolDoneProcessor{fn: done})
	}

	output, err := runLoop(ctx, cfg, c.conv)
	if errors.Is(err, ErrCancelled) {
		// Interruption ends the turn cleanly; partial output stands.
		c.interrupted.Store(false)
		return output, nil
	}
	return output, err
}

// journal records a completed turn in the history store, if configured.
func (c *Controller) journal(ctx context.Context, userInput, output string) {
	if c.history == nil {
		return
	}
	if err := c.history.AppendTurn(ctx, c.threadID, userInput, output); err != nil {
		c.logger.Warn("history journal failed", "error", err)
	}
}

// toolDoneProcessor adapts the controller's onToolDone callback to the
// processor chain.
type toolDoneProcessor struct {
	fn func(tc ToolCall, observation string)
}

func (p toolDoneProcessor) PostTool(_ context.Context, call ToolCall, result *ToolResult) error {
	p.fn(call, result.Content)
	return nil
}
