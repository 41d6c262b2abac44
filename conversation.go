package grokcode

import "sync"

// Conversation is the append-only message sequence for a session. The
// first element is always a system message produced by prompt assembly;
// Clear resets to a freshly assembled one and Refresh replaces the head
// in place (used to inject current task state). No other mutation of
// existing messages is permitted.
type Conversation struct {
	mu       sync.Mutex
	assemble func() string
	messages []ChatMessage
}

// NewConversation creates a conversation whose system prompt is produced
// by assemble, called once now and again on every Clear/Refresh.
func NewConversation(assemble func() string) *Conversation {
	c := &Conversation{assemble: assemble}
	c.messages = []ChatMessage{SystemMessage(assemble())}
	return c
}

// AddUser appends a user message.
func (c *Conversation) AddUser(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, UserMessage(content))
}

// AddAssistant appends an assistant message, possibly carrying tool calls.
func (c *Conversation) AddAssistant(content string, toolCalls []ToolCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, ChatMessage{
		Role:      "assistant",
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// AddToolResult appends the observation answering callID.
func (c *Conversation) AddToolResult(callID, toolName, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, ToolResultMessage(callID, toolName, result))
}

// Messages returns a copy of the message sequence.
func (c *Conversation) Messages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Clear resets the conversation to a single freshly assembled system
// message.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = []ChatMessage{SystemMessage(c.assemble())}
}

// Refresh replaces the head system message in place with a new assembly,
// leaving the rest of the history untouched.
func (c *Conversation) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) > 0 && c.messages[0].Role == "system" {
		c.messages[0] = SystemMessage(c.assemble())
	}
}
