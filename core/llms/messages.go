// Package llms defines the conversation-model contract used by the voice
// session: message history, streaming chunks, and tool definitions.
package llms

import "errors"

// ErrStreamTruncated reports a response stream whose connection closed
// before the completion sentinel arrived. Whatever text accumulated before
// the cut is still usable and should be preferred over discarding the turn.
var ErrStreamTruncated = errors.New("response stream truncated before completion")

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one history entry, oldest first.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ToolCall is a tool invocation surfaced by the model. Arguments stay as the
// raw JSON payload until a registered tool executes them.
type ToolCall struct {
	Name      string
	Arguments string
	Response  string
}
