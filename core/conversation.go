package voicesession

import (
	"sync"

	"github.com/kampanion/voice-core/core/llms"
)

// historyLimit bounds the turns sent with each prompt. Older turns are kept
// for display but never leave the device.
const historyLimit = 12

// conversation is the append-only turn log for one voice session.
type conversation struct {
	mu    sync.Mutex
	turns []llms.Message
}

func newConversation() *conversation {
	return &conversation{}
}

func (c *conversation) appendUser(content string) {
	c.append(llms.Message{Role: llms.MessageRoleUser, Content: content})
}

func (c *conversation) appendAssistant(content string) {
	if content == "" {
		return
	}
	c.append(llms.Message{Role: llms.MessageRoleAssistant, Content: content})
}

func (c *conversation) append(message llms.Message) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, message)
}

// history returns a copy of the most recent turns, oldest first, truncated
// to the prompt budget.
func (c *conversation) history() []llms.Message {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := c.turns
	if len(turns) > historyLimit {
		turns = turns[len(turns)-historyLimit:]
	}
	history := make([]llms.Message, len(turns))
	copy(history, turns)
	return history
}

// snapshot returns the full turn log for display.
func (c *conversation) snapshot() []llms.Message {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := make([]llms.Message, len(c.turns))
	copy(turns, c.turns)
	return turns
}
