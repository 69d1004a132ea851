package llms

import "context"

// Stream is a lazy, finite, non-restartable chunk sequence. Chunks must be
// consumed in emission order; the iterator ends after the completion
// sentinel or an error.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk interface {
	FinishReason() *string
}

// StreamContentChunk carries a response text fragment.
type StreamContentChunk interface {
	StreamChunk
	Content() string
}

// StreamToolUseChunk carries a tool marker. Tool names are never part of the
// speakable response text.
type StreamToolUseChunk interface {
	StreamChunk
	ToolName() string
}
