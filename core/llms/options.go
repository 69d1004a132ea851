package llms

// DefaultVoiceMaxTokens bounds voice-turn responses tighter than text turns
// so the first sentence is ready quickly.
const (
	DefaultVoiceMaxTokens = 300
	DefaultTextMaxTokens  = 1024
)

type StreamingPromptOptions struct {
	Instructions string
	History      []Message
	MaxTokens    int
	Tools        []Tool
}

type StreamingPromptOption func(*StreamingPromptOptions)

// WithSystemPrompt sets the system instructions. Repeating this option
// overwrites the previous value.
func WithSystemPrompt(instructions string) StreamingPromptOption {
	return func(o *StreamingPromptOptions) { o.Instructions = instructions }
}

// WithHistory sets the prior conversation turns, oldest first. The caller is
// expected to have truncated the history already.
func WithHistory(history []Message) StreamingPromptOption {
	return func(o *StreamingPromptOptions) { o.History = history }
}

func WithMaxTokens(maxTokens int) StreamingPromptOption {
	return func(o *StreamingPromptOptions) {
		if maxTokens > 0 {
			o.MaxTokens = maxTokens
		}
	}
}

func WithTools(tools ...Tool) StreamingPromptOption {
	return func(o *StreamingPromptOptions) { o.Tools = append(o.Tools, tools...) }
}
