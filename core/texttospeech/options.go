// Package texttospeech defines the synthesis contract shared by the cloud
// and on-device providers. Providers return complete PCM clips; playback is
// owned by the voice session.
package texttospeech

import "github.com/kampanion/voice-core/core/audio"

// Provider identifies which link of the fallback chain produced the speech.
type Provider string

const (
	ProviderPrimary Provider = "primary"
	ProviderDevice  Provider = "device"
)

// Speech is one fully synthesized utterance.
type Speech struct {
	PCM          []byte
	EncodingInfo audio.EncodingInfo
	Provider     Provider
}

type SynthesisOptions struct {
	Language string
	Style    string
}

type SynthesisOption func(*SynthesisOptions)

func WithLanguage(language string) SynthesisOption {
	return func(o *SynthesisOptions) { o.Language = language }
}

// WithStyle selects a named voice style on providers that support one.
func WithStyle(style string) SynthesisOption {
	return func(o *SynthesisOptions) { o.Style = style }
}

// SupportedLanguages is the subset safe to synthesize. Transcription accepts
// more locales than synthesis does; text in any other language stays
// on screen unspoken.
var SupportedLanguages = []string{"en-US", "de-DE"}

func SupportsLanguage(language string) bool {
	if language == "" {
		return true
	}
	for _, supported := range SupportedLanguages {
		if supported == language {
			return true
		}
	}
	return false
}
