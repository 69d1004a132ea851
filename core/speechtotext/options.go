// Package speechtotext defines the batch transcription contract: a finished
// recording goes in, a transcript (or "no speech") comes out.
package speechtotext

import (
	"context"

	"github.com/kampanion/voice-core/core/audio"
)

// Input is one finished capture handed over for transcription. Ownership of
// the PCM transfers to the transcriber; callers must not reuse the slice.
type Input struct {
	PCM          []byte
	EncodingInfo audio.EncodingInfo
}

// Result is the terminal transcript for one input. A nil *Result with a nil
// error means no speech was detected, which is a normal outcome.
type Result struct {
	Text     string
	Language string
}

// Transcriber is implemented by the backend client and the live development
// provider.
type Transcriber interface {
	Transcribe(ctx context.Context, input Input, opts ...TranscriptionOption) (*Result, error)
}

type TranscriptionOptions struct {
	// Language is the caller-selected locale tag, e.g. "en-US". Empty means
	// let the service decide.
	Language string
}

type TranscriptionOption func(*TranscriptionOptions)

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) { o.Language = language }
}
