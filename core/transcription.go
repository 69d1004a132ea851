package voicesession

import (
	"context"

	"github.com/kampanion/voice-core/core/speechtotext"
)

// supportedTranscriptionLanguages is the locale set the transcription
// endpoint accepts. Anything else falls back to the default.
var supportedTranscriptionLanguages = []string{"en-US", "de-DE", "fr-FR"}

const defaultLanguage = "en-US"

func normalizeLanguage(language string) string {
	for _, supported := range supportedTranscriptionLanguages {
		if supported == language {
			return language
		}
	}
	return defaultLanguage
}

// transcription is the thin facade over whichever Transcriber is wired in.
type transcription struct {
	client   Transcriber
	language string
}

func newTranscription(client Transcriber, language string) *transcription {
	return &transcription{client: client, language: normalizeLanguage(language)}
}

// transcribe hands a recording to the client. A nil result with a nil error
// means no speech, which is a normal outcome.
func (t *transcription) transcribe(ctx context.Context, recording *Recording) (*speechtotext.Result, error) {
	if t == nil || t.client == nil {
		return nil, ErrNoTranscriber
	}
	if recording == nil || len(recording.PCM) == 0 {
		return nil, nil
	}

	return t.client.Transcribe(ctx,
		speechtotext.Input{PCM: recording.PCM, EncodingInfo: recording.EncodingInfo},
		speechtotext.WithLanguage(t.language),
	)
}
