package voicesession

import (
	"context"

	"github.com/kampanion/voice-core/core/audio"
	"github.com/kampanion/voice-core/core/llms"
	llmbackend "github.com/kampanion/voice-core/core/llms/backend"
	"github.com/kampanion/voice-core/core/speechtotext"
	"github.com/kampanion/voice-core/core/texttospeech"
)

// CaptureDevice is the microphone half of the audio surface. Capture-only
// hardware, like the portaudio client, implements just this half and can be
// paired with a separate playback device.
type CaptureDevice interface {
	StartCapture(ctx context.Context, onFrame func(frame []byte)) error
	StopCapture() error
	EncodingInfo() audio.EncodingInfo
}

// PlaybackDevice is the speaker half.
type PlaybackDevice interface {
	StartPlayback(ctx context.Context) error
	StopPlayback() error
	SendAudio(audio []byte) error
	Drain(onDrained func()) error
	EncodingInfo() audio.EncodingInfo
}

// AudioDevice is a full-duplex microphone and speaker pair. The miniaudio
// client is the default implementation.
type AudioDevice interface {
	CaptureDevice
	PlaybackDevice
}

// Transcriber converts a finished recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, input speechtotext.Input, opts ...speechtotext.TranscriptionOption) (*speechtotext.Result, error)
}

// ConversationClient produces a streamed assistant response for a prompt.
type ConversationClient interface {
	PromptWithStream(ctx context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream
}

// Synthesizer renders text to a PCM clip. Both the cloud and on-device
// providers satisfy it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (*texttospeech.Speech, error)
}

// conversationStreamer adapts the concrete backend client to the
// ConversationClient contract.
type conversationStreamer struct {
	client *llmbackend.Client
}

func (c conversationStreamer) PromptWithStream(ctx context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream {
	return c.client.PromptWithStream(ctx, prompt, opts...)
}
