package voicesession

import (
	"strconv"
	"time"

	"github.com/kampanion/voice-core/core/events"
	"github.com/kampanion/voice-core/core/llms"
	llmbackend "github.com/kampanion/voice-core/core/llms/backend"
	"github.com/kampanion/voice-core/core/vad"
	"github.com/kampanion/voice-core/core/wakeword"
)

// speechThresholdEnv overrides the VAD speech threshold without a rebuild.
// Malformed values are ignored.
const speechThresholdEnv = "VOICE_SPEECH_THRESHOLD_DB"

const defaultAutoRestartDelay = 800 * time.Millisecond

type OrchestratorOptions struct {
	device        AudioDevice
	captureDevice CaptureDevice

	transcriber  Transcriber
	dialog       ConversationClient
	primaryVoice Synthesizer
	deviceVoice  Synthesizer
	wake         *wakeword.Listener

	eventHandler func(events.Event)

	language          string
	systemPrompt      string
	tools             []llms.Tool
	minSentenceLength int
	vadOptions        []vad.Option

	autoRestart      bool
	autoRestartDelay time.Duration
}

type OrchestratorOption func(*OrchestratorOptions)

func WithAudioDevice(device AudioDevice) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.device = device }
}

// WithCaptureDevice routes the microphone through a dedicated capture-only
// device while playback stays on the full-duplex one. Used on hosts where
// input goes through portaudio.
func WithCaptureDevice(device CaptureDevice) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.captureDevice = device }
}

func WithTranscriber(transcriber Transcriber) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.transcriber = transcriber }
}

func WithConversationClient(client ConversationClient) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.dialog = client }
}

// WithConversationBackend wires the concrete backend streaming client.
func WithConversationBackend(client *llmbackend.Client) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.dialog = conversationStreamer{client: client} }
}

func WithPrimarySynthesizer(synthesizer Synthesizer) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.primaryVoice = synthesizer }
}

func WithFallbackSynthesizer(synthesizer Synthesizer) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.deviceVoice = synthesizer }
}

func WithWakeWordListener(listener *wakeword.Listener) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.wake = listener }
}

// WithEventHandler registers the sink for session events. The handler runs
// on the orchestrator goroutine and must not block.
func WithEventHandler(handler func(events.Event)) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.eventHandler = handler }
}

func WithLanguage(language string) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.language = language }
}

func WithSystemPrompt(systemPrompt string) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.systemPrompt = systemPrompt }
}

func WithTools(tools ...llms.Tool) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.tools = append(o.tools, tools...) }
}

func WithMinSentenceLength(minLength int) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.minSentenceLength = minLength }
}

// WithVoiceActivityOptions passes tunables through to the detector.
func WithVoiceActivityOptions(opts ...vad.Option) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.vadOptions = append(o.vadOptions, opts...) }
}

// WithAutoRestart controls whether listening resumes automatically a short
// delay after a finished turn.
func WithAutoRestart(enabled bool) OrchestratorOption {
	return func(o *OrchestratorOptions) { o.autoRestart = enabled }
}

func WithAutoRestartDelay(delay time.Duration) OrchestratorOption {
	return func(o *OrchestratorOptions) {
		if delay > 0 {
			o.autoRestartDelay = delay
		}
	}
}

func defaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		language:          defaultLanguage,
		minSentenceLength: defaultMinSentenceLength,
		autoRestart:       true,
		autoRestartDelay:  defaultAutoRestartDelay,
	}
}

func speechThresholdOverride(lookup func(string) (string, bool)) []vad.Option {
	raw, ok := lookup(speechThresholdEnv)
	if !ok {
		return nil
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Warn("ignoring malformed speech threshold override", "value", raw)
		return nil
	}
	return []vad.Option{vad.WithSpeechThresholdDB(threshold)}
}
