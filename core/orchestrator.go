// Package voicesession orchestrates one device's voice conversation loop:
// capture, voice-activity detection, transcription, streamed response, and
// sentence-by-sentence speech.
//
// The orchestrator is a single actor. Every callback from the audio device,
// the detector, and the network clients is serialized onto one goroutine
// before any state transition is applied, so no two transitions are ever
// evaluated concurrently. The microphone and the speaker are one mutually
// exclusive resource; both trigger sites re-check the opposite side's flag
// right before going live.
package voicesession

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kampanion/voice-core/core/audio"
	"github.com/kampanion/voice-core/core/events"
	"github.com/kampanion/voice-core/core/llms"
	llmbackend "github.com/kampanion/voice-core/core/llms/backend"
	"github.com/kampanion/voice-core/core/speechtotext"
	"github.com/kampanion/voice-core/core/texttospeech"
	"github.com/kampanion/voice-core/core/vad"
	"github.com/kampanion/voice-core/core/wakeword"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Orchestrator struct {
	ID uuid.UUID

	options OrchestratorOptions

	capture       *audioCapture
	speech        *speechSynthesizer
	transcription *transcription
	conversation  *conversation

	vadMu    sync.Mutex
	detector *vad.Detector

	stateMu sync.Mutex
	state   State
	muted   bool

	turn *activeTurn

	commands  chan func()
	closed    chan struct{}
	closeOnce sync.Once
	started   bool
	done      chan struct{}

	baseCtx    context.Context
	turnCtx    context.Context
	turnCancel context.CancelFunc
}

// activeTurn is the response pipeline for one turn. Owned exclusively by the
// actor goroutine.
type activeTurn struct {
	id       uuid.UUID
	ctx      context.Context
	language string

	segmenter *sentenceSegmenter
	queue     []string
	inFlight  bool

	streamEnded   bool
	speechStarted bool
	speechSkipped bool

	response strings.Builder
}

func NewOrchestrator(opts ...OrchestratorOption) (*Orchestrator, error) {
	options := defaultOrchestratorOptions()
	for _, opt := range opts {
		opt(&options)
	}
	options.vadOptions = append(options.vadOptions, speechThresholdOverride(os.LookupEnv)...)
	options.language = normalizeLanguage(options.language)

	o := &Orchestrator{
		ID:       uuid.New(),
		options:  options,
		state:    StateIdle,
		commands: make(chan func(), 128),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
		baseCtx:  context.Background(),
	}

	captureDevice := CaptureDevice(options.device)
	if options.captureDevice != nil {
		captureDevice = options.captureDevice
	}
	o.capture = newAudioCapture(captureDevice, func() bool {
		return o.speech.isSpeaking()
	})
	o.speech = newSpeechSynthesizer(options.device, options.primaryVoice, options.deviceVoice, func() bool {
		return o.capture.isRecording()
	})
	o.transcription = newTranscription(options.transcriber, options.language)
	o.conversation = newConversation()

	detector, err := vad.NewDetector(func(signal vad.Signal) {
		o.post(func() { o.handleVADStop(signal) })
	}, options.vadOptions...)
	if err != nil {
		return nil, err
	}
	o.detector = detector

	return o, nil
}

// Start launches the actor loop and, when available, the wake-word engine.
// Call at most once.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.baseCtx = ctx
	o.started = true
	go o.run()
	go func() {
		<-ctx.Done()
		o.Close()
	}()

	if err := o.options.wake.Start(func(detection wakeword.Detection) {
		o.post(func() {
			o.emit(events.NewWakeDetected(detection.Keyword))
			o.handleWake()
		})
	}); err != nil {
		return fmt.Errorf("failed to start wake-word listening: %w", err)
	}
	return nil
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		select {
		case <-o.closed:
			return
		case command := <-o.commands:
			command()
		}
	}
}

// post serializes a command onto the actor goroutine. Safe from any
// goroutine; drops the command once the session is closed.
func (o *Orchestrator) post(command func()) {
	select {
	case <-o.closed:
	case o.commands <- command:
	}
}

func (o *Orchestrator) emit(event events.Event) {
	if o.options.eventHandler != nil {
		o.options.eventHandler(event)
	}
}

// State returns a point-in-time snapshot.
func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

func (o *Orchestrator) IsMuted() bool {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.muted
}

// Conversation returns a copy of the full turn log.
func (o *Orchestrator) Conversation() []llms.Message {
	return o.conversation.snapshot()
}

func (o *Orchestrator) setState(next State) {
	o.stateMu.Lock()
	previous := o.state
	o.state = next
	o.stateMu.Unlock()

	if previous != next {
		o.emit(events.NewStateChanged(string(previous), string(next)))
	}
}

// Trigger starts a new turn, the same path a wake-word hit takes. Ignored
// unless the session is resting.
func (o *Orchestrator) Trigger() {
	o.post(o.handleWake)
}

// Tap is the user's one physical control. Resting: start listening.
// Listening: "I'm done talking". Speaking or awaiting a response: interrupt.
func (o *Orchestrator) Tap() {
	o.post(func() {
		switch o.State() {
		case StateIdle, StateInterrupted:
			o.startListening()
		case StateListening:
			o.vadMu.Lock()
			o.detector.ForceStop()
			o.vadMu.Unlock()
		case StateTranscribing:
			// Nothing to cut short; the recording is already on its way.
		case StateAwaitingResponse, StateSpeaking:
			o.interruptTurn()
		}
	})
}

// SetMuted tears the session down to idle when muting; unmuting requires a
// fresh trigger.
func (o *Orchestrator) SetMuted(muted bool) {
	o.post(func() {
		o.stateMu.Lock()
		o.muted = muted
		o.stateMu.Unlock()
		if muted {
			o.teardownTurn()
			o.setState(StateIdle)
		}
	})
}

// Close ends the session and releases both audio resources. Idempotent.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.closed)
		if o.started {
			<-o.done
		}

		if err := o.options.wake.Stop(); err != nil {
			logger.Warn("failed to stop wake-word listening", "error", err)
		}
		o.teardownTurn()
	})
}

// teardownTurn stops capture and playback unconditionally and discards any
// in-progress turn. Every abort path funnels through here so no failure can
// leave the microphone or speaker open.
func (o *Orchestrator) teardownTurn() {
	o.endTurnContext()
	o.turn = nil
	if _, err := o.capture.stop(); err != nil {
		logger.Warn("failed to release capture during teardown", "error", err)
	}
	o.speech.stop()
}

func (o *Orchestrator) handleWake() {
	switch o.State() {
	case StateIdle, StateInterrupted:
	default:
		return
	}
	if o.IsMuted() {
		return
	}
	o.startListening()
}

func (o *Orchestrator) startListening() {
	if o.IsMuted() {
		return
	}
	// Feedback prevention: state check plus the capture facade's own guard
	// against a live speaker.
	if o.speech.isSpeaking() || o.State() == StateSpeaking {
		o.emit(events.NewSessionError("Still speaking, hold on.", ErrBusySpeaking))
		return
	}

	_, span := tracer.Start(o.baseCtx, "start listening")
	defer span.End()

	turnCtx, cancel := context.WithCancel(o.baseCtx)
	o.turnCtx = turnCtx
	o.turnCancel = cancel

	o.vadMu.Lock()
	o.detector.Restart(time.Now())
	o.vadMu.Unlock()

	err := o.capture.start(turnCtx, func(sample audio.MeteringSample) {
		o.vadMu.Lock()
		o.detector.Observe(sample)
		o.vadMu.Unlock()
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "capture failed to start")
		o.endTurnContext()

		status := statusMicPermissionDenied
		if !errors.Is(err, audio.ErrPermissionDenied) {
			status = "Could not open the microphone."
		}
		o.emit(events.NewSessionError(status, err))
		o.setState(StateIdle)
		return
	}

	o.setState(StateListening)
}

func (o *Orchestrator) handleVADStop(signal vad.Signal) {
	if o.State() != StateListening {
		return
	}

	recording, err := o.capture.stop()
	if err != nil {
		o.emit(events.NewSessionError("Could not close the microphone.", err))
		o.teardownTurn()
		o.setState(StateIdle)
		return
	}

	if !signal.SpeechDetected || recording == nil {
		o.emit(events.NewTranscriptEmpty())
		o.teardownTurn()
		o.setState(StateIdle)
		return
	}

	o.setState(StateTranscribing)
	turnCtx := o.turnCtx
	if turnCtx == nil {
		turnCtx = o.baseCtx
	}
	go func() {
		ctx, span := tracer.Start(turnCtx, "transcribe recording")
		defer span.End()
		span.SetAttributes(attribute.Float64("recording.duration_seconds", recording.Duration().Seconds()))

		result, err := o.transcription.transcribe(ctx, recording)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transcription failed")
		}
		o.post(func() { o.handleTranscript(result, err) })
	}()
}

func (o *Orchestrator) handleTranscript(result *speechtotext.Result, err error) {
	if o.State() != StateTranscribing {
		return
	}

	if err != nil {
		o.emit(events.NewSessionError(statusTranscriptionFailed, err))
		o.teardownTurn()
		o.setState(StateIdle)
		return
	}
	if result == nil || strings.TrimSpace(result.Text) == "" {
		o.emit(events.NewTranscriptEmpty())
		o.endTurnContext()
		o.setState(StateIdle)
		return
	}

	language := normalizeLanguage(result.Language)
	o.emit(events.NewTranscriptFinal(result.Text, language))
	o.conversation.appendUser(result.Text)

	turnCtx := o.turnCtx
	if turnCtx == nil {
		turnCtx, o.turnCancel = context.WithCancel(o.baseCtx)
		o.turnCtx = turnCtx
	}
	o.turn = &activeTurn{
		id:        uuid.New(),
		ctx:       turnCtx,
		language:  language,
		segmenter: newSentenceSegmenter(o.options.minSentenceLength),
	}
	o.setState(StateAwaitingResponse)

	history := o.conversation.history()
	// The just-appended user turn rides in the prompt itself.
	if len(history) > 0 {
		history = history[:len(history)-1]
	}
	go o.streamResponse(turnCtx, o.turn.id, result.Text, history)
}

func (o *Orchestrator) streamResponse(ctx context.Context, turnID uuid.UUID, prompt string, history []llms.Message) {
	ctx, span := tracer.Start(ctx, "stream response")
	defer span.End()

	if o.options.dialog == nil {
		o.post(func() { o.handleStreamFatal(turnID, fmt.Errorf("no conversation client configured")) })
		return
	}

	stream := o.options.dialog.PromptWithStream(ctx, prompt,
		llms.WithSystemPrompt(o.options.systemPrompt),
		llms.WithHistory(history),
		llms.WithMaxTokens(llms.DefaultVoiceMaxTokens),
		llms.WithTools(o.options.tools...),
	)

	truncated := false
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			if errors.Is(err, llms.ErrStreamTruncated) {
				truncated = true
				span.AddEvent("stream truncated")
				continue
			}
			var requestErr *llmbackend.RequestError
			if errors.As(err, &requestErr) {
				span.RecordError(err)
				span.SetStatus(codes.Error, "stream request failed")
				o.post(func() { o.handleStreamFatal(turnID, err) })
				return
			}
			// Malformed individual chunks are skipped; the stream goes on.
			span.RecordError(err)
			continue
		}

		switch chunk := chunk.(type) {
		case llms.StreamToolUseChunk:
			name := chunk.ToolName()
			o.post(func() { o.handleToolUse(turnID, name) })
		case llms.StreamContentChunk:
			delta := chunk.Content()
			o.post(func() { o.handleDelta(turnID, delta) })
		}
	}

	o.post(func() { o.handleStreamEnd(turnID, truncated) })
}

func (o *Orchestrator) handleDelta(turnID uuid.UUID, delta string) {
	turn := o.activeTurnFor(turnID)
	if turn == nil {
		return
	}

	if o.State() == StateAwaitingResponse {
		o.setState(StateSpeaking)
	}

	turn.response.WriteString(delta)
	turn.queue = append(turn.queue, turn.segmenter.push(delta)...)
	o.dispatchNextSegment(turn)
}

func (o *Orchestrator) handleToolUse(turnID uuid.UUID, name string) {
	turn := o.activeTurnFor(turnID)
	if turn == nil {
		return
	}

	// Tool markers are surfaced and executed, never spoken.
	o.emit(events.NewToolInvoked(name))

	tool, ok := llms.FindTool(o.options.tools, name)
	if !ok {
		logger.Warn("response referenced an unregistered tool", "tool", name)
		return
	}
	go func() {
		if _, err := tool.Execute(""); err != nil {
			logger.Warn("tool execution failed", "tool", name, "error", err)
		}
	}()
}

func (o *Orchestrator) handleStreamEnd(turnID uuid.UUID, truncated bool) {
	turn := o.activeTurnFor(turnID)
	if turn == nil {
		return
	}

	if truncated {
		o.emit(events.NewSessionError("The reply was cut short.", llms.ErrStreamTruncated))
	}

	turn.streamEnded = true
	if remainder := turn.segmenter.flush(); remainder != "" {
		turn.queue = append(turn.queue, remainder)
	}
	o.dispatchNextSegment(turn)
}

func (o *Orchestrator) handleStreamFatal(turnID uuid.UUID, err error) {
	turn := o.activeTurnFor(turnID)
	if turn == nil {
		return
	}

	o.emit(events.NewSessionError(statusConversationFailed, err))
	o.finishTurn(turn)
}

// dispatchNextSegment keeps exactly one segment in flight, in completion
// order. When the stream has ended and the queue is dry, the turn is done.
func (o *Orchestrator) dispatchNextSegment(turn *activeTurn) {
	if turn.inFlight {
		return
	}

	if turn.speechSkipped {
		turn.queue = nil
	}
	if len(turn.queue) == 0 {
		if turn.streamEnded {
			o.finishTurn(turn)
		}
		return
	}

	segment := turn.queue[0]
	turn.queue = turn.queue[1:]
	turn.inFlight = true

	o.emit(events.NewResponseSegment(segment))

	turnID := turn.id

	// The provider is only known once synthesis resolved the fallback chain,
	// so the first audible segment reports it from inside the speak call.
	var onReady func(texttospeech.Provider)
	if !turn.speechStarted {
		onReady = func(provider texttospeech.Provider) {
			o.post(func() {
				turn := o.activeTurnFor(turnID)
				if turn == nil || turn.speechStarted {
					return
				}
				turn.speechStarted = true
				o.emit(events.NewSpeechStarted(string(provider)))
			})
		}
	}

	go func() {
		_, err := o.speech.speak(turn.ctx, segment, turn.language, onReady)
		o.post(func() { o.handleSegmentSpoken(turnID, err) })
	}()
}

func (o *Orchestrator) handleSegmentSpoken(turnID uuid.UUID, err error) {
	turn := o.activeTurnFor(turnID)
	if turn == nil {
		return
	}
	turn.inFlight = false

	if err != nil {
		switch {
		case errors.Is(err, texttospeech.ErrUnsupportedLanguage):
			// The text stays visible; the rest of the turn is not spoken.
			turn.speechSkipped = true
			logger.Info("skipping speech for unsupported language", "language", turn.language)
		case errors.Is(err, context.Canceled):
			// Interrupted or torn down; the turn owner already handled it.
			return
		default:
			turn.speechSkipped = true
			o.emit(events.NewSessionError(statusSynthesisFailed, err))
		}
	}

	o.dispatchNextSegment(turn)
}

func (o *Orchestrator) finishTurn(turn *activeTurn) {
	response := turn.response.String()
	o.conversation.appendAssistant(response)
	if response != "" {
		o.emit(events.NewResponseFinal(response))
	}
	if turn.speechStarted {
		o.emit(events.NewSpeechEnded())
	}

	o.endTurnContext()
	o.turn = nil
	o.setState(StateIdle)

	o.scheduleAutoRestart()
}

func (o *Orchestrator) endTurnContext() {
	if o.turnCancel != nil {
		o.turnCancel()
		o.turnCancel = nil
	}
	o.turnCtx = nil
}

func (o *Orchestrator) interruptTurn() {
	turn := o.turn

	o.speech.stop()
	o.endTurnContext()
	o.turn = nil

	// Whatever streamed in before the tap stays in the log.
	if turn != nil {
		o.conversation.appendAssistant(turn.response.String())
	}

	o.emit(events.NewTurnInterrupted())
	o.setState(StateInterrupted)
}

// scheduleAutoRestart re-opens the microphone a beat after a finished turn,
// unless the session was muted or interrupted in the meantime. The resting
// state and both resource flags are re-checked on the actor when the timer
// fires.
func (o *Orchestrator) scheduleAutoRestart() {
	if !o.options.autoRestart || o.IsMuted() {
		return
	}

	time.AfterFunc(o.options.autoRestartDelay, func() {
		o.post(func() {
			if o.State() != StateIdle || o.IsMuted() {
				return
			}
			if o.speech.isSpeaking() || o.capture.isRecording() {
				return
			}
			o.startListening()
		})
	})
}

// activeTurnFor drops stale callbacks from turns that already ended.
func (o *Orchestrator) activeTurnFor(turnID uuid.UUID) *activeTurn {
	if o.turn == nil || o.turn.id != turnID {
		return nil
	}
	return o.turn
}
