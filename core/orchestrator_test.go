package voicesession

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kampanion/voice-core/core/audio"
	"github.com/kampanion/voice-core/core/events"
	"github.com/kampanion/voice-core/core/llms"
	"github.com/kampanion/voice-core/core/speechtotext"
	"github.com/kampanion/voice-core/core/texttospeech"
	"github.com/kampanion/voice-core/core/vad"
)

// stubDevice tracks capture and playback occupancy and flags any instant
// where both sides of the shared resource were live.
type stubDevice struct {
	mu             sync.Mutex
	capturing      bool
	playing        bool
	violation      bool
	captureStarts  int
	playbackStarts int
	onFrame        func([]byte)
}

func (d *stubDevice) StartCapture(_ context.Context, onFrame func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing {
		d.violation = true
	}
	d.capturing = true
	d.captureStarts++
	d.onFrame = onFrame
	return nil
}

func (d *stubDevice) StopCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capturing = false
	d.onFrame = nil
	return nil
}

func (d *stubDevice) StartPlayback(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capturing {
		d.violation = true
	}
	d.playing = true
	d.playbackStarts++
	return nil
}

func (d *stubDevice) StopPlayback() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = false
	return nil
}

func (d *stubDevice) SendAudio([]byte) error { return nil }

func (d *stubDevice) Drain(onDrained func()) error {
	go onDrained()
	return nil
}

func (d *stubDevice) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (d *stubDevice) feed(frame []byte) {
	d.mu.Lock()
	onFrame := d.onFrame
	d.mu.Unlock()
	if onFrame != nil {
		onFrame(frame)
	}
}

func (d *stubDevice) hadViolation() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.violation
}

func (d *stubDevice) captureCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captureStarts
}

func (d *stubDevice) playbackCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playbackStarts
}

// captureOnlyDevice is a microphone with no speaker half, the shape of the
// portaudio client.
type captureOnlyDevice struct {
	mu      sync.Mutex
	starts  int
	onFrame func([]byte)
}

func (d *captureOnlyDevice) StartCapture(_ context.Context, onFrame func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	d.onFrame = onFrame
	return nil
}

func (d *captureOnlyDevice) StopCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFrame = nil
	return nil
}

func (d *captureOnlyDevice) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (d *captureOnlyDevice) feed(frame []byte) {
	d.mu.Lock()
	onFrame := d.onFrame
	d.mu.Unlock()
	if onFrame != nil {
		onFrame(frame)
	}
}

func (d *captureOnlyDevice) startCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

func pcmTone(value int16, samples int) []byte {
	frame := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(value))
	}
	return frame
}

// feedAudio pushes frames for the given wall-clock span so the capture
// meter emits real samples.
func feedAudio(device interface{ feed([]byte) }, loud bool, span time.Duration) {
	frame := pcmTone(0, 160)
	if loud {
		frame = pcmTone(8000, 160)
	}
	deadline := time.Now().Add(span)
	for time.Now().Before(deadline) {
		device.feed(frame)
		time.Sleep(10 * time.Millisecond)
	}
}

type stubTranscriber struct {
	mu     sync.Mutex
	calls  int
	result *speechtotext.Result
	err    error
}

func (s *stubTranscriber) Transcribe(context.Context, speechtotext.Input, ...speechtotext.TranscriptionOption) (*speechtotext.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func (s *stubTranscriber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type contentChunk string

func (contentChunk) FinishReason() *string { return nil }
func (c contentChunk) Content() string     { return string(c) }

type toolChunk string

func (toolChunk) FinishReason() *string { return nil }
func (c toolChunk) ToolName() string    { return string(c) }

type scriptedStream struct {
	chunks   []llms.StreamChunk
	finalErr error
}

func (s scriptedStream) Chunks(context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.finalErr != nil {
			yield(nil, s.finalErr)
		}
	}
}

type stubDialog struct {
	mu      sync.Mutex
	prompts []string
	stream  llms.Stream
}

func (d *stubDialog) PromptWithStream(_ context.Context, prompt string, _ ...llms.StreamingPromptOption) llms.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prompts = append(d.prompts, prompt)
	return d.stream
}

// recordingSynth captures every segment it was asked to speak.
type recordingSynth struct {
	mu       sync.Mutex
	segments []string
}

func (s *recordingSynth) Synthesize(_ context.Context, text string, _ ...texttospeech.SynthesisOption) (*texttospeech.Speech, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append(s.segments, text)
	return &texttospeech.Speech{
		PCM:          []byte{1, 2},
		EncodingInfo: audio.GetDefaultEncodingInfo(),
		Provider:     texttospeech.ProviderPrimary,
	}, nil
}

func (s *recordingSynth) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.segments...)
}

// blockingSynth parks in Synthesize until released or cancelled.
type blockingSynth struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingSynth() *blockingSynth {
	return &blockingSynth{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (s *blockingSynth) Synthesize(ctx context.Context, text string, _ ...texttospeech.SynthesisOption) (*texttospeech.Speech, error) {
	s.started <- struct{}{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
		return &texttospeech.Speech{PCM: []byte{1}, EncodingInfo: audio.GetDefaultEncodingInfo(), Provider: texttospeech.ProviderPrimary}, nil
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) has(kind events.Kind) bool {
	return r.first(kind) != nil
}

func (r *eventRecorder) first(kind events.Kind) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if event.Kind() == kind {
			return event
		}
	}
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, message string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}

func quickVAD() OrchestratorOption {
	return WithVoiceActivityOptions(
		vad.WithMinRecording(50*time.Millisecond),
		vad.WithSilenceDuration(30*time.Millisecond),
		vad.WithMaxRecording(5*time.Second),
	)
}

func TestVoiceTurnEndToEnd(t *testing.T) {
	device := &stubDevice{}
	transcriber := &stubTranscriber{result: &speechtotext.Result{Text: "how are you doing", Language: "en-US"}}
	dialog := &stubDialog{stream: scriptedStream{chunks: []llms.StreamChunk{
		contentChunk("Hello. "), contentChunk("How "), contentChunk("are you? "),
	}}}
	synth := &recordingSynth{}
	recorder := &eventRecorder{}

	o, err := NewOrchestrator(
		WithAudioDevice(device),
		WithTranscriber(transcriber),
		WithConversationClient(dialog),
		WithPrimarySynthesizer(synth),
		WithEventHandler(recorder.handle),
		WithMinSentenceLength(4),
		WithAutoRestart(false),
		quickVAD(),
	)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer o.Close()

	o.Tap()
	waitFor(t, time.Second, "expected listening to start", func() bool { return o.State() == StateListening })

	feedAudio(device, true, 200*time.Millisecond)
	feedAudio(device, false, 400*time.Millisecond)

	waitFor(t, 3*time.Second, "expected turn to complete", func() bool { return o.State() == StateIdle })

	want := []string{"Hello.", "How are you?"}
	spoken := synth.spoken()
	if len(spoken) != len(want) {
		t.Fatalf("expected segments %v, got %v", want, spoken)
	}
	for i := range want {
		if spoken[i] != want[i] {
			t.Errorf("segment %d: expected %q, got %q", i, want[i], spoken[i])
		}
	}

	if device.hadViolation() {
		t.Error("capture and playback were live at the same time")
	}
	for _, kind := range []events.Kind{
		events.KindTranscriptFinal, events.KindResponseFinal,
		events.KindSpeechStarted, events.KindSpeechEnded,
	} {
		if !recorder.has(kind) {
			t.Errorf("expected %s event", kind)
		}
	}

	conversationTurns := o.Conversation()
	if len(conversationTurns) != 2 {
		t.Fatalf("expected 2 logged turns, got %d", len(conversationTurns))
	}
	if conversationTurns[1].Content != "Hello. How are you? " {
		t.Errorf("unexpected assistant turn: %q", conversationTurns[1].Content)
	}
}

func TestSilentRecordingYieldsEmptySpeech(t *testing.T) {
	device := &stubDevice{}
	transcriber := &stubTranscriber{result: &speechtotext.Result{Text: "should never be used"}}
	recorder := &eventRecorder{}

	o, err := NewOrchestrator(
		WithAudioDevice(device),
		WithTranscriber(transcriber),
		WithEventHandler(recorder.handle),
		WithAutoRestart(false),
		WithVoiceActivityOptions(
			vad.WithMinRecording(50*time.Millisecond),
			vad.WithSilenceDuration(time.Second),
			vad.WithMaxRecording(200*time.Millisecond),
		),
	)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer o.Close()

	o.Tap()
	waitFor(t, time.Second, "expected listening to start", func() bool { return o.State() == StateListening })

	feedAudio(device, false, 500*time.Millisecond)

	waitFor(t, 2*time.Second, "expected the safety ceiling to end the turn", func() bool {
		return o.State() == StateIdle
	})
	if !recorder.has(events.KindTranscriptEmpty) {
		t.Error("expected an empty-transcript outcome")
	}
	if transcriber.callCount() != 0 {
		t.Errorf("expected no transcription for silent audio, got %d calls", transcriber.callCount())
	}
}

func TestInterruptDuringSpeaking(t *testing.T) {
	device := &stubDevice{}
	transcriber := &stubTranscriber{result: &speechtotext.Result{Text: "tell me everything", Language: "en-US"}}
	dialog := &stubDialog{stream: scriptedStream{chunks: []llms.StreamChunk{
		contentChunk("This is a long answer. "), contentChunk("It keeps going on. "),
	}}}
	synth := newBlockingSynth()

	o, err := NewOrchestrator(
		WithAudioDevice(device),
		WithTranscriber(transcriber),
		WithConversationClient(dialog),
		WithPrimarySynthesizer(synth),
		WithMinSentenceLength(4),
		WithAutoRestart(true),
		WithAutoRestartDelay(30*time.Millisecond),
		quickVAD(),
	)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer o.Close()

	o.Tap()
	waitFor(t, time.Second, "expected listening to start", func() bool { return o.State() == StateListening })
	feedAudio(device, true, 200*time.Millisecond)
	feedAudio(device, false, 400*time.Millisecond)

	waitFor(t, 3*time.Second, "expected synthesis to begin", func() bool {
		select {
		case <-synth.started:
			return true
		default:
			return false
		}
	})
	if o.State() != StateSpeaking {
		t.Fatalf("expected speaking state, got %s", o.State())
	}

	o.Tap()
	waitFor(t, time.Second, "expected interruption", func() bool { return o.State() == StateInterrupted })

	// No auto-restart out of an interruption; the session waits for an
	// explicit new trigger.
	captures := device.captureCount()
	time.Sleep(150 * time.Millisecond)
	if o.State() != StateInterrupted {
		t.Errorf("expected state to remain interrupted, got %s", o.State())
	}
	if device.captureCount() != captures {
		t.Error("expected no capture restart after an interruption")
	}

	o.Tap()
	waitFor(t, time.Second, "expected an explicit trigger to restart listening", func() bool {
		return o.State() == StateListening
	})
}

func TestTriggerRestartsFromInterrupted(t *testing.T) {
	device := &stubDevice{}
	transcriber := &stubTranscriber{result: &speechtotext.Result{Text: "tell me everything", Language: "en-US"}}
	dialog := &stubDialog{stream: scriptedStream{chunks: []llms.StreamChunk{
		contentChunk("This is a long answer. "), contentChunk("It keeps going on. "),
	}}}
	synth := newBlockingSynth()

	o, err := NewOrchestrator(
		WithAudioDevice(device),
		WithTranscriber(transcriber),
		WithConversationClient(dialog),
		WithPrimarySynthesizer(synth),
		WithMinSentenceLength(4),
		WithAutoRestart(false),
		quickVAD(),
	)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer o.Close()

	o.Tap()
	waitFor(t, time.Second, "expected listening to start", func() bool { return o.State() == StateListening })
	feedAudio(device, true, 200*time.Millisecond)
	feedAudio(device, false, 400*time.Millisecond)

	waitFor(t, 3*time.Second, "expected synthesis to begin", func() bool {
		select {
		case <-synth.started:
			return true
		default:
			return false
		}
	})
	o.Tap()
	waitFor(t, time.Second, "expected interruption", func() bool { return o.State() == StateInterrupted })

	// A wake-word hit or a manual trigger counts as the explicit new trigger
	// that leaves the interrupted state, the same as a tap.
	o.Trigger()
	waitFor(t, time.Second, "expected a trigger to restart listening from interrupted", func() bool {
		return o.State() == StateListening
	})
}

func TestSpeechStartedReportsFallbackProvider(t *testing.T) {
	device := &stubDevice{}
	transcriber := &stubTranscriber{result: &speechtotext.Result{Text: "say something", Language: "en-US"}}
	dialog := &stubDialog{stream: scriptedStream{chunks: []llms.StreamChunk{
		contentChunk("The primary voice is down today. "),
	}}}
	primary := &countingSynth{err: &texttospeech.RequestError{
		Op:         "synthesis request",
		StatusCode: http.StatusInternalServerError,
		Err:        errors.New("overloaded"),
	}}
	fallback := &countingSynth{provider: texttospeech.ProviderDevice}
	recorder := &eventRecorder{}

	o, err := NewOrchestrator(
		WithAudioDevice(device),
		WithTranscriber(transcriber),
		WithConversationClient(dialog),
		WithPrimarySynthesizer(primary),
		WithFallbackSynthesizer(fallback),
		WithEventHandler(recorder.handle),
		WithMinSentenceLength(4),
		WithAutoRestart(false),
		quickVAD(),
	)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer o.Close()

	o.Tap()
	waitFor(t, time.Second, "expected listening to start", func() bool { return o.State() == StateListening })
	feedAudio(device, true, 200*time.Millisecond)
	feedAudio(device, false, 400*time.Millisecond)
	waitFor(t, 3*time.Second, "expected turn to complete", func() bool { return o.State() == StateIdle })

	started, ok := recorder.first(events.KindSpeechStarted).(events.SpeechStarted)
	if !ok {
		t.Fatal("expected a speech-started event")
	}
	if started.Provider != string(texttospeech.ProviderDevice) {
		t.Errorf("expected the resolved device provider, got %q", started.Provider)
	}
}

func TestDedicatedCaptureDeviceRoutesMicrophone(t *testing.T) {
	speaker := &stubDevice{}
	microphone := &captureOnlyDevice{}
	transcriber := &stubTranscriber{result: &speechtotext.Result{Text: "quick question", Language: "en-US"}}
	dialog := &stubDialog{stream: scriptedStream{chunks: []llms.StreamChunk{
		contentChunk("Here is a quick answer. "),
	}}}
	synth := &recordingSynth{}

	o, err := NewOrchestrator(
		WithAudioDevice(speaker),
		WithCaptureDevice(microphone),
		WithTranscriber(transcriber),
		WithConversationClient(dialog),
		WithPrimarySynthesizer(synth),
		WithMinSentenceLength(4),
		WithAutoRestart(false),
		quickVAD(),
	)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer o.Close()

	o.Tap()
	waitFor(t, time.Second, "expected the capture device to open", func() bool {
		return microphone.startCount() == 1
	})
	feedAudio(microphone, true, 200*time.Millisecond)
	feedAudio(microphone, false, 400*time.Millisecond)
	waitFor(t, 3*time.Second, "expected turn to complete", func() bool { return o.State() == StateIdle })

	if speaker.captureCount() != 0 {
		t.Error("expected the microphone to stay off the full-duplex device")
	}
	if speaker.playbackCount() == 0 {
		t.Error("expected playback to go through the full-duplex device")
	}
	if len(synth.spoken()) == 0 {
		t.Error("expected the turn to produce speech")
	}
}

func TestToolMarkersAreNeverSpoken(t *testing.T) {
	device := &stubDevice{}
	transcriber := &stubTranscriber{result: &speechtotext.Result{Text: "check my schedule", Language: "en-US"}}
	dialog := &stubDialog{stream: scriptedStream{chunks: []llms.StreamChunk{
		contentChunk("Let me look that up. "),
		toolChunk("campus_schedule"),
		contentChunk("You have a lab at two. "),
	}}}
	synth := &recordingSynth{}
	recorder := &eventRecorder{}

	o, err := NewOrchestrator(
		WithAudioDevice(device),
		WithTranscriber(transcriber),
		WithConversationClient(dialog),
		WithPrimarySynthesizer(synth),
		WithEventHandler(recorder.handle),
		WithMinSentenceLength(4),
		WithAutoRestart(false),
		quickVAD(),
	)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer o.Close()

	o.Tap()
	waitFor(t, time.Second, "expected listening to start", func() bool { return o.State() == StateListening })
	feedAudio(device, true, 200*time.Millisecond)
	feedAudio(device, false, 400*time.Millisecond)
	waitFor(t, 3*time.Second, "expected turn to complete", func() bool { return o.State() == StateIdle })

	for _, segment := range synth.spoken() {
		if strings.Contains(segment, "campus_schedule") {
			t.Errorf("tool name leaked into spoken text: %q", segment)
		}
	}
	if !recorder.has(events.KindToolInvoked) {
		t.Error("expected the tool marker to surface as an event")
	}
}

func TestAutoRestartAfterFinishedTurn(t *testing.T) {
	device := &stubDevice{}
	transcriber := &stubTranscriber{result: &speechtotext.Result{Text: "quick question", Language: "en-US"}}
	dialog := &stubDialog{stream: scriptedStream{chunks: []llms.StreamChunk{
		contentChunk("Here is a quick answer. "),
	}}}
	synth := &recordingSynth{}

	o, err := NewOrchestrator(
		WithAudioDevice(device),
		WithTranscriber(transcriber),
		WithConversationClient(dialog),
		WithPrimarySynthesizer(synth),
		WithMinSentenceLength(4),
		WithAutoRestart(true),
		WithAutoRestartDelay(30*time.Millisecond),
		quickVAD(),
	)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer o.Close()

	o.Tap()
	waitFor(t, time.Second, "expected listening to start", func() bool { return o.State() == StateListening })
	feedAudio(device, true, 200*time.Millisecond)
	feedAudio(device, false, 400*time.Millisecond)

	waitFor(t, 3*time.Second, "expected listening to resume after the turn", func() bool {
		return device.captureCount() >= 2 && o.State() == StateListening
	})
	if device.hadViolation() {
		t.Error("capture and playback were live at the same time")
	}
}

func TestMuteTearsDownToIdle(t *testing.T) {
	device := &stubDevice{}
	transcriber := &stubTranscriber{result: &speechtotext.Result{Text: "never mind"}}

	o, err := NewOrchestrator(
		WithAudioDevice(device),
		WithTranscriber(transcriber),
		WithAutoRestart(false),
		quickVAD(),
	)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer o.Close()

	o.Tap()
	waitFor(t, time.Second, "expected listening to start", func() bool { return o.State() == StateListening })

	o.SetMuted(true)
	waitFor(t, time.Second, "expected mute to return to idle", func() bool { return o.State() == StateIdle })

	device.mu.Lock()
	capturing := device.capturing
	device.mu.Unlock()
	if capturing {
		t.Error("expected mute to release the microphone")
	}

	// A trigger while muted must not reopen the microphone.
	o.Tap()
	time.Sleep(50 * time.Millisecond)
	if o.State() != StateIdle {
		t.Errorf("expected muted session to stay idle, got %s", o.State())
	}
}

func TestTranscriptionFailureAbortsTurn(t *testing.T) {
	device := &stubDevice{}
	transcriber := &stubTranscriber{err: errors.New("backend unreachable")}
	recorder := &eventRecorder{}

	o, err := NewOrchestrator(
		WithAudioDevice(device),
		WithTranscriber(transcriber),
		WithEventHandler(recorder.handle),
		WithAutoRestart(false),
		quickVAD(),
	)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer o.Close()

	o.Tap()
	waitFor(t, time.Second, "expected listening to start", func() bool { return o.State() == StateListening })
	feedAudio(device, true, 200*time.Millisecond)
	feedAudio(device, false, 400*time.Millisecond)

	waitFor(t, 3*time.Second, "expected the turn to abort to idle", func() bool { return o.State() == StateIdle })
	if !recorder.has(events.KindSessionError) {
		t.Error("expected a session error event")
	}

	device.mu.Lock()
	open := device.capturing || device.playing
	device.mu.Unlock()
	if open {
		t.Error("expected both audio resources released after the failure")
	}
}
