// Package events defines the typed notifications a voice session emits
// toward its embedding application (UI, logging, analytics).
//
// Kinds are grouped by namespace:
//
//   - session.*  lifecycle and state-machine transitions
//   - user.*     capture-side observations (transcripts)
//   - assistant.* response-side progress (text segments, tools, speech)
//
// Events describe what already happened; they never drive transitions
// themselves. All transitions are decided inside the orchestrator.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

// Event is one session notification. Every event carries its own identity
// so consumers replaying or fanning out the feed (UI, analytics) can
// deduplicate without comparing payloads.
type Event interface {
	ID() uuid.UUID
	Kind() Kind
	Timestamp() time.Time
}

// Base is embedded by every concrete event.
type Base struct {
	id        uuid.UUID
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{id: uuid.New(), kind: kind, timestamp: time.Now()}
}

func (b Base) ID() uuid.UUID        { return b.id }
func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }

const (
	KindStateChanged    Kind = "session.state_changed"
	KindSessionError    Kind = "session.error"
	KindWakeDetected    Kind = "session.wake_detected"
	KindTurnInterrupted Kind = "session.turn_interrupted"

	KindTranscriptFinal Kind = "user.transcript_final"
	KindTranscriptEmpty Kind = "user.transcript_empty"

	KindResponseSegment Kind = "assistant.response_segment"
	KindResponseFinal   Kind = "assistant.response_final"
	KindToolInvoked     Kind = "assistant.tool_invoked"
	KindSpeechStarted   Kind = "assistant.speech_started"
	KindSpeechEnded     Kind = "assistant.speech_ended"
)

// StateChanged reports a state-machine transition.
type StateChanged struct {
	Base
	From string
	To   string
}

func NewStateChanged(from, to string) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), From: from, To: to}
}

// SessionError reports a turn-aborting failure. Status carries the
// user-presentable message; Err the underlying cause.
type SessionError struct {
	Base
	Status string
	Err    error
}

func NewSessionError(status string, err error) SessionError {
	return SessionError{Base: NewBase(KindSessionError), Status: status, Err: err}
}

// WakeDetected reports a wake-word hit from the configured engine.
type WakeDetected struct {
	Base
	Keyword string
}

func NewWakeDetected(keyword string) WakeDetected {
	return WakeDetected{Base: NewBase(KindWakeDetected), Keyword: keyword}
}

// TurnInterrupted reports a user-initiated interruption during playback.
type TurnInterrupted struct{ Base }

func NewTurnInterrupted() TurnInterrupted {
	return TurnInterrupted{Base: NewBase(KindTurnInterrupted)}
}

// TranscriptFinal carries the terminal transcript for one utterance.
type TranscriptFinal struct {
	Base
	Transcript string
	Language   string
}

func NewTranscriptFinal(transcript, language string) TranscriptFinal {
	return TranscriptFinal{Base: NewBase(KindTranscriptFinal), Transcript: transcript, Language: language}
}

// TranscriptEmpty reports a no-speech capture, a normal non-error outcome.
type TranscriptEmpty struct{ Base }

func NewTranscriptEmpty() TranscriptEmpty {
	return TranscriptEmpty{Base: NewBase(KindTranscriptEmpty)}
}

// ResponseSegment is an append-only streamed response text piece.
type ResponseSegment struct {
	Base
	Segment string
}

func NewResponseSegment(segment string) ResponseSegment {
	return ResponseSegment{Base: NewBase(KindResponseSegment), Segment: segment}
}

// ResponseFinal carries the fully assembled response text.
type ResponseFinal struct {
	Base
	Response string
}

func NewResponseFinal(response string) ResponseFinal {
	return ResponseFinal{Base: NewBase(KindResponseFinal), Response: response}
}

// ToolInvoked reports a tool marker observed in the response stream. Tool
// names are displayed, never synthesized into speech.
type ToolInvoked struct {
	Base
	Name string
}

func NewToolInvoked(name string) ToolInvoked {
	return ToolInvoked{Base: NewBase(KindToolInvoked), Name: name}
}

// SpeechStarted reports the first audible output of a turn. Provider
// distinguishes the primary cloud voice from the on-device fallback.
type SpeechStarted struct {
	Base
	Provider string
}

func NewSpeechStarted(provider string) SpeechStarted {
	return SpeechStarted{Base: NewBase(KindSpeechStarted), Provider: provider}
}

// SpeechEnded reports that all queued segments finished playing (or were
// cancelled).
type SpeechEnded struct{ Base }

func NewSpeechEnded() SpeechEnded {
	return SpeechEnded{Base: NewBase(KindSpeechEnded)}
}
