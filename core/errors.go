package voicesession

import "errors"

var (
	// ErrBusySpeaking is returned when capture is requested while playback
	// still owns the shared audio resource.
	ErrBusySpeaking = errors.New("refusing to capture while speaking")
	// ErrBusyCapturing is the mirror guard on the playback side.
	ErrBusyCapturing = errors.New("refusing to speak while capturing")

	ErrSessionClosed = errors.New("voice session closed")
	ErrNoAudioDevice = errors.New("no audio device configured")
	ErrNoTranscriber = errors.New("no transcription client configured")
)

// Status messages surfaced to the user when a turn aborts back to idle.
const (
	statusMicPermissionDenied = "Microphone access was denied."
	statusTranscriptionFailed = "Could not reach the transcription service."
	statusConversationFailed  = "Could not reach the assistant."
	statusSynthesisFailed     = "Could not play the spoken reply."
)
