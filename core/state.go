package voicesession

// State is the orchestrator's position in the turn cycle. Only the
// orchestrator's actor goroutine writes it.
type State string

const (
	StateIdle             State = "idle"
	StateListening        State = "listening"
	StateTranscribing     State = "transcribing"
	StateAwaitingResponse State = "awaiting-response"
	StateSpeaking         State = "speaking"
	// StateInterrupted is entered on a tap during speech. It persists until
	// an explicit new trigger; there is no auto-restart out of it.
	StateInterrupted State = "interrupted"
)
