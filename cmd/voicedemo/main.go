// voicedemo is a terminal harness for the voice session: real microphone and
// speaker, real backends, and a minimal TUI showing the turn cycle.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	voicesession "github.com/kampanion/voice-core/core"
	"github.com/kampanion/voice-core/core/audio/miniaudio"
	"github.com/kampanion/voice-core/core/audio/portaudio"
	"github.com/kampanion/voice-core/core/events"
	llmbackend "github.com/kampanion/voice-core/core/llms/backend"
	sttbackend "github.com/kampanion/voice-core/core/speechtotext/backend"
	"github.com/kampanion/voice-core/core/speechtotext/deepgram"
	ttsbackend "github.com/kampanion/voice-core/core/texttospeech/backend"
	"github.com/kampanion/voice-core/core/texttospeech/device"
	"github.com/kampanion/voice-core/core/wakeword"
)

var (
	flagLanguage    string
	flagTranscriber string
	flagDevice      string
	flagNoRestart   bool
	flagPrompt      string
)

// captureBufferFrames is ~100ms of audio per portaudio read.
const captureBufferFrames = 1600

func main() {
	rootCmd := &cobra.Command{
		Use:   "voicedemo",
		Short: "Interactive voice conversation demo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&flagLanguage, "language", "en-US", "preferred conversation locale")
	rootCmd.Flags().StringVar(&flagTranscriber, "transcriber", "backend", "transcription provider (backend|deepgram)")
	rootCmd.Flags().StringVar(&flagDevice, "device", "miniaudio", "capture device (miniaudio|portaudio)")
	rootCmd.Flags().BoolVar(&flagNoRestart, "no-auto-restart", false, "do not resume listening after a finished turn")
	rootCmd.Flags().StringVar(&flagPrompt, "system-prompt", defaultSystemPrompt, "assistant instructions")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

const defaultSystemPrompt = "You are Kampanion, a friendly campus companion. " +
	"Answer briefly and conversationally, in one or two spoken sentences."

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	audioDevice, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer audioDevice.Close()

	var transcriber voicesession.Transcriber
	switch flagTranscriber {
	case "deepgram":
		transcriber = deepgram.NewClient()
	default:
		transcriber = sttbackend.NewClient()
	}

	dialog, err := llmbackend.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create conversation client: %w", err)
	}

	primaryVoice, err := ttsbackend.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create speech client: %w", err)
	}

	model := newModel()
	program := tea.NewProgram(model, tea.WithAltScreen())

	sessionOptions := []voicesession.OrchestratorOption{
		voicesession.WithAudioDevice(audioDevice),
		voicesession.WithTranscriber(transcriber),
		voicesession.WithConversationBackend(dialog),
		voicesession.WithPrimarySynthesizer(primaryVoice),
		voicesession.WithFallbackSynthesizer(device.NewSynthesizer()),
		voicesession.WithWakeWordListener(wakeword.NewListener(nil)),
		voicesession.WithLanguage(flagLanguage),
		voicesession.WithSystemPrompt(flagPrompt),
		voicesession.WithAutoRestart(!flagNoRestart),
		voicesession.WithEventHandler(func(event events.Event) {
			program.Send(sessionEventMsg{event: event})
		}),
	}

	if flagDevice == "portaudio" {
		microphone, err := portaudio.NewClient(captureBufferFrames)
		if err != nil {
			return fmt.Errorf("failed to open portaudio capture: %w", err)
		}
		defer microphone.Close()
		sessionOptions = append(sessionOptions, voicesession.WithCaptureDevice(microphone))
	}

	session, err := voicesession.NewOrchestrator(sessionOptions...)
	if err != nil {
		return fmt.Errorf("failed to create voice session: %w", err)
	}

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start voice session: %w", err)
	}
	defer session.Close()

	model.session = session
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui exited with error: %w", err)
	}
	return nil
}
