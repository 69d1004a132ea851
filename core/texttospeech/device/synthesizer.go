// Package device renders speech with the platform synthesizer. It is the
// terminal link of the fallback chain and makes no network calls.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/kampanion/voice-core/core/audio"
	"github.com/kampanion/voice-core/core/texttospeech"
)

type Synthesizer struct {
	goos string
}

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{goos: runtime.GOOS}
}

// Synthesize renders text through the platform speech command and returns
// the decoded PCM clip.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (*texttospeech.Speech, error) {
	options := texttospeech.SynthesisOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !texttospeech.SupportsLanguage(options.Language) {
		return nil, texttospeech.ErrUnsupportedLanguage
	}

	wav, err := s.renderWAV(ctx, text, options.Language)
	if err != nil {
		return nil, fmt.Errorf("on-device synthesis failed: %w", err)
	}

	pcm, encodingInfo, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("on-device synthesis produced unreadable audio: %w", err)
	}

	return &texttospeech.Speech{
		PCM:          pcm,
		EncodingInfo: encodingInfo,
		Provider:     texttospeech.ProviderDevice,
	}, nil
}

func (s *Synthesizer) renderWAV(ctx context.Context, text, language string) ([]byte, error) {
	switch s.goos {
	case "darwin":
		outPath := filepath.Join(os.TempDir(), fmt.Sprintf("kampanion-speech-%d.wav", os.Getpid()))
		defer os.Remove(outPath)

		cmd := exec.CommandContext(ctx, "say",
			"--data-format=LEI16@16000", "-o", outPath, text)
		if voice := darwinVoice(language); voice != "" {
			cmd.Args = append(cmd.Args[:1], append([]string{"-v", voice}, cmd.Args[1:]...)...)
		}
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("say: %w (%s)", err, bytes.TrimSpace(out))
		}
		return os.ReadFile(outPath)
	default:
		args := []string{"--stdout"}
		if voice := espeakVoice(language); voice != "" {
			args = append(args, "-v", voice)
		}
		args = append(args, text)

		cmd := exec.CommandContext(ctx, "espeak-ng", args...)
		stdout := &bytes.Buffer{}
		cmd.Stdout = stdout
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("espeak-ng: %w", err)
		}
		return stdout.Bytes(), nil
	}
}

func darwinVoice(language string) string {
	switch language {
	case "de-DE":
		return "Anna"
	case "en-US", "":
		return "Samantha"
	}
	return ""
}

func espeakVoice(language string) string {
	switch language {
	case "de-DE":
		return "de"
	case "en-US", "":
		return "en-us"
	}
	return ""
}
