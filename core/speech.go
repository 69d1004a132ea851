package voicesession

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kampanion/voice-core/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// speakTimeout is the hard ceiling on one utterance, synthesis and playback
// included.
const speakTimeout = 30 * time.Second

// speechSynthesizer owns the speaker side of the shared audio resource and
// the provider fallback chain. One speak call is active at a time; the
// fallback latch is session scoped and one way.
type speechSynthesizer struct {
	device   PlaybackDevice
	primary  Synthesizer
	fallback Synthesizer

	// blocked mirrors the capture-side guard; re-checked right before the
	// speaker goes live.
	blocked func() bool

	useDeviceFallback atomic.Bool
	speaking          atomic.Bool

	mu sync.Mutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func newSpeechSynthesizer(device PlaybackDevice, primary, fallback Synthesizer, blocked func() bool) *speechSynthesizer {
	if blocked == nil {
		blocked = func() bool { return false }
	}
	return &speechSynthesizer{
		device:   device,
		primary:  primary,
		fallback: fallback,
		blocked:  blocked,
	}
}

func (s *speechSynthesizer) isSpeaking() bool {
	return s != nil && s.speaking.Load()
}

// speak renders one segment and blocks until its audio finished playing,
// failed, or was stopped. Returns the provider that produced the speech;
// onReady, when non-nil, fires with that provider just before playback
// begins.
func (s *speechSynthesizer) speak(ctx context.Context, text, language string, onReady func(texttospeech.Provider)) (texttospeech.Provider, error) {
	if s == nil || s.device == nil {
		return "", ErrNoAudioDevice
	}

	sanitized := texttospeech.Sanitize(text)
	if sanitized == "" {
		return "", nil
	}
	if !texttospeech.SupportsLanguage(language) {
		return "", texttospeech.ErrUnsupportedLanguage
	}

	// One utterance at a time; queued segments wait here in dispatch order.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blocked() {
		return "", ErrBusyCapturing
	}

	ctx, span := tracer.Start(ctx, "speak segment")
	defer span.End()
	span.SetAttributes(attribute.Int("request.text_length", len(sanitized)))

	ctx, cancel := context.WithTimeout(ctx, speakTimeout)
	defer cancel()
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
	defer func() {
		s.cancelMu.Lock()
		s.cancel = nil
		s.cancelMu.Unlock()
	}()

	s.speaking.Store(true)
	defer s.speaking.Store(false)

	if s.blocked() {
		return "", ErrBusyCapturing
	}

	speech, err := s.synthesize(ctx, sanitized, language)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return "", err
	}
	span.SetAttributes(attribute.String("response.provider", string(speech.Provider)))
	if onReady != nil {
		onReady(speech.Provider)
	}

	if err := s.play(ctx, speech.PCM); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "playback failed")
		return speech.Provider, err
	}
	return speech.Provider, nil
}

// synthesize walks the fallback chain. Any primary failure that is not a
// cancellation trips the latch; once tripped the primary is never tried
// again this session.
func (s *speechSynthesizer) synthesize(ctx context.Context, text, language string) (*texttospeech.Speech, error) {
	opts := []texttospeech.SynthesisOption{texttospeech.WithLanguage(language)}

	if !s.useDeviceFallback.Load() && s.primary != nil {
		speech, err := s.primary.Synthesize(ctx, text, opts...)
		if err == nil {
			return speech, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		s.useDeviceFallback.Store(true)
		logger.WarnContext(ctx, "primary voice provider failed, latching on-device fallback", "error", err)
	}

	if s.fallback == nil {
		return nil, fmt.Errorf("no fallback synthesizer available")
	}
	return s.fallback.Synthesize(ctx, text, opts...)
}

func (s *speechSynthesizer) play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	if err := s.device.StartPlayback(ctx); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	if err := s.device.SendAudio(pcm); err != nil {
		s.device.StopPlayback()
		return fmt.Errorf("failed to queue audio: %w", err)
	}

	drained := make(chan struct{})
	if err := s.device.Drain(func() { close(drained) }); err != nil {
		s.device.StopPlayback()
		return fmt.Errorf("failed to await playback: %w", err)
	}

	select {
	case <-ctx.Done():
		s.device.StopPlayback()
		return ctx.Err()
	case <-drained:
	}
	return s.device.StopPlayback()
}

// provider reports which link of the chain the next utterance will use.
func (s *speechSynthesizer) provider() texttospeech.Provider {
	if s == nil || s.useDeviceFallback.Load() || s.primary == nil {
		return texttospeech.ProviderDevice
	}
	return texttospeech.ProviderPrimary
}

// stop interrupts the in-flight utterance immediately. Safe to call at any
// time, including with nothing playing.
func (s *speechSynthesizer) stop() {
	if s == nil {
		return
	}

	s.cancelMu.Lock()
	cancel := s.cancel
	s.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	if s.device != nil {
		// StopPlayback clears queued audio and releases drain waiters.
		s.device.StopPlayback()
	}
}
