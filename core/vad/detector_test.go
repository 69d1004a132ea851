package vad

import (
	"testing"
	"time"

	"github.com/kampanion/voice-core/core/audio"
)

func feedSamples(d *Detector, start time.Time, cadence time.Duration, levels []float64) {
	for i, level := range levels {
		d.Observe(audio.MeteringSample{
			LevelDB:   level,
			Timestamp: start.Add(time.Duration(i) * cadence),
		})
	}
}

func TestDetectorFiresOnceAfterSilence(t *testing.T) {
	signals := []Signal{}
	detector, err := NewDetector(
		func(signal Signal) { signals = append(signals, signal) },
		WithSilenceDuration(1500*time.Millisecond),
		WithMinRecording(800*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("expected detector construction to succeed, got %v", err)
	}

	start := time.Unix(100, 0)
	detector.Start(start)

	// 150ms cadence: speech for the first ~1s, then five seconds of silence.
	levels := []float64{-20, -18, -22, -19, -21, -20, -25}
	for range 34 {
		levels = append(levels, -60)
	}
	feedSamples(detector, start, 150*time.Millisecond, levels)

	if len(signals) != 1 {
		t.Fatalf("expected exactly one stop signal, got %d", len(signals))
	}
	if signals[0].Reason != StopReasonSilence {
		t.Fatalf("expected silence stop, got %q", signals[0].Reason)
	}
	if !signals[0].SpeechDetected {
		t.Fatalf("expected speech to be marked as detected")
	}
}

func TestDetectorLatchIgnoresLaterCrossings(t *testing.T) {
	fired := 0
	detector, err := NewDetector(
		func(Signal) { fired++ },
		WithSilenceDuration(300*time.Millisecond),
		WithMinRecording(100*time.Millisecond),
		WithMaxRecording(time.Minute),
	)
	if err != nil {
		t.Fatalf("expected detector construction to succeed, got %v", err)
	}

	start := time.Unix(100, 0)
	detector.Start(start)

	// Speech, qualifying silence, then speech and qualifying silence again.
	levels := []float64{-20, -20, -60, -60, -60, -60, -20, -20, -60, -60, -60, -60}
	feedSamples(detector, start, 150*time.Millisecond, levels)

	if fired != 1 {
		t.Fatalf("expected the latch to allow exactly one firing, got %d", fired)
	}
	if !detector.Latched() {
		t.Fatalf("expected detector to stay latched")
	}
}

func TestDetectorMaxDurationStopsWithoutSpeech(t *testing.T) {
	signals := []Signal{}
	detector, err := NewDetector(
		func(signal Signal) { signals = append(signals, signal) },
		WithMaxRecording(3*time.Second),
	)
	if err != nil {
		t.Fatalf("expected detector construction to succeed, got %v", err)
	}

	start := time.Unix(100, 0)
	detector.Start(start)

	levels := make([]float64, 25)
	for i := range levels {
		levels[i] = -70 // continuous sub-threshold silence
	}
	feedSamples(detector, start, 150*time.Millisecond, levels)

	if len(signals) != 1 {
		t.Fatalf("expected one stop signal at the safety ceiling, got %d", len(signals))
	}
	if signals[0].Reason != StopReasonMaxDuration {
		t.Fatalf("expected max-duration stop, got %q", signals[0].Reason)
	}
	if signals[0].SpeechDetected {
		t.Fatalf("expected no speech to be reported")
	}
}

func TestDetectorMinRecordingDelaysStop(t *testing.T) {
	// Speech only between 1.5s and 2.0s of a 3s+ capture; the detector must
	// wait out the full silence window after 2.0s rather than stopping on the
	// leading silence.
	signals := []Signal{}
	detector, err := NewDetector(
		func(signal Signal) { signals = append(signals, signal) },
		WithSilenceDuration(1500*time.Millisecond),
		WithMinRecording(800*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("expected detector construction to succeed, got %v", err)
	}

	start := time.Unix(100, 0)
	detector.Start(start)

	cadence := 100 * time.Millisecond
	levels := make([]float64, 40)
	for i := range levels {
		at := time.Duration(i) * cadence
		if at >= 1500*time.Millisecond && at < 2000*time.Millisecond {
			levels[i] = -20
		} else {
			levels[i] = -65
		}
	}
	feedSamples(detector, start, cadence, levels)

	if len(signals) != 1 {
		t.Fatalf("expected one stop signal, got %d", len(signals))
	}

	onset := signals[0].SpeechOnsetAt.Sub(start)
	if onset != 1500*time.Millisecond {
		t.Fatalf("expected speech onset at 1.5s, got %v", onset)
	}
}

func TestDetectorForceStop(t *testing.T) {
	signals := []Signal{}
	detector, err := NewDetector(func(signal Signal) { signals = append(signals, signal) })
	if err != nil {
		t.Fatalf("expected detector construction to succeed, got %v", err)
	}

	detector.Start(time.Unix(100, 0))
	detector.ForceStop()
	detector.ForceStop()

	if len(signals) != 1 {
		t.Fatalf("expected force stop to fire once, got %d", len(signals))
	}
}

func TestDetectorConfigurationValidation(t *testing.T) {
	if _, err := NewDetector(nil, WithSilenceDuration(0)); err == nil {
		t.Fatalf("expected zero silence duration to be rejected")
	}
	if _, err := NewDetector(nil, WithMinRecording(-time.Second)); err == nil {
		t.Fatalf("expected negative minimum recording to be rejected")
	}
	if _, err := NewDetector(nil, WithMinRecording(time.Minute), WithMaxRecording(time.Second)); err == nil {
		t.Fatalf("expected min >= max to be rejected")
	}
}
