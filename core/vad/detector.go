// Package vad decides when a voice capture should stop, using only the
// metering stream. It never touches the microphone itself.
package vad

import (
	"fmt"
	"time"

	"github.com/kampanion/voice-core/core/audio"
)

type StopReason string

const (
	// StopReasonSilence fires after speech was heard and then a full silence
	// window elapsed.
	StopReasonSilence StopReason = "silence"
	// StopReasonMaxDuration fires when the recording hits the safety ceiling,
	// speech or not.
	StopReasonMaxDuration StopReason = "max-duration"
)

// Signal is the one-shot outcome of a detection run.
type Signal struct {
	Reason         StopReason
	SpeechDetected bool
	SpeechOnsetAt  time.Time
}

// Detector watches metering samples for one capture and fires its stop
// callback exactly once. It is not reusable across captures; make a new one
// per recording (or call Restart).
//
// Observe is expected to be called from the metering callback, which is
// single-goroutine; the detector holds no locks.
type Detector struct {
	speechThresholdDB float64
	silenceDuration   time.Duration
	minRecording      time.Duration
	maxRecording      time.Duration

	onStop func(Signal)

	startedAt      time.Time
	lastSoundAt    time.Time
	speechOnsetAt  time.Time
	speechDetected bool
	latched        bool
}

func NewDetector(onStop func(Signal), opts ...Option) (*Detector, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid voice activity configuration: %w", err)
	}

	if onStop == nil {
		onStop = func(Signal) {}
	}

	return &Detector{
		speechThresholdDB: options.speechThresholdDB,
		silenceDuration:   options.silenceDuration,
		minRecording:      options.minRecording,
		maxRecording:      options.maxRecording,
		onStop:            onStop,
	}, nil
}

// Start anchors the detection clock to the moment capture began.
func (d *Detector) Start(at time.Time) {
	d.startedAt = at
	d.lastSoundAt = at
	d.speechOnsetAt = time.Time{}
	d.speechDetected = false
	d.latched = false
}

// Restart rearms a latched detector for a fresh capture.
func (d *Detector) Restart(at time.Time) { d.Start(at) }

// SpeechDetected reports whether any sample crossed the speech threshold.
func (d *Detector) SpeechDetected() bool { return d.speechDetected }

// Latched reports whether the stop signal already fired.
func (d *Detector) Latched() bool { return d.latched }

// ForceStop latches immediately, used when the user signals "I'm done
// talking" before the silence window elapses.
func (d *Detector) ForceStop() {
	d.fire(StopReasonSilence)
}

// Observe classifies one metering sample. After the latch trips, further
// samples are ignored; the first firing wins.
func (d *Detector) Observe(sample audio.MeteringSample) {
	if d.latched {
		return
	}
	if d.startedAt.IsZero() {
		d.Start(sample.Timestamp)
	}

	if sample.LevelDB > d.speechThresholdDB {
		if !d.speechDetected {
			d.speechDetected = true
			d.speechOnsetAt = sample.Timestamp
		}
		d.lastSoundAt = sample.Timestamp
	}

	elapsed := sample.Timestamp.Sub(d.startedAt)
	if elapsed >= d.maxRecording {
		d.fire(StopReasonMaxDuration)
		return
	}

	if !d.speechDetected || elapsed < d.minRecording {
		return
	}

	if sample.Timestamp.Sub(d.lastSoundAt) > d.silenceDuration {
		d.fire(StopReasonSilence)
	}
}

func (d *Detector) fire(reason StopReason) {
	if d.latched {
		return
	}
	d.latched = true
	d.onStop(Signal{
		Reason:         reason,
		SpeechDetected: d.speechDetected,
		SpeechOnsetAt:  d.speechOnsetAt,
	})
}
