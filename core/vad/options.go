package vad

import (
	"fmt"
	"time"
)

const (
	DefaultSpeechThresholdDB = -30.0
	DefaultSilenceDuration   = 2 * time.Second
	DefaultMinRecording      = 800 * time.Millisecond
	DefaultMaxRecording      = 30 * time.Second
)

type options struct {
	speechThresholdDB float64
	silenceDuration   time.Duration
	minRecording      time.Duration
	maxRecording      time.Duration
}

func defaultOptions() options {
	return options{
		speechThresholdDB: DefaultSpeechThresholdDB,
		silenceDuration:   DefaultSilenceDuration,
		minRecording:      DefaultMinRecording,
		maxRecording:      DefaultMaxRecording,
	}
}

func (o options) validate() error {
	if o.silenceDuration <= 0 {
		return fmt.Errorf("silence duration must be positive, got %v", o.silenceDuration)
	}
	if o.minRecording <= 0 {
		return fmt.Errorf("minimum recording duration must be positive, got %v", o.minRecording)
	}
	if o.maxRecording <= 0 {
		return fmt.Errorf("maximum recording duration must be positive, got %v", o.maxRecording)
	}
	if o.minRecording >= o.maxRecording {
		return fmt.Errorf("minimum recording duration %v must be below the maximum %v", o.minRecording, o.maxRecording)
	}
	return nil
}

type Option func(*options)

// WithSpeechThresholdDB overrides the level above which a sample counts as
// speech. Levels are dBFS, so the value is expected to be negative.
func WithSpeechThresholdDB(threshold float64) Option {
	return func(o *options) { o.speechThresholdDB = threshold }
}

func WithSilenceDuration(duration time.Duration) Option {
	return func(o *options) { o.silenceDuration = duration }
}

func WithMinRecording(duration time.Duration) Option {
	return func(o *options) { o.minRecording = duration }
}

func WithMaxRecording(duration time.Duration) Option {
	return func(o *options) { o.maxRecording = duration }
}
