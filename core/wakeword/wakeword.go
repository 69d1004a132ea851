// Package wakeword adapts an externally provided wake-word engine to the
// voice session. The engine is a consumed capability; when none is installed
// the listener degrades to disabled and manual triggers remain the only way
// to start a turn.
package wakeword

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

const accessKeyEnv = "KAMPANION_WAKEWORD_ACCESS_KEY"

// Detection is one wake-word hit.
type Detection struct {
	Keyword string
	At      time.Time
}

// Engine is the capability surface a wake-word provider must expose.
type Engine interface {
	Start(onDetected func(Detection)) error
	Stop() error
}

type Listener struct {
	engine  Engine
	running atomic.Bool

	accessKey string
}

type ListenerOption func(*Listener)

// WithAccessKey overrides the engine access key read from the environment.
func WithAccessKey(accessKey string) ListenerOption {
	return func(l *Listener) { l.accessKey = accessKey }
}

// NewListener wraps an engine. A nil engine is valid and yields a disabled
// listener.
func NewListener(engine Engine, opts ...ListenerOption) *Listener {
	listener := &Listener{engine: engine}
	if accessKey, ok := os.LookupEnv(accessKeyEnv); ok {
		listener.accessKey = accessKey
	}
	for _, opt := range opts {
		opt(listener)
	}
	return listener
}

// Enabled reports whether a wake-word engine is actually available.
func (l *Listener) Enabled() bool {
	return l != nil && l.engine != nil
}

// AccessKey exposes the configured engine credential for providers that
// need it at startup.
func (l *Listener) AccessKey() string {
	if l == nil {
		return ""
	}
	return l.accessKey
}

// Start begins detection. Starting a disabled listener is a no-op, not an
// error.
func (l *Listener) Start(onDetected func(Detection)) error {
	if !l.Enabled() {
		return nil
	}
	if !l.running.CompareAndSwap(false, true) {
		return nil
	}

	if err := l.engine.Start(onDetected); err != nil {
		l.running.Store(false)
		return fmt.Errorf("failed to start wake-word engine: %w", err)
	}
	return nil
}

// Stop halts detection. Safe on a disabled or already stopped listener.
func (l *Listener) Stop() error {
	if !l.Enabled() {
		return nil
	}
	if !l.running.CompareAndSwap(true, false) {
		return nil
	}

	if err := l.engine.Stop(); err != nil {
		return fmt.Errorf("failed to stop wake-word engine: %w", err)
	}
	return nil
}
