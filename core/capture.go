package voicesession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kampanion/voice-core/core/audio"
)

const meteringWindow = 150 * time.Millisecond

// Recording is a finished capture. Ownership of the PCM passes to whoever
// receives it; the capture facade keeps nothing.
type Recording struct {
	PCM          []byte
	EncodingInfo audio.EncodingInfo
	StartedAt    time.Time
}

func (r *Recording) Duration() time.Duration {
	if r == nil {
		return 0
	}
	return r.EncodingInfo.DurationOf(len(r.PCM))
}

// audioCapture owns the microphone side of the shared audio resource. It
// buffers raw frames and feeds the metering stream; deciding when to stop is
// someone else's job.
type audioCapture struct {
	device CaptureDevice

	// blocked is the cross-resource guard, re-checked at the trigger site so
	// capture can never begin while the speaker is live.
	blocked func() bool

	mu        sync.Mutex
	recording bool
	pcm       []byte
	startedAt time.Time
	meter     *audio.Meter
}

func newAudioCapture(device CaptureDevice, blocked func() bool) *audioCapture {
	if blocked == nil {
		blocked = func() bool { return false }
	}
	return &audioCapture{device: device, blocked: blocked}
}

func (c *audioCapture) isRecording() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// start acquires the microphone and streams metering samples at a fixed
// cadence. The metering callback runs on the device's capture goroutine and
// must not block.
func (c *audioCapture) start(ctx context.Context, onSample func(audio.MeteringSample)) error {
	if c == nil || c.device == nil {
		return ErrNoAudioDevice
	}
	if c.blocked() {
		return ErrBusySpeaking
	}

	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return nil
	}
	c.recording = true
	c.pcm = nil
	c.startedAt = time.Now()
	c.meter = audio.NewMeter(meteringWindow, onSample)
	c.mu.Unlock()

	// Double check after flipping the flag; a playback start racing this
	// call must observe one side refuse.
	if c.blocked() {
		c.mu.Lock()
		c.recording = false
		c.mu.Unlock()
		return ErrBusySpeaking
	}

	if err := c.device.StartCapture(ctx, c.onFrame); err != nil {
		c.mu.Lock()
		c.recording = false
		c.mu.Unlock()
		if errors.Is(err, audio.ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("failed to start capture: %w", err)
	}
	return nil
}

func (c *audioCapture) onFrame(frame []byte) {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return
	}
	c.pcm = append(c.pcm, frame...)
	meter := c.meter
	c.mu.Unlock()

	meter.Push(frame)
}

// stop releases the microphone and hands back the recording. Returns nil
// when nothing was captured.
func (c *audioCapture) stop() (*Recording, error) {
	if c == nil || c.device == nil {
		return nil, nil
	}

	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return nil, nil
	}
	c.recording = false
	pcm := c.pcm
	startedAt := c.startedAt
	c.pcm = nil
	c.meter = nil
	c.mu.Unlock()

	if err := c.device.StopCapture(); err != nil {
		return nil, fmt.Errorf("failed to stop capture: %w", err)
	}

	if len(pcm) == 0 {
		return nil, nil
	}
	return &Recording{
		PCM:          pcm,
		EncodingInfo: c.device.EncodingInfo(),
		StartedAt:    startedAt,
	}, nil
}
