package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// SilenceFloorDB is the level reported for frames with no measurable energy.
// Anything at or below this is treated as digital silence.
const SilenceFloorDB = -90.0

// MeteringSample is a point-in-time loudness reading taken from the capture
// stream. Samples are ephemeral: they are handed to whoever is metering and
// never retained.
type MeteringSample struct {
	LevelDB   float64
	Timestamp time.Time
}

// LevelDB computes the RMS loudness of a linear16 little-endian frame in
// dBFS (0 dB is full scale, silence approaches [SilenceFloorDB]).
func LevelDB(frame []byte) float64 {
	sampleCount := len(frame) / 2
	if sampleCount == 0 {
		return SilenceFloorDB
	}

	var sumSquares float64
	for i := 0; i+1 < len(frame); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(frame[i:])))
		sumSquares += sample * sample
	}

	rms := math.Sqrt(sumSquares / float64(sampleCount))
	if rms < 1 {
		return SilenceFloorDB
	}

	level := 20 * math.Log10(rms/32768.0)
	return math.Max(level, SilenceFloorDB)
}

// Meter aggregates raw capture frames into fixed-cadence metering samples.
// Frames arrive at whatever period the device uses; Emit fires roughly once
// per window with the RMS level of the accumulated audio.
type Meter struct {
	window   time.Duration
	onSample func(MeteringSample)

	pending     []byte
	windowStart time.Time
	now         func() time.Time
}

// NewMeter creates a meter that emits one sample per window. A nil callback
// or non-positive window makes the meter a no-op.
func NewMeter(window time.Duration, onSample func(MeteringSample)) *Meter {
	return &Meter{
		window:   window,
		onSample: onSample,
		now:      time.Now,
	}
}

// Push appends a capture frame and emits a metering sample once a full
// window of audio has accumulated. It must be called from a single goroutine,
// which the device capture callback already guarantees.
func (m *Meter) Push(frame []byte) {
	if m == nil || m.onSample == nil || m.window <= 0 {
		return
	}

	now := m.now()
	if m.windowStart.IsZero() {
		m.windowStart = now
	}

	m.pending = append(m.pending, frame...)
	if now.Sub(m.windowStart) < m.window {
		return
	}

	m.onSample(MeteringSample{LevelDB: LevelDB(m.pending), Timestamp: now})
	m.pending = m.pending[:0]
	m.windowStart = now
}

// Reset drops any partially accumulated window.
func (m *Meter) Reset() {
	if m == nil {
		return
	}
	m.pending = m.pending[:0]
	m.windowStart = time.Time{}
}
