// Package portaudio provides an alternative capture device for hosts where
// miniaudio is unavailable. Capture only; playback stays on the default
// device.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/kampanion/voice-core/core/audio"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in []int16

	mu      sync.Mutex
	onFrame func(frame []byte)
	running bool
	stopped chan struct{}
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(audio.DefaultSampleRate), bufferSize, in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
	}, nil
}

func (c *Client) StartCapture(ctx context.Context, onFrame func(frame []byte)) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}

	if err := c.stream.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
	}

	c.onFrame = onFrame
	c.running = true
	c.stopped = make(chan struct{})
	stopped := c.stopped
	c.mu.Unlock()

	go c.readLoop(ctx, stopped)
	return nil
}

func (c *Client) readLoop(ctx context.Context, stopped chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopped:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			continue
		}

		c.mu.Lock()
		onFrame := c.onFrame
		c.mu.Unlock()
		if onFrame == nil {
			continue
		}

		frame := bytes.Buffer{}
		binary.Write(&frame, binary.LittleEndian, c.in)
		onFrame(frame.Bytes())
	}
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}

	close(c.stopped)
	c.running = false
	c.onFrame = nil

	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	_ = c.StopCapture()
	c.stream.Close()
	portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
