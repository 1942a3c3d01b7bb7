package audio

import (
	"sync"

	"github.com/rs/zerolog"
)

// InputDevice produces raw PCM16 bytes from an audio input. The
// concrete implementation owns the device handle; Stop must release
// it so repeated start/stop cycles do not leak.
type InputDevice interface {
	Start(onData func(pcm []byte)) error
	Stop() error
}

// FrameFunc receives one fixed-size PCM16 frame from the capturer.
type FrameFunc func(pcm []byte)

// Capture re-blocks whatever the input device delivers into frames of
// exactly FrameSamples samples and hands each frame to the callback.
type Capture struct {
	device  InputDevice
	onFrame FrameFunc
	log     zerolog.Logger

	mu      sync.Mutex
	pending []byte
	active  bool
}

// NewCapture creates a capturer over the given device. The callback is
// invoked once per full frame, in capture order.
func NewCapture(device InputDevice, onFrame FrameFunc, log zerolog.Logger) *Capture {
	return &Capture{
		device:  device,
		onFrame: onFrame,
		log:     log.With().Str("component", "capture").Logger(),
	}
}

// Start begins capturing. It reports success as a boolean so callers
// can degrade gracefully when the device is unavailable (permission
// denied, no microphone); the underlying error is logged. Starting
// while already active is a no-op reporting true.
func (c *Capture) Start() bool {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		c.log.Debug().Msg("Capture already active")
		return true
	}
	c.active = true
	c.pending = c.pending[:0]
	c.mu.Unlock()

	if err := c.device.Start(c.handleData); err != nil {
		c.log.Error().Err(err).Msg("Failed to start input device")
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		return false
	}
	c.log.Info().Int("frameSamples", FrameSamples).Msg("Microphone capture started")
	return true
}

// Stop releases the input device and discards any partial frame.
// Safe to call when not capturing.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.pending = nil
	c.mu.Unlock()

	if err := c.device.Stop(); err != nil {
		c.log.Error().Err(err).Msg("Failed to stop input device")
	}
	c.log.Info().Msg("Microphone capture stopped")
}

// IsCapturing reports whether the capturer is active.
func (c *Capture) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Capture) handleData(pcm []byte) {
	const frameBytes = FrameSamples * 2

	var frames [][]byte
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, pcm...)
	for len(c.pending) >= frameBytes {
		frame := make([]byte, frameBytes)
		copy(frame, c.pending[:frameBytes])
		c.pending = c.pending[frameBytes:]
		frames = append(frames, frame)
	}
	c.mu.Unlock()

	// Frames are emitted outside the lock, in capture order.
	for _, f := range frames {
		c.onFrame(f)
	}
}
