package audio

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoDevice renders PCM16 chunks through the speaker at the realtime
// API's sample rate (24 kHz mono S16LE).
type OtoDevice struct {
	ctx *oto.Context

	mu      sync.Mutex
	current *oto.Player
	halted  bool
}

// NewOtoDevice initializes the speaker context and waits for it to
// become ready.
func NewOtoDevice() (*OtoDevice, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms buffer keeps latency low without glitching.
		BufferSize: time.Millisecond * 100,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init speaker context: %w", err)
	}
	<-ready
	return &OtoDevice{ctx: ctx}, nil
}

// Play renders one chunk and blocks until it has finished playing or
// Halt cut it off.
func (d *OtoDevice) Play(pcm []byte) error {
	d.mu.Lock()
	if d.halted {
		d.halted = false
	}
	player := d.ctx.NewPlayer(bytes.NewReader(pcm))
	d.current = player
	d.mu.Unlock()

	player.Play()
	for player.IsPlaying() {
		time.Sleep(5 * time.Millisecond)
	}

	d.mu.Lock()
	if d.current == player {
		d.current = nil
	}
	d.mu.Unlock()
	return player.Close()
}

// Halt pauses the chunk currently playing, causing Play to return.
func (d *OtoDevice) Halt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halted = true
	if d.current != nil {
		d.current.Pause()
	}
}

// Resume wakes the audio context after suspension. Safe to call when
// already running.
func (d *OtoDevice) Resume() error {
	return d.ctx.Resume()
}

// Close suspends the context. oto contexts cannot be torn down, so
// suspension is the closest available release.
func (d *OtoDevice) Close() error {
	return d.ctx.Suspend()
}
