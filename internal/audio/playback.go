package audio

import (
	"sync"

	"github.com/rs/zerolog"
)

// OutputDevice renders PCM16 audio. Play blocks until the chunk has
// finished (or Halt cut it off); Resume wakes a suspended output and
// must be safe to call unconditionally.
type OutputDevice interface {
	Play(pcm []byte) error
	Halt()
	Resume() error
	Close() error
}

// Player maintains a FIFO queue of PCM16 chunks and drains it with a
// single loop, each chunk played to completion before the next starts
// so utterance ordering is preserved.
type Player struct {
	device OutputDevice
	log    zerolog.Logger

	mu      sync.Mutex
	queue   [][]byte
	playing bool
	closed  bool
}

// NewPlayer creates a player over the given output device.
func NewPlayer(device OutputDevice, log zerolog.Logger) *Player {
	return &Player{
		device: device,
		log:    log.With().Str("component", "playback").Logger(),
	}
}

// Enqueue adds a chunk to the playback queue, starting the drain loop
// if it is not already running. The chunk is copied.
func (p *Player) Enqueue(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, chunk)
	start := !p.playing
	if start {
		p.playing = true
	}
	p.mu.Unlock()

	if start {
		go p.drain()
	}
}

func (p *Player) drain() {
	for {
		p.mu.Lock()
		if p.closed || len(p.queue) == 0 {
			p.playing = false
			p.mu.Unlock()
			return
		}
		chunk := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if err := p.device.Play(chunk); err != nil {
			p.log.Error().Err(err).Int("bytes", len(chunk)).Msg("Playback failed for chunk")
		}
	}
}

// Stop halts the chunk currently playing and clears the queue. Abrupt
// cutoff is expected for user-initiated barge-in.
func (p *Player) Stop() {
	p.mu.Lock()
	p.queue = nil
	p.mu.Unlock()
	p.device.Halt()
}

// Resume wakes the output device after platform auto-suspension.
// Idempotent; safe to call before every capture or playback start.
func (p *Player) Resume() error {
	return p.device.Resume()
}

// QueueLen reports the number of chunks waiting to play.
func (p *Player) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// IsPlaying reports whether the drain loop is active.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Close stops playback and releases the output device.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.queue = nil
	p.mu.Unlock()
	p.device.Halt()
	return p.device.Close()
}
