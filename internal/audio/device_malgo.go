package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoDevice captures microphone input through miniaudio at the
// realtime API's sample rate (24 kHz mono S16). Echo cancellation and
// gain control are left to the operating system's input pipeline.
type MalgoDevice struct {
	sampleRate uint32

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewMalgoDevice creates an uninitialized capture device. The OS
// device handle is only acquired on Start.
func NewMalgoDevice() *MalgoDevice {
	return &MalgoDevice{sampleRate: SampleRate}
}

// Start acquires the default capture device and begins delivering raw
// PCM16 bytes to onData from the audio thread.
func (d *MalgoDevice) Start(onData func(pcm []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		return fmt.Errorf("capture device already started")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	config.SampleRate = d.sampleRate
	config.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			// The buffer is owned by the audio thread; copy before
			// handing it off.
			chunk := make([]byte, len(input))
			copy(chunk, input)
			onData(chunk)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, config, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("start capture device: %w", err)
	}

	d.ctx = ctx
	d.device = device
	return nil
}

// Stop releases the device and the audio context. Idempotent.
func (d *MalgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return nil
	}
	err := d.device.Stop()
	d.device.Uninit()
	d.device = nil
	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
	return err
}
