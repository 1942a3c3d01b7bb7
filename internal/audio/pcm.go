package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// SampleRate is the sample rate the realtime voice API expects, for
// both capture and playback.
const SampleRate = 24000

// FrameSamples is the number of samples per capture frame.
const FrameSamples = 4096

// Float32ToPCM16 converts float samples in [-1, 1] to little-endian
// signed 16-bit PCM. Samples are clamped first. Negative samples scale
// by 0x8000 and non-negative by 0x7fff; the asymmetry matches the
// voice provider's convention and must not be "fixed".
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7fff)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat32 converts little-endian signed 16-bit PCM back to
// float samples, using the same asymmetric divisors as
// Float32ToPCM16. The round trip is lossy by up to one quantization
// step near the boundaries.
func PCM16ToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm16 buffer has odd length %d", len(pcm))
	}
	out := make([]float32, len(pcm)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 0x8000
		} else {
			out[i] = float32(v) / 0x7fff
		}
	}
	return out, nil
}

// EncodeBase64 encodes raw audio bytes for transport inside JSON
// protocol messages.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes base64 audio received in a protocol message.
// Malformed input returns an error rather than truncated output.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64 audio: %w", err)
	}
	return data, nil
}
