package audio

import (
	"bytes"
	"math"
	"testing"
)

func TestFloat32ToPCM16_KnownValues(t *testing.T) {
	cases := []struct {
		name   string
		sample float32
		want   int16
	}{
		{"silence", 0, 0},
		{"full positive", 1.0, 32767},
		{"full negative", -1.0, -32768},
		{"half positive", 0.5, 16383},
		{"half negative", -0.5, -16384},
		{"clamped above", 2.0, 32767},
		{"clamped below", -2.0, -32768},
	}

	for _, tc := range cases {
		pcm := Float32ToPCM16([]float32{tc.sample})
		if len(pcm) != 2 {
			t.Fatalf("%s: expected 2 bytes, got %d", tc.name, len(pcm))
		}
		got := int16(uint16(pcm[0]) | uint16(pcm[1])<<8)
		if got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestFloat32ToPCM16_AsymmetricScaling(t *testing.T) {
	// -1.0 and +1.0 must NOT map to values of equal magnitude; the
	// negative side scales by 0x8000 and the positive by 0x7fff.
	neg := Float32ToPCM16([]float32{-1.0})
	pos := Float32ToPCM16([]float32{1.0})

	negVal := int(int16(uint16(neg[0]) | uint16(neg[1])<<8))
	posVal := int(int16(uint16(pos[0]) | uint16(pos[1])<<8))

	if negVal != -32768 {
		t.Errorf("expected -32768 for -1.0, got %d", negVal)
	}
	if posVal != 32767 {
		t.Errorf("expected 32767 for 1.0, got %d", posVal)
	}
	if -negVal != posVal+1 {
		t.Errorf("expected magnitudes one LSB apart, got %d and %d", negVal, posVal)
	}
}

func TestPCM16RoundTrip_WithinOneQuantizationStep(t *testing.T) {
	samples := make([]float32, 0, 2048)
	for i := 0; i < 2001; i++ {
		samples = append(samples, float32(i-1000)/1000.0)
	}
	samples = append(samples, -1, 1, -0.999, 0.999, 0)

	pcm := Float32ToPCM16(samples)
	back, err := PCM16ToFloat32(pcm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(back) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(back))
	}

	const step = 1.0 / 32767.0
	for i, orig := range samples {
		diff := math.Abs(float64(back[i]) - float64(orig))
		if diff > step {
			t.Errorf("sample %d: round-trip error %g exceeds one step (orig=%g got=%g)",
				i, diff, orig, back[i])
		}
	}
}

func TestPCM16ToFloat32_OddLength(t *testing.T) {
	if _, err := PCM16ToFloat32([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Error("expected error for odd-length buffer")
	}
}

func TestBase64RoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0},
		{0xff, 0x00, 0x7f, 0x80},
		bytes.Repeat([]byte{0xab, 0xcd}, 1024),
	}

	for _, data := range cases {
		encoded := EncodeBase64(data)
		decoded, err := DecodeBase64(encoded)
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		if !bytes.Equal(decoded, data) {
			t.Errorf("round trip mismatch for %d bytes", len(data))
		}
	}
}

func TestBase64RoundTrip_LargeBuffer(t *testing.T) {
	// >1MB of varied bytes; must round-trip exactly and without
	// blowing the stack.
	data := make([]byte, 2<<20)
	for i := range data {
		data[i] = byte(i * 31)
	}

	decoded, err := DecodeBase64(EncodeBase64(data))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("large buffer round trip mismatch")
	}
}

func TestDecodeBase64_Malformed(t *testing.T) {
	if _, err := DecodeBase64("not!!valid@@base64"); err == nil {
		t.Error("expected error for malformed base64")
	}
}
