// Package audio bridges the microphone and speaker devices to the
// PCM16 wire format used by the realtime voice link.
package audio
