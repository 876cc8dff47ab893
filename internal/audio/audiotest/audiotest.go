// Package audiotest writes WAV fixtures for tests.
package audiotest

import (
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes 16-bit samples into a WAV file under t.TempDir.
func WriteWAV(t testing.TB, samples []int, rate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	return path
}

// Ramp returns n samples of a repeating sawtooth.
func Ramp(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = (i % 2000) - 1000
	}
	return out
}

// Mono16k writes the given number of seconds of 16 kHz mono audio.
func Mono16k(t testing.TB, seconds float64) string {
	t.Helper()
	return WriteWAV(t, Ramp(int(seconds*16000)), 16000, 1)
}
