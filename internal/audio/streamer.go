// Package audio feeds extracted PCM audio to a live recognition stream at
// roughly playback pace.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/facebookgo/clock"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/yungbote/audiolens-backend/internal/platform/ctxutil"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

const (
	SampleRate = 16000
	BitDepth   = 16
	Channels   = 1
)

var ErrUnsupportedFormat = errors.New("audio must be 16-bit mono PCM WAV")

type Config struct {
	ChunkDuration time.Duration
	// MaxLead bounds how far a chunk's presentation time may run ahead of the
	// wall-clock time elapsed since streaming started.
	MaxLead  time.Duration
	Throttle bool
}

func DefaultConfig() Config {
	return Config{ChunkDuration: 100 * time.Millisecond, MaxLead: time.Second, Throttle: true}
}

type Streamer struct {
	log   *logger.Logger
	clock clock.Clock
	cfg   Config
}

func NewStreamer(log *logger.Logger, clk clock.Clock, cfg Config) *Streamer {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = 100 * time.Millisecond
	}
	if cfg.MaxLead < 0 {
		cfg.MaxLead = 0
	}
	return &Streamer{log: log.With("service", "AudioStreamer"), clock: clk, cfg: cfg}
}

// ThrottleDelay returns how long to wait before pushing a chunk with the given
// presentation timestamp so that it is at most maxLead ahead of elapsed.
func ThrottleDelay(pts, elapsed, maxLead time.Duration) time.Duration {
	ahead := pts - elapsed
	if ahead <= maxLead {
		return 0
	}
	return ahead - maxLead
}

// Stream pushes the PCM samples of wavPath into dst and closes dst when feeding
// stops, whether the file is exhausted, ctx is canceled or a write fails.
func (s *Streamer) Stream(ctx context.Context, wavPath string, dst io.WriteCloser) error {
	ctx = ctxutil.Default(ctx)
	defer dst.Close()

	f, err := os.Open(wavPath)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("%s: %w", wavPath, ErrUnsupportedFormat)
	}
	if dec.BitDepth != BitDepth || dec.NumChans != Channels || dec.SampleRate == 0 {
		return fmt.Errorf("%s: %d-bit %d-channel: %w", wavPath, dec.BitDepth, dec.NumChans, ErrUnsupportedFormat)
	}
	rate := int(dec.SampleRate)

	perChunk := int(int64(rate) * int64(s.cfg.ChunkDuration) / int64(time.Second))
	if perChunk <= 0 {
		perChunk = 1
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: rate},
		Data:           make([]int, perChunk),
		SourceBitDepth: BitDepth,
	}
	out := make([]byte, perChunk*2)

	start := s.clock.Now()
	var sent int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := dec.PCMBuffer(buf)
		if n > len(buf.Data) {
			n = len(buf.Data)
		}
		if n == 0 {
			if rerr != nil && !errors.Is(rerr, io.EOF) {
				return fmt.Errorf("read pcm: %w", rerr)
			}
			break
		}

		if s.cfg.Throttle {
			pts := time.Duration(sent) * time.Second / time.Duration(rate)
			if d := ThrottleDelay(pts, s.clock.Now().Sub(start), s.cfg.MaxLead); d > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-s.clock.After(d):
				}
			}
		}

		for i, v := range buf.Data[:n] {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
		}
		if _, err := dst.Write(out[:2*n]); err != nil {
			return fmt.Errorf("push audio: %w", err)
		}
		sent += int64(n)

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return fmt.Errorf("read pcm: %w", rerr)
		}
	}

	s.log.Debug("Audio streaming completed", "samples", sent, "seconds", float64(sent)/float64(rate))
	return nil
}

// ReadPCMWindow returns up to window of raw little-endian PCM from the start of
// a 16-bit mono WAV, for one-shot recognition requests.
func ReadPCMWindow(wavPath string, window time.Duration) ([]byte, int, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, 0, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: %w", wavPath, ErrUnsupportedFormat)
	}
	if dec.BitDepth != BitDepth || dec.NumChans != Channels || dec.SampleRate == 0 {
		return nil, 0, fmt.Errorf("%s: %w", wavPath, ErrUnsupportedFormat)
	}
	rate := int(dec.SampleRate)
	want := int(int64(rate) * int64(window) / int64(time.Second))
	if want <= 0 {
		return nil, rate, nil
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: rate},
		Data:           make([]int, 4096),
		SourceBitDepth: BitDepth,
	}
	pcm := make([]byte, 0, want*2)
	for len(pcm) < want*2 {
		n, rerr := dec.PCMBuffer(buf)
		if n > len(buf.Data) {
			n = len(buf.Data)
		}
		for _, v := range buf.Data[:n] {
			if len(pcm) >= want*2 {
				break
			}
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(v)))
		}
		if n == 0 || rerr != nil {
			if rerr != nil && !errors.Is(rerr, io.EOF) {
				return nil, rate, fmt.Errorf("read pcm: %w", rerr)
			}
			break
		}
	}
	return pcm, rate, nil
}
