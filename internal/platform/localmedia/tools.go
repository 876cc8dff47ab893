package localmedia

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/audiolens-backend/internal/platform/ctxutil"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

var ErrNoAudioTrack = errors.New("no audio track found")

// Tools wraps the ffmpeg/ffprobe binaries needed to turn a video into
// recognizer-ready audio.
//
// REQUIRED BINARIES in the runtime image: ffmpeg, ffprobe.
type Tools interface {
	AssertReady(ctx context.Context) error
	HasAudioTrack(ctx context.Context, videoPath string) (bool, error)
	ExtractAudioFromVideo(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error)
	// AudioPathFor returns a stable work-dir path for the audio of videoPath.
	AudioPathFor(videoPath string) string
	WorkDir() string
}

type AudioExtractOptions struct {
	SampleRateHz int
	Channels     int
}

type Options struct {
	FFmpegPath     string
	FFprobePath    string
	WorkRoot       string
	DefaultTimeout time.Duration
}

type tools struct {
	log *logger.Logger

	ffmpegPath  string
	ffprobePath string
	workRoot    string

	defaultTimeout time.Duration
}

func New(log *logger.Logger, opts Options) Tools {
	t := &tools{
		log:            log.With("service", "MediaTools"),
		ffmpegPath:     opts.FFmpegPath,
		ffprobePath:    opts.FFprobePath,
		workRoot:       opts.WorkRoot,
		defaultTimeout: opts.DefaultTimeout,
	}
	if t.ffmpegPath == "" {
		t.ffmpegPath = "ffmpeg"
	}
	if t.ffprobePath == "" {
		t.ffprobePath = "ffprobe"
	}
	if t.workRoot == "" {
		t.workRoot = filepath.Join(os.TempDir(), "audiolens-media")
	}
	if t.defaultTimeout <= 0 {
		t.defaultTimeout = 10 * time.Minute
	}
	return t
}

func (m *tools) WorkDir() string { return m.workRoot }

func (m *tools) AssertReady(ctx context.Context) error {
	for _, bin := range []string{m.ffmpegPath, m.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return fmt.Errorf("create workRoot: %w", err)
	}
	return nil
}

func (m *tools) AudioPathFor(videoPath string) string {
	h := sha256.Sum256([]byte(videoPath))
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return filepath.Join(m.workRoot, fmt.Sprintf("%s_%s_16k.wav", base, hex.EncodeToString(h[:])[:8]))
}

func (m *tools) HasAudioTrack(ctx context.Context, videoPath string) (bool, error) {
	ctx = ctxutil.Default(ctx)
	if videoPath == "" {
		return false, fmt.Errorf("videoPath required")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		videoPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return false, fmt.Errorf("ffprobe failed: %w; out=%s", err, string(out))
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// ExtractAudioFromVideo writes the audio of videoPath to outPath (or
// AudioPathFor) as WAV. A previous extraction newer than the video is reused.
// ffmpeg writes to a temporary file that is renamed into place, so a
// canceled run never leaves a truncated WAV behind.
func (m *tools) ExtractAudioFromVideo(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error) {
	ctx = ctxutil.Default(ctx)
	if videoPath == "" {
		return "", fmt.Errorf("videoPath required")
	}
	if outPath == "" {
		outPath = m.AudioPathFor(videoPath)
	}
	if fresh(videoPath, outPath) {
		m.log.Debug("Reusing extracted audio", "video", videoPath, "audio", outPath)
		return outPath, nil
	}
	if err := m.AssertReady(ctx); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir outPath dir: %w", err)
	}

	hasAudio, err := m.HasAudioTrack(ctx, videoPath)
	if err != nil {
		return "", err
	}
	if !hasAudio {
		return "", fmt.Errorf("%s: %w", filepath.Base(videoPath), ErrNoAudioTrack)
	}

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	start := time.Now()
	partPath := outPath + ".part"
	defer os.Remove(partPath)
	out, err := exec.CommandContext(ctx, m.ffmpegPath, extractArgs(videoPath, partPath, opts)...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg extract audio failed: %w; out=%s", err, string(out))
	}
	if err := os.Rename(partPath, outPath); err != nil {
		return "", fmt.Errorf("audio output missing at %s: %w", outPath, err)
	}
	m.log.Info("Audio extracted", "video", videoPath, "audio", outPath, "duration_ms", time.Since(start).Milliseconds())
	return outPath, nil
}

// fresh reports whether outPath holds a non-empty extraction at least as new
// as videoPath.
func fresh(videoPath, outPath string) bool {
	vi, err := os.Stat(videoPath)
	if err != nil {
		return false
	}
	oi, err := os.Stat(outPath)
	if err != nil || oi.Size() == 0 {
		return false
	}
	return !oi.ModTime().Before(vi.ModTime())
}

// extractArgs builds an ffmpeg invocation producing mono 16 kHz s16le WAV.
func extractArgs(videoPath, outPath string, opts AudioExtractOptions) []string {
	sr := opts.SampleRateHz
	if sr <= 0 {
		sr = 16000
	}
	ch := opts.Channels
	if ch <= 0 {
		ch = 1
	}
	return []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", strconv.Itoa(ch),
		"-ar", strconv.Itoa(sr),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outPath,
	}
}
