// Package media turns a user-selected video reference into a recognizer-ready
// WAV file.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/audiolens-backend/internal/platform/ctxutil"
	"github.com/yungbote/audiolens-backend/internal/platform/gcp"
	"github.com/yungbote/audiolens-backend/internal/platform/localmedia"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

var (
	ErrSourceRequired  = errors.New("video source required")
	ErrSourceNotFound  = errors.New("video source not found")
	ErrNoObjectStorage = errors.New("gs:// sources need object storage to be configured")
	ErrNoAudioTrack    = localmedia.ErrNoAudioTrack
)

// Downloader fetches remote sources into a local directory.
type Downloader interface {
	Download(ctx context.Context, gsURI string, dstDir string) (string, error)
}

type Extractor struct {
	log        *logger.Logger
	tools      localmedia.Tools
	downloader Downloader
}

// NewExtractor wires the ffmpeg tools with an optional downloader for gs://
// sources.
func NewExtractor(log *logger.Logger, tools localmedia.Tools, downloader Downloader) *Extractor {
	return &Extractor{log: log.With("service", "MediaExtractor"), tools: tools, downloader: downloader}
}

// Extract resolves source and returns the path of its mono 16 kHz WAV audio.
func (e *Extractor) Extract(ctx context.Context, source string) (string, error) {
	ctx = ctxutil.Default(ctx)
	videoPath, err := e.Resolve(ctx, source)
	if err != nil {
		return "", err
	}
	return e.tools.ExtractAudioFromVideo(ctx, videoPath, "", localmedia.AudioExtractOptions{SampleRateHz: 16000, Channels: 1})
}

// Resolve returns a local path for source, downloading gs:// objects first.
func (e *Extractor) Resolve(ctx context.Context, source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", ErrSourceRequired
	}
	if gcp.IsGSURI(source) {
		if e.downloader == nil {
			return "", ErrNoObjectStorage
		}
		local, err := e.downloader.Download(ctx, source, filepath.Join(e.tools.WorkDir(), "sources"))
		if err != nil {
			return "", fmt.Errorf("download %s: %w", source, err)
		}
		return local, nil
	}
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", source, ErrSourceNotFound)
		}
		return "", fmt.Errorf("stat %s: %w", source, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory: %w", source, ErrSourceNotFound)
	}
	return source, nil
}
