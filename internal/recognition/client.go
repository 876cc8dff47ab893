package recognition

import (
	"context"
	"errors"
	"io"

	"github.com/yungbote/audiolens-backend/internal/domain"
)

var (
	ErrNoLanguageDetected = errors.New("no language detected")
	ErrSourceRequired     = errors.New("source language required")
)

var DefaultCandidates = []string{"es-ES", "fr-FR", "zh-CN", "ja-JP"}

// Config selects the spoken language and the languages to translate into.
type Config struct {
	Source  string
	Targets []string
}

// Stream is a running continuous recognition. Audio accepts raw 16 kHz mono
// s16le PCM; closing it marks the end of input. Events is closed after the
// last event.
type Stream struct {
	Audio  io.WriteCloser
	Events <-chan domain.Event
}

type Client interface {
	DetectLanguage(ctx context.Context, wavPath string, candidates []string) (string, error)
	StartContinuous(ctx context.Context, cfg Config) (*Stream, error)
}

type Translator interface {
	Translate(ctx context.Context, text string, source string, target string) (string, error)
}
