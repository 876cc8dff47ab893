package recognition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/audiolens-backend/internal/audio"
	"github.com/yungbote/audiolens-backend/internal/domain"
	"github.com/yungbote/audiolens-backend/internal/platform/ctxutil"
	"github.com/yungbote/audiolens-backend/internal/platform/gcp"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

// SpeechAPI is the slice of gcp.Speech this package needs.
type SpeechAPI interface {
	DetectLanguage(ctx context.Context, pcm []byte, cfg gcp.DetectConfig) (string, error)
	OpenStream(ctx context.Context, cfg gcp.StreamConfig) (gcp.UtteranceStream, error)
}

type Options struct {
	DetectionWindow time.Duration
	EventBuffer     int
	AudioQueue      int
	Punctuation     bool
}

type googleClient struct {
	log        *logger.Logger
	speech     SpeechAPI
	translator Translator
	opts       Options
}

// NewGoogleClient recognizes with Google Speech and translates each final
// utterance with translator. A nil translator leaves translations empty.
func NewGoogleClient(log *logger.Logger, speech SpeechAPI, translator Translator, opts Options) Client {
	if opts.DetectionWindow <= 0 {
		opts.DetectionWindow = 15 * time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 32
	}
	if opts.AudioQueue <= 0 {
		opts.AudioQueue = 64
	}
	return &googleClient{
		log:        log.With("service", "RecognitionClient"),
		speech:     speech,
		translator: translator,
		opts:       opts,
	}
}

func (c *googleClient) DetectLanguage(ctx context.Context, wavPath string, candidates []string) (string, error) {
	ctx = ctxutil.Default(ctx)
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	pcm, rate, err := audio.ReadPCMWindow(wavPath, c.opts.DetectionWindow)
	if err != nil {
		return "", fmt.Errorf("read detection window: %w", err)
	}
	lang, err := c.speech.DetectLanguage(ctx, pcm, gcp.DetectConfig{Candidates: candidates, SampleRateHertz: rate})
	if errors.Is(err, gcp.ErrNoSpeechDetected) || (err == nil && lang == "") {
		return "", ErrNoLanguageDetected
	}
	if err != nil {
		return "", err
	}
	c.log.Info("Source language detected", "language", lang, "candidates", strings.Join(candidates, ","))
	return lang, nil
}

func (c *googleClient) StartContinuous(ctx context.Context, cfg Config) (*Stream, error) {
	ctx = ctxutil.Default(ctx)
	if strings.TrimSpace(cfg.Source) == "" {
		return nil, ErrSourceRequired
	}
	us, err := c.speech.OpenStream(ctx, gcp.StreamConfig{
		LanguageCode:               cfg.Source,
		SampleRateHertz:            audio.SampleRate,
		EnableAutomaticPunctuation: c.opts.Punctuation,
	})
	if err != nil {
		return nil, err
	}

	push := audio.NewPushStream(c.opts.AudioQueue)
	events := make(chan domain.Event, c.opts.EventBuffer)

	go func() {
		defer close(events)
		defer push.Abort()

		err := us.Run(push.Chunks(), func(u gcp.Utterance) error {
			ev := domain.RecognitionEvent{
				Text:         u.Text,
				Translations: c.translate(ctx, u.Text, cfg),
				Duration:     domain.DurationToTicks(u.Duration),
			}
			return send(ctx, events, domain.Recognized(ev))
		})
		if err == nil || ctx.Err() != nil {
			return
		}
		reason := err.Error()
		var se *gcp.StreamError
		if errors.As(err, &se) {
			reason = fmt.Sprintf("%s: %s", se.Code, se.Message)
		}
		c.log.Warn("Recognition stream canceled", "source", cfg.Source, "reason", reason)
		_ = send(ctx, events, domain.Canceled(reason))
	}()

	return &Stream{Audio: push, Events: events}, nil
}

// send blocks until the event is queued so no recognition result is dropped.
func send(ctx context.Context, events chan<- domain.Event, ev domain.Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *googleClient) translate(ctx context.Context, text string, cfg Config) map[string]string {
	if len(cfg.Targets) == 0 || strings.TrimSpace(text) == "" {
		return nil
	}
	out := make(map[string]string, len(cfg.Targets))
	for _, target := range cfg.Targets {
		if samePrimary(cfg.Source, target) {
			out[target] = text
			continue
		}
		if c.translator == nil {
			continue
		}
		tr, err := c.translator.Translate(ctx, text, cfg.Source, target)
		if err != nil {
			c.log.Warn("Utterance translation failed", "source", cfg.Source, "target", target, "error", err)
			continue
		}
		out[target] = tr
	}
	return out
}

func samePrimary(a, b string) bool {
	pa, _, _ := strings.Cut(a, "-")
	pb, _, _ := strings.Cut(b, "-")
	return pa != "" && strings.EqualFold(pa, pb)
}
