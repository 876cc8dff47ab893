package session

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/audiolens-backend/internal/audio"
	"github.com/yungbote/audiolens-backend/internal/domain"
	"github.com/yungbote/audiolens-backend/internal/recognition"
)

var tracer = otel.Tracer("github.com/yungbote/audiolens-backend/internal/session")

// Extractor resolves a video reference to a mono 16 kHz WAV path.
type Extractor interface {
	Extract(ctx context.Context, source string) (string, error)
}

// AudioStreamer feeds a WAV file into dst and closes dst when it returns.
type AudioStreamer interface {
	Stream(ctx context.Context, wavPath string, dst io.WriteCloser) error
}

type Deps struct {
	Extractor  Extractor
	Recognizer recognition.Client
	Streamer   AudioStreamer
}

// run drives one session from Idle to a terminal state.
func (c *Controller) run(s *Session, opts Options) {
	ctx, span := tracer.Start(s.ctx, "session.run")
	span.SetAttributes(attribute.String("session_id", s.ID.String()))
	defer span.End()

	log := c.log.With("session_id", s.ID.String())
	if !s.transition(domain.SessionConfiguring, nil) {
		return
	}

	fail := func(err *Error) {
		if s.ctx.Err() != nil {
			c.finishCanceled(s)
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(err.Kind))
		log.Warn("Session failed", "kind", err.Kind, "error", err.Error())
		s.transition(domain.SessionFailed, err)
	}

	if opts.TargetLanguage == "" {
		fail(newError(KindConfigurationFailure, nil, "target language is not configured"))
		return
	}
	if opts.SourceLanguage == "" && len(opts.Candidates) == 0 {
		fail(newError(KindConfigurationFailure, nil, "no source language and no detection candidates"))
		return
	}

	wavPath, err := c.stage(ctx, "session.extract", func(ctx context.Context) (string, error) {
		return c.deps.Extractor.Extract(ctx, s.Source)
	})
	if err != nil {
		fail(newError(KindExtractionFailure, err, "could not extract audio from %s", s.Source))
		return
	}

	lang := opts.SourceLanguage
	if lang == "" {
		lang, err = c.stage(ctx, "session.detect_language", func(ctx context.Context) (string, error) {
			return c.deps.Recognizer.DetectLanguage(ctx, wavPath, opts.Candidates)
		})
		if err != nil {
			fail(newError(KindDetectionFailure, err, "could not detect the spoken language"))
			return
		}
	}
	s.setSourceLanguage(lang)
	span.SetAttributes(attribute.String("source_language", lang), attribute.String("target_language", opts.TargetLanguage))

	stream, err := c.deps.Recognizer.StartContinuous(ctx, recognition.Config{Source: lang, Targets: []string{opts.TargetLanguage}})
	if err != nil {
		fail(newError(KindTranslationSetupFailure, err, "could not start translation from %s to %s", lang, opts.TargetLanguage))
		return
	}
	if !s.transition(domain.SessionStreaming, nil) {
		_ = stream.Audio.Close()
		return
	}
	log.Info("Session streaming", "source_language", lang, "target_language", opts.TargetLanguage)

	feedCtx, stopFeeding := context.WithCancel(ctx)
	defer stopFeeding()

	var g errgroup.Group
	g.Go(func() error {
		return c.deps.Streamer.Stream(feedCtx, wavPath, stream.Audio)
	})
	canceledBy := consume(s, stream.Events, opts.TargetLanguage, stopFeeding)
	stopFeeding()
	feedErr := g.Wait()

	switch {
	case s.ctx.Err() != nil:
		c.finishCanceled(s)
	case canceledBy != "":
		log.Warn("Recognition canceled", "reason", canceledBy)
		err := newError(KindStreamingCanceled, nil, "%s", canceledBy)
		err.Cause = CauseProvider
		s.transition(domain.SessionCanceled, err)
	case feedErr != nil && !isStopErr(feedErr):
		fail(newError(KindExtractionFailure, feedErr, "could not read extracted audio"))
	default:
		log.Info("Session completed", "segments", s.buffer.Len())
		s.transition(domain.SessionCompleted, nil)
	}
}

// consume applies events to the buffer until the channel closes. A
// cancellation event stops feeding and freezes the buffer; later events are
// drained without being applied. It returns the cancellation reason, if any.
func consume(s *Session, events <-chan domain.Event, target string, stopFeeding func()) string {
	var reason string
	for ev := range events {
		switch {
		case reason != "":
		case ev.Cancellation != nil:
			reason = ev.Cancellation.Reason
			if reason == "" {
				reason = "recognition canceled"
			}
			s.buffer.Freeze()
			stopFeeding()
		case ev.Recognition != nil:
			translated, _ := ev.Recognition.Translation(target)
			s.buffer.Append(ev.Recognition.Text, translated, ev.Recognition.Duration)
		}
	}
	return reason
}

func (c *Controller) finishCanceled(s *Session) {
	reason := s.canceledReason()
	if reason == "" {
		reason = "canceled"
	}
	err := newError(KindStreamingCanceled, nil, "%s", reason)
	err.Cause = CauseLocal
	s.transition(domain.SessionCanceled, err)
}

func (c *Controller) stage(ctx context.Context, name string, fn func(context.Context) (string, error)) (string, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return out, nil
}

func isStopErr(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, audio.ErrStreamAborted) ||
		errors.Is(err, audio.ErrStreamClosed)
}
