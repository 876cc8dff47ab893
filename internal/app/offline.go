package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/audiolens-backend/internal/captions"
	"github.com/yungbote/audiolens-backend/internal/domain"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"github.com/yungbote/audiolens-backend/internal/session"
)

type CaptionRequest struct {
	Source         string
	SourceLanguage string
	TargetLanguage string
	// Format is "vtt" or "srt".
	Format string
	Text   captions.TextKind
}

// CaptionFile runs one session with unthrottled audio and writes its captions
// to w.
func CaptionFile(ctx context.Context, log *logger.Logger, cfg Config, req CaptionRequest, w io.Writer) (session.Snapshot, error) {
	clients, err := wireClients(log, cfg)
	if err != nil {
		return session.Snapshot{}, err
	}
	defer clients.Close()
	return captionWith(ctx, log, wirePipeline(log, cfg, clients, false), cfg, req, w)
}

func captionWith(ctx context.Context, log *logger.Logger, deps session.Deps, cfg Config, req CaptionRequest, w io.Writer) (session.Snapshot, error) {
	write, err := exportFunc(req.Format)
	if err != nil {
		return session.Snapshot{}, err
	}

	ctrl := session.NewController(log, deps, sessionOptions(cfg))
	defer func() { _ = ctrl.Close(context.Background()) }()

	s, err := ctrl.Select(ctx, session.SelectRequest{
		Source:         req.Source,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
	})
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := s.Wait(ctx); err != nil {
		ctrl.Cancel("interrupted")
		return s.Snapshot(), err
	}

	snap := s.Snapshot()
	if snap.State == domain.SessionFailed {
		return snap, s.Err()
	}
	if err := write(w, s.Segments(), req.Text); err != nil {
		return snap, fmt.Errorf("write captions: %w", err)
	}
	// A canceled stream still yields the captions recognized before it ended.
	return snap, s.Err()
}

func exportFunc(format string) (func(io.Writer, []domain.CaptionSegment, captions.TextKind) error, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "vtt", "webvtt":
		return captions.WriteWebVTT, nil
	case "srt":
		return captions.WriteSRT, nil
	default:
		return nil, fmt.Errorf("unknown caption format %q (want vtt or srt)", format)
	}
}
