package app

import (
	"github.com/facebookgo/clock"

	"github.com/yungbote/audiolens-backend/internal/audio"
	"github.com/yungbote/audiolens-backend/internal/media"
	"github.com/yungbote/audiolens-backend/internal/platform/localmedia"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"github.com/yungbote/audiolens-backend/internal/recognition"
	"github.com/yungbote/audiolens-backend/internal/session"
)

// wirePipeline builds the session collaborators. throttle=false feeds audio
// as fast as it can be read, for offline captioning.
func wirePipeline(log *logger.Logger, cfg Config, clients Clients, throttle bool) session.Deps {
	tools := localmedia.New(log, localmedia.Options{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		WorkRoot:    cfg.MediaWorkDir,
	})

	var downloader media.Downloader
	if clients.Bucket != nil {
		downloader = clients.Bucket
	}
	var translator recognition.Translator
	if clients.OpenAI != nil {
		translator = clients.OpenAI
	}

	streamCfg := audio.DefaultConfig()
	streamCfg.MaxLead = cfg.StreamMaxLead
	streamCfg.Throttle = throttle

	return session.Deps{
		Extractor: media.NewExtractor(log, tools, downloader),
		Recognizer: recognition.NewGoogleClient(log, clients.Speech, translator, recognition.Options{
			DetectionWindow: cfg.DetectionWindow,
			EventBuffer:     cfg.EventBuffer,
			Punctuation:     true,
		}),
		Streamer: audio.NewStreamer(log, clock.New(), streamCfg),
	}
}

func sessionOptions(cfg Config) session.Options {
	return session.Options{
		TargetLanguage: cfg.TargetLanguage,
		SourceLanguage: cfg.SourceLanguage,
		Candidates:     cfg.CandidateLanguages,
		Padding:        cfg.CaptionPadding,
	}
}
