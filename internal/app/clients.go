package app

import (
	"fmt"

	"github.com/yungbote/audiolens-backend/internal/platform/gcp"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"github.com/yungbote/audiolens-backend/internal/platform/openai"
)

type Clients struct {
	Bucket gcp.BucketService
	Speech gcp.Speech
	OpenAI openai.Client
}

var newSpeech = gcp.NewSpeech

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Gcs
	bucket, err := resolveBucketService(log, cfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}

	// Gcp speech
	speech, err := newSpeech(log)
	if err != nil {
		if bucket != nil {
			_ = bucket.Close()
		}
		return Clients{}, fmt.Errorf("init speech client: %w", err)
	}

	// Openai
	oa, err := openai.NewClient(log, cfg.OpenAI)
	if err != nil {
		// Translation then covers only targets sharing the source language.
		log.Warn("OpenAI client disabled; captions will show no translation", "error", err)
		oa = nil
	}

	return Clients{Bucket: bucket, Speech: speech, OpenAI: oa}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Speech != nil {
		_ = c.Speech.Close()
	}
	if c.Bucket != nil {
		_ = c.Bucket.Close()
	}
}
