package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/audiolens-backend/internal/captions"
	"github.com/yungbote/audiolens-backend/internal/observability"
	"github.com/yungbote/audiolens-backend/internal/platform/envutil"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"github.com/yungbote/audiolens-backend/internal/platform/openai"
	"github.com/yungbote/audiolens-backend/internal/playback"
	"github.com/yungbote/audiolens-backend/internal/recognition"
	"github.com/yungbote/audiolens-backend/internal/realtime/bus"
)

type Config struct {
	Port        string
	CORSOrigins []string

	TargetLanguage     string
	SourceLanguage     string
	CandidateLanguages []string
	CaptionPadding     float64
	PollInterval       time.Duration
	StreamMaxLead      time.Duration
	EventBuffer        int
	DetectionWindow    time.Duration

	MediaWorkDir string
	FFmpegPath   string
	FFprobePath  string

	ObjectStorageEnabled bool
	ObjectStorageMode    string
	StorageEmulatorHost  string

	DBDriver    string
	DatabaseDSN string

	RedisAddr    string
	RedisChannel string

	OpenAI openai.Config
	Otel   observability.OtelConfig
}

// LoadConfig reads .env files, then the YAML overlay named by
// AUDIOLENS_CONFIG, then the environment. Real environment variables always win
// over both files.
func LoadConfig(log *logger.Logger, envFiles ...string) (Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return Config{}, err
	}
	if path := envutil.String("AUDIOLENS_CONFIG", ""); path != "" {
		n, err := applyYAMLOverlay(path)
		if err != nil {
			return Config{}, err
		}
		if log != nil {
			log.Info("Config overlay applied", "path", path, "keys", n)
		}
	}

	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		CORSOrigins: envutil.CSV("CORS_ALLOW_ORIGINS", nil),

		TargetLanguage:     envutil.String("TARGET_LANGUAGE", "en-US"),
		SourceLanguage:     envutil.String("SOURCE_LANGUAGE", ""),
		CandidateLanguages: envutil.CSV("CANDIDATE_LANGUAGES", recognition.DefaultCandidates),
		CaptionPadding:     envutil.Float("CAPTION_PADDING_SECONDS", captions.DefaultPadding),
		PollInterval:       envutil.Millis("POLL_INTERVAL_MS", playback.DefaultCadence),
		StreamMaxLead:      envutil.Millis("STREAM_MAX_LEAD_MS", time.Second),
		EventBuffer:        envutil.Int("EVENT_BUFFER", 32),
		DetectionWindow:    time.Duration(envutil.Float("DETECTION_WINDOW_SECONDS", 15) * float64(time.Second)),

		MediaWorkDir: envutil.String("MEDIA_WORK_DIR", ""),
		FFmpegPath:   envutil.String("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:  envutil.String("FFPROBE_PATH", "ffprobe"),

		ObjectStorageEnabled: envutil.Bool("OBJECT_STORAGE_ENABLED", false),
		ObjectStorageMode:    envutil.String("OBJECT_STORAGE_MODE", ""),
		StorageEmulatorHost:  envutil.String("STORAGE_EMULATOR_HOST", ""),

		DBDriver:    envutil.String("DB_DRIVER", ""),
		DatabaseDSN: envutil.String("DATABASE_DSN", ""),

		RedisAddr:    envutil.String("REDIS_ADDR", ""),
		RedisChannel: envutil.String("REDIS_SSE_CHANNEL", bus.DefaultChannel),

		OpenAI: openai.ConfigFromEnv(),
		Otel:   observability.OtelConfigFromEnv(),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.TargetLanguage) == "" {
		errs = append(errs, errors.New("TARGET_LANGUAGE must not be empty"))
	}
	if c.SourceLanguage == "" && len(c.CandidateLanguages) == 0 {
		errs = append(errs, errors.New("CANDIDATE_LANGUAGES must list at least one language when SOURCE_LANGUAGE is unset"))
	}
	if c.CaptionPadding < 0 {
		errs = append(errs, fmt.Errorf("CAPTION_PADDING_SECONDS must be >= 0, got %v", c.CaptionPadding))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL_MS must be > 0"))
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, errors.New("EVENT_BUFFER must be > 0"))
	}
	if c.DetectionWindow <= 0 {
		errs = append(errs, errors.New("DETECTION_WINDOW_SECONDS must be > 0"))
	}
	return errors.Join(errs...)
}

// loadDotEnv loads the given files, or ./.env when none are given. Missing
// files are ignored.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// applyYAMLOverlay sets every KEY: value pair of a flat YAML file that is not
// already in the environment. It returns how many keys it set.
func applyYAMLOverlay(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read config overlay: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return 0, fmt.Errorf("parse config overlay %s: %w", path, err)
	}
	n := 0
	for key, val := range values {
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		var s string
		switch v := val.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				parts = append(parts, fmt.Sprint(p))
			}
			s = strings.Join(parts, ",")
		default:
			s = fmt.Sprint(v)
		}
		if err := os.Setenv(key, s); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
