package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/yungbote/audiolens-backend/internal/app"
	"github.com/yungbote/audiolens-backend/internal/captions"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

type globals struct {
	LogMode string   `env:"LOG_MODE" default:"development" enum:"development,production,test" help:"Logger mode."`
	EnvFile []string `name:"env-file" type:"path" help:"Extra .env files to load before the environment."`
}

type captionCmd struct {
	Video          string `arg:"" help:"Local path or gs:// URI of the video."`
	Format         string `short:"f" default:"vtt" enum:"vtt,webvtt,srt" help:"Output format."`
	Text           string `short:"t" default:"translated" enum:"translated,detected" help:"Which text to write."`
	SourceLanguage string `short:"s" help:"Skip detection and recognize in this language."`
	TargetLanguage string `short:"l" help:"Translation target, defaults to TARGET_LANGUAGE."`
	Out            string `short:"o" type:"path" help:"Output file, stdout when empty."`
}

func (c *captionCmd) Run(ctx context.Context, log *logger.Logger, g *globals) error {
	cfg, err := app.LoadConfig(log, g.EnvFile...)
	if err != nil {
		return err
	}
	kind, err := captions.ParseTextKind(c.Text)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if c.Out != "" {
		f, err := os.Create(c.Out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	snap, err := app.CaptionFile(ctx, log, cfg, app.CaptionRequest{
		Source:         c.Video,
		SourceLanguage: c.SourceLanguage,
		TargetLanguage: c.TargetLanguage,
		Format:         c.Format,
		Text:           kind,
	}, w)
	log.Info("Caption run finished",
		"session_id", snap.ID,
		"state", snap.State,
		"source_language", snap.SourceLanguage,
	)
	return err
}

// The HTTP service is started by cmd/main.go; this binary only runs offline
// jobs against the same config.
var cli struct {
	globals

	Caption captionCmd `cmd:"" help:"Caption a single video and write VTT or SRT."`
}

func newParser() (*kong.Kong, error) {
	return kong.New(&cli,
		kong.Name("audiolens"),
		kong.Description("Offline captioning for video files."),
		kong.UsageOnError(),
	)
}

func main() {
	parser, err := newParser()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build CLI: %v\n", err)
		os.Exit(1)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	log, err := logger.New(cli.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.FatalIfErrorf(kctx.Run(log, &cli.globals))
}
