package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/audiolens-backend/internal/platform/ctxutil"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

var ErrNoSpeechDetected = errors.New("no speech detected")

type Speech interface {
	// DetectLanguage recognizes a short LINEAR16 clip against the candidate
	// languages and returns the candidate the provider picked.
	DetectLanguage(ctx context.Context, pcm []byte, cfg DetectConfig) (string, error)
	// OpenStream opens a streaming recognition call and sends its config.
	OpenStream(ctx context.Context, cfg StreamConfig) (UtteranceStream, error)
	Close() error
}

// UtteranceStream is an open recognition call.
type UtteranceStream interface {
	// Run sends audio chunks until the channel closes and calls emit for every
	// final result. It returns nil once the provider ends the stream normally;
	// any other provider failure is returned as *StreamError.
	Run(audio <-chan []byte, emit func(Utterance) error) error
}

type DetectConfig struct {
	Candidates      []string
	SampleRateHertz int
}

type StreamConfig struct {
	LanguageCode               string
	SampleRateHertz            int
	EnableAutomaticPunctuation bool
}

// Utterance is one final recognition result. Offset is the result's end time
// relative to the start of the audio.
type Utterance struct {
	Text     string
	Language string
	Offset   time.Duration
	Duration time.Duration
}

// StreamError reports a stream the provider terminated.
type StreamError struct {
	Code    codes.Code
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("speech stream canceled: %s: %s", e.Code, e.Message)
}

type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type speechAPI interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	StreamingRecognize(ctx context.Context) (recognizeStream, error)
	Close() error
}

type clientAPI struct{ c *speech.Client }

func (a clientAPI) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return a.c.Recognize(ctx, req)
}

func (a clientAPI) StreamingRecognize(ctx context.Context) (recognizeStream, error) {
	return a.c.StreamingRecognize(ctx)
}

func (a clientAPI) Close() error { return a.c.Close() }

type speechService struct {
	log        *logger.Logger
	api        speechAPI
	maxRetries int
	backoff    time.Duration
}

func NewSpeech(log *logger.Logger) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := speech.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return newSpeechService(log, clientAPI{c: c}), nil
}

func newSpeechService(log *logger.Logger, api speechAPI) *speechService {
	return &speechService{
		log:        log.With("service", "gcp.Speech"),
		api:        api,
		maxRetries: 4,
		backoff:    750 * time.Millisecond,
	}
}

func (s *speechService) Close() error {
	if s == nil || s.api == nil {
		return nil
	}
	return s.api.Close()
}

func (s *speechService) DetectLanguage(ctx context.Context, pcm []byte, cfg DetectConfig) (string, error) {
	ctx = ctxutil.Default(ctx)
	if len(cfg.Candidates) == 0 {
		return "", fmt.Errorf("at least one candidate language required")
	}
	if len(pcm) == 0 {
		return "", ErrNoSpeechDetected
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                 speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:          int32(sampleRateOrDefault(cfg.SampleRateHertz)),
			AudioChannelCount:        1,
			LanguageCode:             cfg.Candidates[0],
			AlternativeLanguageCodes: cfg.Candidates[1:],
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm}},
	}
	resp, err := retryCall(ctx, s, func() (*speechpb.RecognizeResponse, error) {
		return s.api.Recognize(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", err)
	}
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 || strings.TrimSpace(r.GetAlternatives()[0].GetTranscript()) == "" {
			continue
		}
		lang := matchCandidate(r.GetLanguageCode(), cfg.Candidates)
		s.log.Debug("Language detected", "language", lang, "provider_code", r.GetLanguageCode())
		return lang, nil
	}
	return "", ErrNoSpeechDetected
}

// matchCandidate maps the provider's (often lower-cased) tag back onto the
// caller's spelling.
func matchCandidate(code string, candidates []string) string {
	for _, c := range candidates {
		if strings.EqualFold(c, code) {
			return c
		}
	}
	primary, _, _ := strings.Cut(code, "-")
	for _, c := range candidates {
		cp, _, _ := strings.Cut(c, "-")
		if primary != "" && strings.EqualFold(cp, primary) {
			return c
		}
	}
	return code
}

func (s *speechService) OpenStream(ctx context.Context, cfg StreamConfig) (UtteranceStream, error) {
	ctx = ctxutil.Default(ctx)
	if cfg.LanguageCode == "" {
		return nil, fmt.Errorf("language code required")
	}
	ctx, cancel := context.WithCancel(ctx)

	stream, err := retryCall(ctx, s, func() (recognizeStream, error) {
		return s.api.StreamingRecognize(ctx)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open speech stream: %w", err)
	}
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(sampleRateOrDefault(cfg.SampleRateHertz)),
					AudioChannelCount:          1,
					LanguageCode:               cfg.LanguageCode,
					EnableWordTimeOffsets:      true,
					EnableAutomaticPunctuation: cfg.EnableAutomaticPunctuation,
				},
			},
		},
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}
	return &utteranceStream{log: s.log, ctx: ctx, cancel: cancel, stream: stream}, nil
}

type utteranceStream struct {
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
	stream recognizeStream
}

func (u *utteranceStream) Run(audio <-chan []byte, emit func(Utterance) error) error {
	ctx := u.ctx
	defer u.cancel()

	sendDone := make(chan error, 1)
	go func() {
		sendDone <- pumpAudio(ctx, u.stream, audio)
	}()

	var prevEnd time.Duration
	for {
		resp, err := u.stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			st := status.Convert(err)
			return &StreamError{Code: st.Code(), Message: st.Message()}
		}
		if e := resp.GetError(); e != nil {
			return &StreamError{Code: codes.Code(e.GetCode()), Message: e.GetMessage()}
		}
		for _, r := range resp.GetResults() {
			if !r.GetIsFinal() {
				continue
			}
			utt, ok := utteranceFromResult(r, prevEnd)
			if r.GetResultEndTime() != nil {
				prevEnd = r.GetResultEndTime().AsDuration()
			}
			if !ok {
				continue
			}
			if err := emit(utt); err != nil {
				return err
			}
		}
	}
	if err := <-sendDone; err != nil && ctx.Err() == nil {
		u.log.Warn("Speech audio pump ended with error", "error", err)
	}
	return nil
}

func pumpAudio(ctx context.Context, stream recognizeStream, audio <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-audio:
			if !ok {
				return stream.CloseSend()
			}
			if len(chunk) == 0 {
				continue
			}
			if err := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
			}); err != nil {
				return err
			}
		}
	}
}

// utteranceFromResult uses the word span when word offsets are present and
// falls back to the distance from the previous result's end.
func utteranceFromResult(r *speechpb.StreamingRecognitionResult, prevEnd time.Duration) (Utterance, bool) {
	if len(r.GetAlternatives()) == 0 {
		return Utterance{}, false
	}
	alt := r.GetAlternatives()[0]
	text := strings.TrimSpace(alt.GetTranscript())
	if text == "" {
		return Utterance{}, false
	}
	end := durOf(r.GetResultEndTime())
	u := Utterance{Text: text, Language: r.GetLanguageCode(), Offset: end}

	if words := alt.GetWords(); len(words) > 0 {
		first, last := words[0], words[len(words)-1]
		u.Duration = durOf(last.GetEndTime()) - durOf(first.GetStartTime())
	} else {
		u.Duration = end - prevEnd
	}
	if u.Duration < 0 {
		u.Duration = 0
	}
	return u, true
}

func durOf(d *durationpb.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return d.AsDuration()
}

func sampleRateOrDefault(hz int) int {
	if hz <= 0 {
		return 16000
	}
	return hz
}

func retryCall[T any](ctx context.Context, s *speechService, fn func() (T, error)) (T, error) {
	var zero T
	backoff := s.backoff
	var last error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return zero, err
		}
		if attempt == s.maxRetries {
			break
		}
		s.log.Warn("Speech call failed, retrying", "attempt", attempt+1, "code", code.String())
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return zero, last
}
