package gcp

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

type fakeStream struct {
	mu        sync.Mutex
	sent      []*speechpb.StreamingRecognizeRequest
	closed    chan struct{}
	responses []*speechpb.StreamingRecognizeResponse
	finalErr  error
}

func newFakeStream(responses []*speechpb.StreamingRecognizeResponse, finalErr error) *fakeStream {
	return &fakeStream{closed: make(chan struct{}), responses: responses, finalErr: finalErr}
}

func (f *fakeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return nil
}

// Recv replays responses only after the client has closed its send side.
func (f *fakeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	<-f.closed
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		if f.finalErr != nil {
			return nil, f.finalErr
		}
		return nil, io.EOF
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

func (f *fakeStream) CloseSend() error {
	close(f.closed)
	return nil
}

type fakeSpeechAPI struct {
	stream     *fakeStream
	recognize  func(*speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	recognizeN int
}

func (f *fakeSpeechAPI) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	f.recognizeN++
	return f.recognize(req)
}

func (f *fakeSpeechAPI) StreamingRecognize(ctx context.Context) (recognizeStream, error) {
	return f.stream, nil
}

func (f *fakeSpeechAPI) Close() error { return nil }

func dur(d time.Duration) *durationpb.Duration { return durationpb.New(d) }

func finalResult(text string, end time.Duration, words ...[2]time.Duration) *speechpb.StreamingRecognitionResult {
	alt := &speechpb.SpeechRecognitionAlternative{Transcript: text}
	for _, w := range words {
		alt.Words = append(alt.Words, &speechpb.WordInfo{StartTime: dur(w[0]), EndTime: dur(w[1])})
	}
	return &speechpb.StreamingRecognitionResult{
		Alternatives:  []*speechpb.SpeechRecognitionAlternative{alt},
		IsFinal:       true,
		ResultEndTime: dur(end),
		LanguageCode:  "es-es",
	}
}

func feed(chunks ...[]byte) <-chan []byte {
	ch := make(chan []byte, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func TestUtteranceStreamEmitsFinalResults(t *testing.T) {
	stream := newFakeStream([]*speechpb.StreamingRecognizeResponse{
		{Results: []*speechpb.StreamingRecognitionResult{{
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "Hol"}},
		}}},
		{Results: []*speechpb.StreamingRecognitionResult{finalResult("Hola", 2*time.Second,
			[2]time.Duration{500 * time.Millisecond, 900 * time.Millisecond},
			[2]time.Duration{time.Second, 1800 * time.Millisecond},
		)}},
		{Results: []*speechpb.StreamingRecognitionResult{finalResult("Adiós", 5*time.Second)}},
	}, nil)
	svc := newSpeechService(logger.Nop(), &fakeSpeechAPI{stream: stream})

	var got []Utterance
	us, err := svc.OpenStream(context.Background(), StreamConfig{LanguageCode: "es-ES"})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	err = us.Run(feed([]byte{1, 2}, nil, []byte{3}), func(u Utterance) error {
		got = append(got, u)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("utterances: want=2 got=%d (%+v)", len(got), got)
	}
	if got[0].Text != "Hola" || got[0].Duration != 1300*time.Millisecond {
		t.Fatalf("word span duration: %+v", got[0])
	}
	if got[1].Text != "Adiós" || got[1].Duration != 3*time.Second {
		t.Fatalf("end-time delta duration: %+v", got[1])
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()
	if len(stream.sent) != 3 {
		t.Fatalf("sent: want config + 2 audio chunks got=%d", len(stream.sent))
	}
	cfg := stream.sent[0].GetStreamingConfig()
	if cfg == nil || cfg.GetConfig().GetLanguageCode() != "es-ES" || !cfg.GetConfig().GetEnableWordTimeOffsets() {
		t.Fatalf("first request must be the streaming config: %+v", stream.sent[0])
	}
	if cfg.GetConfig().GetSampleRateHertz() != 16000 || cfg.GetConfig().GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
		t.Fatalf("audio format: %+v", cfg.GetConfig())
	}
}

func runStream(t *testing.T, svc *speechService, lang string) error {
	t.Helper()
	us, err := svc.OpenStream(context.Background(), StreamConfig{LanguageCode: lang})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	return us.Run(feed(), func(Utterance) error { return nil })
}

func TestOpenStreamRequiresLanguage(t *testing.T) {
	svc := newSpeechService(logger.Nop(), &fakeSpeechAPI{stream: newFakeStream(nil, nil)})
	if _, err := svc.OpenStream(context.Background(), StreamConfig{}); err == nil {
		t.Fatalf("expected error without language code")
	}
}

func TestUtteranceStreamProviderErrorIsStreamError(t *testing.T) {
	stream := newFakeStream([]*speechpb.StreamingRecognizeResponse{
		{Error: &rpcstatus.Status{Code: int32(codes.OutOfRange), Message: "exceeded maximum allowed stream duration"}},
	}, nil)
	svc := newSpeechService(logger.Nop(), &fakeSpeechAPI{stream: stream})
	err := runStream(t, svc, "fr-FR")
	var se *StreamError
	if !errors.As(err, &se) || se.Code != codes.OutOfRange {
		t.Fatalf("want StreamError(OutOfRange) got %v", err)
	}

	stream = newFakeStream(nil, status.Error(codes.Unauthenticated, "bad key"))
	svc = newSpeechService(logger.Nop(), &fakeSpeechAPI{stream: stream})
	err = runStream(t, svc, "fr-FR")
	if !errors.As(err, &se) || se.Code != codes.Unauthenticated || se.Message != "bad key" {
		t.Fatalf("want StreamError(Unauthenticated) got %v", err)
	}
}

func TestDetectLanguageMapsProviderCode(t *testing.T) {
	var gotReq *speechpb.RecognizeRequest
	api := &fakeSpeechAPI{recognize: func(req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		gotReq = req
		return &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "  "}}, LanguageCode: "es-es"},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "bonjour"}}, LanguageCode: "fr-fr"},
		}}, nil
	}}
	svc := newSpeechService(logger.Nop(), api)
	candidates := []string{"es-ES", "fr-FR", "zh-CN", "ja-JP"}
	lang, err := svc.DetectLanguage(context.Background(), []byte{0, 0}, DetectConfig{Candidates: candidates})
	if err != nil {
		t.Fatalf("DetectLanguage: %v", err)
	}
	if lang != "fr-FR" {
		t.Fatalf("language: want=fr-FR got=%s", lang)
	}
	if gotReq.GetConfig().GetLanguageCode() != "es-ES" || len(gotReq.GetConfig().GetAlternativeLanguageCodes()) != 3 {
		t.Fatalf("candidate wiring: %+v", gotReq.GetConfig())
	}
}

func TestDetectLanguageNoSpeech(t *testing.T) {
	api := &fakeSpeechAPI{recognize: func(*speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return &speechpb.RecognizeResponse{}, nil
	}}
	svc := newSpeechService(logger.Nop(), api)
	_, err := svc.DetectLanguage(context.Background(), []byte{0, 0}, DetectConfig{Candidates: []string{"ja-JP"}})
	if !errors.Is(err, ErrNoSpeechDetected) {
		t.Fatalf("want ErrNoSpeechDetected got %v", err)
	}
}

func TestDetectLanguageRetriesUnavailable(t *testing.T) {
	calls := 0
	api := &fakeSpeechAPI{recognize: func(*speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		calls++
		if calls < 3 {
			return nil, status.Error(codes.Unavailable, "try again")
		}
		return &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "你好"}}, LanguageCode: "cmn-hans-cn"},
		}}, nil
	}}
	svc := newSpeechService(logger.Nop(), api)
	svc.backoff = time.Millisecond
	lang, err := svc.DetectLanguage(context.Background(), []byte{0, 0}, DetectConfig{Candidates: []string{"es-ES", "zh-CN"}})
	if err != nil {
		t.Fatalf("DetectLanguage: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
	// Unknown provider spellings pass through unchanged.
	if lang != "cmn-hans-cn" {
		t.Fatalf("language: got=%s", lang)
	}

	calls = 0
	api.recognize = func(*speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		calls++
		return nil, status.Error(codes.InvalidArgument, "bad audio")
	}
	if _, err := svc.DetectLanguage(context.Background(), []byte{0, 0}, DetectConfig{Candidates: []string{"es-ES"}}); err == nil || calls != 1 {
		t.Fatalf("non-retryable: calls=%d err=%v", calls, err)
	}
}
