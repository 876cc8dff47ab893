package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/audiolens-backend/internal/domain"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"github.com/yungbote/audiolens-backend/internal/playback"
	"github.com/yungbote/audiolens-backend/internal/recognition"
	"github.com/yungbote/audiolens-backend/internal/session"
)

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, source string) (string, error) {
	return "/tmp/clip.wav", nil
}

type discard struct{}

func (discard) Write(b []byte) (int, error) { return len(b), nil }
func (discard) Close() error                { return nil }

type scriptedRecognizer struct {
	events []domain.Event
}

func (r scriptedRecognizer) DetectLanguage(ctx context.Context, wavPath string, candidates []string) (string, error) {
	return "es-ES", nil
}

func (r scriptedRecognizer) StartContinuous(ctx context.Context, cfg recognition.Config) (*recognition.Stream, error) {
	ch := make(chan domain.Event, len(r.events))
	for _, ev := range r.events {
		ch <- ev
	}
	close(ch)
	return &recognition.Stream{Audio: discard{}, Events: ch}, nil
}

type drainStreamer struct{}

func (drainStreamer) Stream(ctx context.Context, wavPath string, dst io.WriteCloser) error {
	return dst.Close()
}

func utterance(text, translated string, seconds float64) domain.Event {
	return domain.Recognized(domain.RecognitionEvent{
		Text:         text,
		Translations: map[string]string{"en": translated},
		Duration:     int64(seconds * domain.TicksPerSecond),
	})
}

// completedController returns a controller whose current session finished
// with segments [0,3.5] Hola/Hello and [3.5,7.5] Adiós/Goodbye.
func completedController(t *testing.T) *session.Controller {
	t.Helper()
	ctrl := session.NewController(logger.Nop(), session.Deps{
		Extractor: stubExtractor{},
		Recognizer: scriptedRecognizer{events: []domain.Event{
			utterance("Hola", "Hello", 1.5),
			utterance("Adiós", "Goodbye", 2.0),
		}},
		Streamer: drainStreamer{},
	}, session.Options{TargetLanguage: "en-US", Candidates: recognition.DefaultCandidates, Padding: 2.0})

	s, err := ctrl.Select(context.Background(), session.SelectRequest{Source: "/videos/clip.mp4"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("session did not finish: %v", err)
	}
	if s.State() != domain.SessionCompleted {
		t.Fatalf("state = %s", s.State())
	}
	return ctrl
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestCaptionLookupUsesQueryOrPlaybackPosition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctrl := completedController(t)
	pos := playback.NewClock(clock.NewMock())
	h := NewCaptionHandler(ctrl, pos)

	r := gin.New()
	r.GET("/api/captions", h.Lookup)

	cases := []struct {
		query  string
		seek   float64
		want   domain.Caption
		active bool
	}{
		{query: "?t=1", want: domain.Caption{DetectedText: "Hola", TranslatedText: "Hello"}, active: true},
		{query: "?t=3.5", want: domain.Caption{DetectedText: "Hola", TranslatedText: "Hello"}, active: true},
		{query: "?t=7.5", want: domain.Caption{DetectedText: "Adiós", TranslatedText: "Goodbye"}, active: true},
		{query: "?t=9", want: domain.NoCaption},
		{query: "", seek: 5, want: domain.Caption{DetectedText: "Adiós", TranslatedText: "Goodbye"}, active: true},
	}
	for _, tc := range cases {
		pos.Seek(tc.seek)
		rec := doJSON(r, http.MethodGet, "/api/captions"+tc.query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: status %d", tc.query, rec.Code)
		}
		var got playback.Update
		decode(t, rec, &got)
		if got.Caption != tc.want || got.Active != tc.active {
			t.Fatalf("%q: got %+v", tc.query, got)
		}
	}

	if rec := doJSON(r, http.MethodGet, "/api/captions?t=-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative t: status %d", rec.Code)
	}
}

func TestCaptionExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewCaptionHandler(completedController(t), nil)
	r := gin.New()
	r.GET("/api/captions/export", h.Export)

	rec := doJSON(r, http.MethodGet, "/api/captions/export?format=srt&text=detected", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "00:00:00,000 --> 00:00:03,500\nHola") {
		t.Fatalf("srt body:\n%s", body)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/x-subrip") {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}

	rec = doJSON(r, http.MethodGet, "/api/captions/export", "")
	if !strings.HasPrefix(rec.Body.String(), "WEBVTT") || !strings.Contains(rec.Body.String(), "Goodbye") {
		t.Fatalf("vtt body:\n%s", rec.Body.String())
	}

	if rec := doJSON(r, http.MethodGet, "/api/captions/export?format=ass", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format: status %d", rec.Code)
	}
}

type emptyController struct{}

func (emptyController) Select(ctx context.Context, req session.SelectRequest) (*session.Session, error) {
	return nil, session.ErrSourceRequired
}
func (emptyController) Current() *session.Session               { return nil }
func (emptyController) Cancel(string) bool                      { return false }
func (emptyController) Lookup(t float64) (domain.Caption, bool) { return domain.NoCaption, false }

func TestNoSessionResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sh := NewSessionHandler(logger.Nop(), emptyController{})
	ch := NewCaptionHandler(emptyController{}, nil)
	r := gin.New()
	r.POST("/api/sessions", sh.Create)
	r.GET("/api/sessions/current", sh.Current)
	r.POST("/api/sessions/current/cancel", sh.Cancel)
	r.GET("/api/captions", ch.Lookup)
	r.GET("/api/captions/segments", ch.Segments)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/api/sessions", `{"video":""}`, http.StatusBadRequest},
		{http.MethodPost, "/api/sessions", `not json`, http.StatusBadRequest},
		{http.MethodGet, "/api/sessions/current", "", http.StatusNotFound},
		{http.MethodPost, "/api/sessions/current/cancel", "", http.StatusNotFound},
		{http.MethodGet, "/api/captions/segments", "", http.StatusNotFound},
		{http.MethodGet, "/api/captions?t=2", "", http.StatusOK},
	}
	for _, tc := range cases {
		if rec := doJSON(r, tc.method, tc.path, tc.body); rec.Code != tc.want {
			t.Fatalf("%s %s: status %d want %d (%s)", tc.method, tc.path, rec.Code, tc.want, rec.Body.String())
		}
	}

	var got playback.Update
	decode(t, doJSON(r, http.MethodGet, "/api/captions?t=2", ""), &got)
	if got.Caption != domain.NoCaption || got.Active {
		t.Fatalf("no-session caption = %+v", got)
	}
}

func TestSessionCreateAndCurrent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctrl := completedController(t)
	h := NewSessionHandler(logger.Nop(), ctrl)
	r := gin.New()
	r.POST("/api/sessions", h.Create)
	r.GET("/api/sessions/current", h.Current)

	rec := doJSON(r, http.MethodGet, "/api/sessions/current", "")
	var body struct {
		Session SessionView `json:"session"`
	}
	decode(t, rec, &body)
	if body.Session.State != domain.SessionCompleted || body.Session.SegmentCount != 2 || body.Session.Error != nil {
		t.Fatalf("current = %+v", body.Session)
	}

	rec = doJSON(r, http.MethodPost, "/api/sessions", `{"video":"/videos/next.mp4","target_language":"fr-FR"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &body)
	if body.Session.Source != "/videos/next.mp4" || body.Session.TargetLanguage != "fr-FR" {
		t.Fatalf("created = %+v", body.Session)
	}
	if ctrl.Current().ID != body.Session.ID {
		t.Fatal("created session is not current")
	}
	_ = ctrl.Close(context.Background())
}

func TestPlaybackControls(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := clock.NewMock()
	pos := playback.NewClock(mock)
	var changes []playback.State
	h := NewPlaybackHandler(pos, func(st playback.State) { changes = append(changes, st) })

	r := gin.New()
	r.GET("/api/playback", h.State)
	r.POST("/api/playback/play", h.Play)
	r.POST("/api/playback/pause", h.Pause)
	r.POST("/api/playback/seek", h.Seek)
	r.POST("/api/playback/rewind", h.Rewind)

	steps := []struct {
		path, body string
		advance    time.Duration
		want       playback.State
	}{
		{path: "/api/playback/seek", body: `{"position":30}`, want: playback.State{Position: 30}},
		{path: "/api/playback/play", want: playback.State{Position: 30, Playing: true}},
		{path: "/api/playback/pause", advance: 2 * time.Second, want: playback.State{Position: 32}},
		{path: "/api/playback/rewind", want: playback.State{Position: 22}},
		{path: "/api/playback/rewind", body: `{"seconds":100}`, want: playback.State{Position: 0}},
	}
	for _, st := range steps {
		mock.Add(st.advance)
		rec := doJSON(r, http.MethodPost, st.path, st.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", st.path, rec.Code)
		}
		var got playback.State
		decode(t, rec, &got)
		if got != st.want {
			t.Fatalf("%s: got %+v want %+v", st.path, got, st.want)
		}
	}
	if len(changes) != len(steps) {
		t.Fatalf("onChange calls = %d", len(changes))
	}

	if rec := doJSON(r, http.MethodPost, "/api/playback/seek", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("seek without position: status %d", rec.Code)
	}
	var got playback.State
	decode(t, doJSON(r, http.MethodGet, "/api/playback", ""), &got)
	if got.Position != 0 || got.Playing {
		t.Fatalf("state = %+v", got)
	}
}

func TestPresentSessionError(t *testing.T) {
	if PresentSessionError("", "", "") != nil {
		t.Fatal("expected nil view for empty kind")
	}
	v := PresentSessionError(session.KindStreamingCanceled, session.CauseProvider, "Code: Unavailable")
	if v.Message != "Translation canceled." || v.Status != http.StatusBadGateway || v.Detail != "Code: Unavailable" || v.Cause != "provider" {
		t.Fatalf("view = %+v", v)
	}
	for _, reason := range []string{"canceled by user", "replaced", "shutdown"} {
		v = PresentSessionError(session.KindStreamingCanceled, session.CauseLocal, reason)
		if v.Status != http.StatusConflict || v.Message != "Translation stopped." || v.Detail != reason {
			t.Fatalf("%s: view = %+v", reason, v)
		}
	}
	v = PresentSessionError(session.KindExtractionFailure, "", "")
	if v.Message != "No audio track found." || v.Status != http.StatusUnprocessableEntity {
		t.Fatalf("view = %+v", v)
	}
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", NewHealthHandler(nil).HealthCheck)
	r.GET("/deps", NewHealthHandler(map[string]HealthCheck{
		"db":    func(context.Context) error { return nil },
		"redis": func(context.Context) error { return io.ErrUnexpectedEOF },
	}).HealthCheck)

	if rec := doJSON(r, http.MethodGet, "/ok", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("plain health: %d %q", rec.Code, rec.Body.String())
	}
	rec := doJSON(r, http.MethodGet, "/deps", "")
	if rec.Code != http.StatusServiceUnavailable || !bytes.Contains(rec.Body.Bytes(), []byte(`"db":"ok"`)) {
		t.Fatalf("deps health: %d %s", rec.Code, rec.Body.String())
	}
}
