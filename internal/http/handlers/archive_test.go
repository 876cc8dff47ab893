package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/audiolens-backend/internal/data/repos"
	"github.com/yungbote/audiolens-backend/internal/data/repos/testutil"
	"github.com/yungbote/audiolens-backend/internal/domain"
)

func archiveRouter(t *testing.T) (*gin.Engine, *domain.CaptionSessionRecord) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	testutil.SeedSession(t, ctx, db, domain.SessionCanceled, base)
	latest := testutil.SeedSession(t, ctx, db, domain.SessionCompleted, base.Add(time.Hour))
	testutil.SeedSegments(t, ctx, db, latest, []domain.CaptionSegment{
		{Start: 0, End: 2.5, DetectedText: "Bonjour", TranslatedText: "Hello"},
		{Start: 2.5, End: 4, DetectedText: "Merci", TranslatedText: "Thanks"},
	})

	h := NewArchiveHandler(repos.NewSessionArchiveRepo(db, testutil.Logger(t)))
	r := gin.New()
	r.GET("/api/sessions/history", h.History)
	r.GET("/api/sessions/:id/segments", h.Segments)
	return r, latest
}

func TestArchiveHistory(t *testing.T) {
	r, latest := archiveRouter(t)

	rec := doJSON(r, http.MethodGet, "/api/sessions/history?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Sessions []domain.CaptionSessionRecord `json:"sessions"`
	}
	decode(t, rec, &body)
	if len(body.Sessions) != 1 || body.Sessions[0].ID != latest.ID || body.Sessions[0].SegmentCount != 2 {
		t.Fatalf("sessions = %+v", body.Sessions)
	}

	for _, q := range []string{"0", "-3", "abc"} {
		if rec := doJSON(r, http.MethodGet, "/api/sessions/history?limit="+q, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: status = %d", q, rec.Code)
		}
	}
}

func TestArchiveSegments(t *testing.T) {
	r, latest := archiveRouter(t)

	rec := doJSON(r, http.MethodGet, "/api/sessions/"+latest.ID+"/segments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Segments []domain.CaptionSegment `json:"segments"`
	}
	decode(t, rec, &body)
	want := []domain.CaptionSegment{
		{Start: 0, End: 2.5, DetectedText: "Bonjour", TranslatedText: "Hello"},
		{Start: 2.5, End: 4, DetectedText: "Merci", TranslatedText: "Thanks"},
	}
	if len(body.Segments) != len(want) {
		t.Fatalf("segments = %+v", body.Segments)
	}
	for i := range want {
		if body.Segments[i] != want[i] {
			t.Fatalf("segment[%d] = %+v, want %+v", i, body.Segments[i], want[i])
		}
	}

	if rec := doJSON(r, http.MethodGet, "/api/sessions/not-a-uuid/segments", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d", rec.Code)
	}
	if rec := doJSON(r, http.MethodGet, "/api/sessions/"+uuid.NewString()+"/segments", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing id: status = %d", rec.Code)
	}
}
