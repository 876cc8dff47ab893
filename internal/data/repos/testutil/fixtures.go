package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/audiolens-backend/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, state types.SessionState, created time.Time) *types.CaptionSessionRecord {
	tb.Helper()
	ended := created.Add(time.Minute)
	rec := &types.CaptionSessionRecord{
		ID:             uuid.NewString(),
		Source:         "/videos/seed.mp4",
		SourceLanguage: "fr-FR",
		TargetLanguage: "en-US",
		State:          string(state),
		StartedAt:      &created,
		EndedAt:        &ended,
		CreatedAt:      created,
	}
	if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return rec
}

// SeedSegments stores segs in order under sessionID, translating into the
// session's target tag.
func SeedSegments(tb testing.TB, ctx context.Context, tx *gorm.DB, rec *types.CaptionSessionRecord, segs []types.CaptionSegment) {
	tb.Helper()
	for i, seg := range segs {
		raw, err := json.Marshal(map[string]string{rec.TargetLanguage: seg.TranslatedText})
		if err != nil {
			tb.Fatalf("marshal translations: %v", err)
		}
		row := &types.CaptionSegmentRecord{
			SessionID:    rec.ID,
			Seq:          i,
			Start:        seg.Start,
			End:          seg.End,
			DetectedText: seg.DetectedText,
			Translations: datatypes.JSON(raw),
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			tb.Fatalf("seed segment %d: %v", i, err)
		}
	}
	if err := tx.WithContext(ctx).Model(rec).Update("segment_count", len(segs)).Error; err != nil {
		tb.Fatalf("seed segment count: %v", err)
	}
	rec.SegmentCount = len(segs)
}
