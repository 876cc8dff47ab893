package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	types "github.com/yungbote/audiolens-backend/internal/domain"
	"github.com/yungbote/audiolens-backend/internal/platform/dbctx"
	"github.com/yungbote/audiolens-backend/internal/session"
)

// SessionArchiver stores finished sessions through a SessionArchiveRepo.
type SessionArchiver struct {
	repo SessionArchiveRepo
}

func NewSessionArchiver(repo SessionArchiveRepo) *SessionArchiver {
	return &SessionArchiver{repo: repo}
}

func (a *SessionArchiver) Archive(ctx context.Context, snap session.Snapshot, segments []types.CaptionSegment) error {
	rec := RecordFromSnapshot(snap)
	segs := make([]*types.CaptionSegmentRecord, 0, len(segments))
	for _, s := range segments {
		tr, err := json.Marshal(map[string]string{snap.TargetLanguage: s.TranslatedText})
		if err != nil {
			return fmt.Errorf("encode translations: %w", err)
		}
		segs = append(segs, &types.CaptionSegmentRecord{
			Start:        s.Start,
			End:          s.End,
			DetectedText: s.DetectedText,
			Translations: datatypes.JSON(tr),
		})
	}
	return a.repo.Archive(dbctx.Context{Ctx: ctx}, rec, segs)
}

func RecordFromSnapshot(snap session.Snapshot) *types.CaptionSessionRecord {
	return &types.CaptionSessionRecord{
		ID:             snap.ID.String(),
		Source:         snap.Source,
		SourceLanguage: snap.SourceLanguage,
		TargetLanguage: snap.TargetLanguage,
		State:          string(snap.State),
		ErrorKind:      string(snap.ErrorKind),
		ErrorDetail:    snap.ErrorDetail,
		SegmentCount:   snap.SegmentCount,
		StartedAt:      snap.StartedAt,
		EndedAt:        snap.EndedAt,
		CreatedAt:      snap.CreatedAt,
	}
}

var _ session.Archiver = (*SessionArchiver)(nil)
