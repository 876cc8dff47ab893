package archive

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/audiolens-backend/internal/domain"
	"github.com/yungbote/audiolens-backend/internal/platform/dbctx"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

const DefaultListLimit = 50

var ErrSessionNotFound = errors.New("archived session not found")

type SessionArchiveRepo interface {
	// Archive upserts the session record and replaces its segments.
	Archive(dbc dbctx.Context, rec *types.CaptionSessionRecord, segs []*types.CaptionSegmentRecord) error
	GetByID(dbc dbctx.Context, id string) (*types.CaptionSessionRecord, error)
	List(dbc dbctx.Context, limit int) ([]*types.CaptionSessionRecord, error)
	Segments(dbc dbctx.Context, sessionID string) ([]*types.CaptionSegmentRecord, error)
}

type sessionArchiveRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionArchiveRepo(db *gorm.DB, baseLog *logger.Logger) SessionArchiveRepo {
	repoLog := baseLog.With("repo", "SessionArchiveRepo")
	return &sessionArchiveRepo{db: db, log: repoLog}
}

func (r *sessionArchiveRepo) Archive(dbc dbctx.Context, rec *types.CaptionSessionRecord, segs []*types.CaptionSegmentRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New("archive: session id required")
	}
	rec.SegmentCount = len(segs)

	return dbc.Conn(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"source_language", "state", "error_kind", "error_detail",
				"segment_count", "started_at", "ended_at", "updated_at",
			}),
		}).Create(rec).Error; err != nil {
			return err
		}

		if err := tx.Where("session_id = ?", rec.ID).Delete(&types.CaptionSegmentRecord{}).Error; err != nil {
			return err
		}
		if len(segs) == 0 {
			return nil
		}
		for i, seg := range segs {
			seg.SessionID = rec.ID
			seg.Seq = i
		}
		return tx.CreateInBatches(segs, 200).Error
	})
}

func (r *sessionArchiveRepo) GetByID(dbc dbctx.Context, id string) (*types.CaptionSessionRecord, error) {
	var rec types.CaptionSessionRecord
	err := dbc.Conn(r.db).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *sessionArchiveRepo) List(dbc dbctx.Context, limit int) ([]*types.CaptionSessionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var results []*types.CaptionSessionRecord
	if err := dbc.Conn(r.db).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *sessionArchiveRepo) Segments(dbc dbctx.Context, sessionID string) ([]*types.CaptionSegmentRecord, error) {
	var results []*types.CaptionSegmentRecord
	if sessionID == "" {
		return results, nil
	}
	if err := dbc.Conn(r.db).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
