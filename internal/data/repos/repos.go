package repos

import (
	"github.com/yungbote/audiolens-backend/internal/data/repos/archive"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type SessionArchiveRepo = archive.SessionArchiveRepo

func NewSessionArchiveRepo(db *gorm.DB, baseLog *logger.Logger) SessionArchiveRepo {
	return archive.NewSessionArchiveRepo(db, baseLog)
}
