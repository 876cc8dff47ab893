package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/audiolens-backend/internal/data/repos"
	"github.com/yungbote/audiolens-backend/internal/data/repos/archive"
	types "github.com/yungbote/audiolens-backend/internal/domain"
	"github.com/yungbote/audiolens-backend/internal/http/response"
	"github.com/yungbote/audiolens-backend/internal/platform/apierr"
	"github.com/yungbote/audiolens-backend/internal/platform/dbctx"
)

const maxHistoryLimit = 200

type ArchiveHandler struct {
	repo repos.SessionArchiveRepo
}

func NewArchiveHandler(repo repos.SessionArchiveRepo) *ArchiveHandler {
	return &ArchiveHandler{repo: repo}
}

// GET /api/sessions/history?limit=
func (h *ArchiveHandler) History(c *gin.Context) {
	limit := archive.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.RespondAPIError(c, apierr.BadRequest("invalid_limit", errors.New("limit must be a positive integer")))
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	recs, err := h.repo.List(dbctx.Context{Ctx: c.Request.Context()}, limit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": recs})
}

// GET /api/sessions/:id/segments
func (h *ArchiveHandler) Segments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_session", err))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rec, err := h.repo.GetByID(dbc, id.String())
	if errors.Is(err, archive.ErrSessionNotFound) {
		response.RespondAPIError(c, apierr.NotFound("session_not_found", err))
		return
	}
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	recs, err := h.repo.Segments(dbc, rec.ID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	segs := make([]types.CaptionSegment, 0, len(recs))
	for _, r := range recs {
		segs = append(segs, r.Segment(rec.TargetLanguage))
	}
	response.RespondOK(c, gin.H{"session": rec, "segments": segs})
}
