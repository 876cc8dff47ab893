package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/audiolens-backend/internal/http/response"
	"github.com/yungbote/audiolens-backend/internal/platform/apierr"
	"github.com/yungbote/audiolens-backend/internal/platform/ctxutil"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"github.com/yungbote/audiolens-backend/internal/session"
)

// SessionController is the part of *session.Controller the API drives.
type SessionController interface {
	Select(ctx context.Context, req session.SelectRequest) (*session.Session, error)
	Current() *session.Session
	Cancel(reason string) bool
}

var errNoSession = errors.New("no video selected")

type SessionHandler struct {
	log  *logger.Logger
	ctrl SessionController
}

func NewSessionHandler(log *logger.Logger, ctrl SessionController) *SessionHandler {
	return &SessionHandler{log: log.With("handler", "SessionHandler"), ctrl: ctrl}
}

type createSessionRequest struct {
	Video          string `json:"video"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// POST /api/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	s, err := h.ctrl.Select(c.Request.Context(), session.SelectRequest{
		Source:         strings.TrimSpace(req.Video),
		SourceLanguage: strings.TrimSpace(req.SourceLanguage),
		TargetLanguage: strings.TrimSpace(req.TargetLanguage),
	})
	if errors.Is(err, session.ErrSourceRequired) {
		response.RespondAPIError(c, apierr.BadRequest("invalid_video", err))
		return
	}
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	fields := []any{"session_id", s.ID.String(), "source", s.Source}
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
		td.SessionID = s.ID.String()
		fields = append(fields, "request_id", td.RequestID)
	}
	h.log.Info("Session selected", fields...)
	c.Header("X-Session-Id", s.ID.String())
	response.RespondAccepted(c, gin.H{"session": PresentSession(s.Snapshot())})
}

// GET /api/sessions/current
func (h *SessionHandler) Current(c *gin.Context) {
	s := h.ctrl.Current()
	if s == nil {
		response.RespondAPIError(c, apierr.NotFound("no_session", errNoSession))
		return
	}
	response.RespondOK(c, gin.H{"session": PresentSession(s.Snapshot())})
}

// POST /api/sessions/current/cancel
func (h *SessionHandler) Cancel(c *gin.Context) {
	s := h.ctrl.Current()
	if s == nil {
		response.RespondAPIError(c, apierr.NotFound("no_session", errNoSession))
		return
	}
	canceled := h.ctrl.Cancel("canceled by user")
	response.RespondOK(c, gin.H{"canceled": canceled, "session": PresentSession(s.Snapshot())})
}
