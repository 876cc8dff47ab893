package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/audiolens-backend/internal/captions"
	"github.com/yungbote/audiolens-backend/internal/domain"
	"github.com/yungbote/audiolens-backend/internal/http/response"
	"github.com/yungbote/audiolens-backend/internal/platform/apierr"
	"github.com/yungbote/audiolens-backend/internal/playback"
	"github.com/yungbote/audiolens-backend/internal/session"
)

// CaptionSource exposes the current session and its caption lookup.
type CaptionSource interface {
	Current() *session.Session
	Lookup(t float64) (domain.Caption, bool)
}

// PositionSource reports the playback position in seconds.
type PositionSource interface {
	Position() float64
}

type CaptionHandler struct {
	source   CaptionSource
	position PositionSource
}

func NewCaptionHandler(source CaptionSource, position PositionSource) *CaptionHandler {
	return &CaptionHandler{source: source, position: position}
}

// GET /api/captions?t=<seconds>
func (h *CaptionHandler) Lookup(c *gin.Context) {
	t, err := h.timeParam(c)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	caption, ok := h.source.Lookup(t)
	response.RespondOK(c, playback.Update{Position: t, Caption: caption, Active: ok})
}

func (h *CaptionHandler) timeParam(c *gin.Context) (float64, error) {
	raw := strings.TrimSpace(c.Query("t"))
	if raw == "" {
		if h.position == nil {
			return 0, nil
		}
		return h.position.Position(), nil
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil || t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, apierr.BadRequest("invalid_time", fmt.Errorf("invalid time %q", raw))
	}
	return t, nil
}

// GET /api/captions/segments
func (h *CaptionHandler) Segments(c *gin.Context) {
	s := h.source.Current()
	if s == nil {
		response.RespondAPIError(c, apierr.NotFound("no_session", errNoSession))
		return
	}
	response.RespondOK(c, gin.H{
		"session_id": s.ID.String(),
		"state":      s.State(),
		"segments":   s.Segments(),
	})
}

// GET /api/captions/export?format=vtt|srt&text=detected|translated
func (h *CaptionHandler) Export(c *gin.Context) {
	s := h.source.Current()
	if s == nil {
		response.RespondAPIError(c, apierr.NotFound("no_session", errNoSession))
		return
	}
	kind, err := captions.ParseTextKind(c.Query("text"))
	if err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_text", err))
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
		ext         string
	)
	segs := s.Segments()
	switch strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "vtt"))) {
	case "vtt", "webvtt":
		contentType, ext = "text/vtt; charset=utf-8", "vtt"
		err = captions.WriteWebVTT(&buf, segs, kind)
	case "srt":
		contentType, ext = "application/x-subrip; charset=utf-8", "srt"
		err = captions.WriteSRT(&buf, segs, kind)
	default:
		response.RespondAPIError(c, apierr.BadRequest("invalid_format", errors.New("format must be vtt or srt")))
		return
	}
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="captions-%s.%s"`, s.ID.String(), ext))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
