package handlers

import (
	"errors"
	"math"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/audiolens-backend/internal/http/response"
	"github.com/yungbote/audiolens-backend/internal/platform/apierr"
	"github.com/yungbote/audiolens-backend/internal/playback"
)

type PlaybackHandler struct {
	clock    *playback.Clock
	onChange func(playback.State)
}

// NewPlaybackHandler drives clock. onChange, when set, runs after every
// successful control request.
func NewPlaybackHandler(clock *playback.Clock, onChange func(playback.State)) *PlaybackHandler {
	return &PlaybackHandler{clock: clock, onChange: onChange}
}

func (h *PlaybackHandler) respond(c *gin.Context, st playback.State) {
	if h.onChange != nil {
		h.onChange(st)
	}
	response.RespondOK(c, st)
}

// GET /api/playback
func (h *PlaybackHandler) State(c *gin.Context) {
	response.RespondOK(c, h.clock.State())
}

// POST /api/playback/play
func (h *PlaybackHandler) Play(c *gin.Context) {
	h.respond(c, h.clock.Play())
}

// POST /api/playback/pause
func (h *PlaybackHandler) Pause(c *gin.Context) {
	h.respond(c, h.clock.Pause())
}

type seekRequest struct {
	Position *float64 `json:"position"`
}

// POST /api/playback/seek
func (h *PlaybackHandler) Seek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Position == nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_position", errors.New("position (seconds) is required")))
		return
	}
	pos := *req.Position
	if math.IsNaN(pos) || math.IsInf(pos, 0) {
		response.RespondAPIError(c, apierr.BadRequest("invalid_position", errors.New("position must be finite")))
		return
	}
	h.respond(c, h.clock.Seek(pos))
}

type rewindRequest struct {
	Seconds float64 `json:"seconds"`
}

// POST /api/playback/rewind
func (h *PlaybackHandler) Rewind(c *gin.Context) {
	var req rewindRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondAPIError(c, apierr.BadRequest("invalid_request", err))
			return
		}
	}
	step := time.Duration(req.Seconds * float64(time.Second))
	h.respond(c, h.clock.Rewind(step))
}
