package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/audiolens-backend/internal/http/response"
	"github.com/yungbote/audiolens-backend/internal/platform/apierr"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"github.com/yungbote/audiolens-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
	// initial builds the messages queued for a client right after it connects.
	initial func() []realtime.SSEMessage
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, initial func() []realtime.SSEMessage) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub, initial: initial}
}

// GET /api/sse/stream[?session=<id>]
//
// Without a session id the client follows the captions channel, which carries
// every event of the current session. With one it receives only that
// session's state events.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	channels := []string{realtime.ChannelCaptions}
	if raw := strings.TrimSpace(c.Query("session")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondAPIError(c, apierr.BadRequest("invalid_session", err))
			return
		}
		channels = []string{realtime.SessionChannel(id)}
	}

	client := h.hub.NewSSEClient()
	for _, ch := range channels {
		h.hub.AddChannel(client, ch)
	}
	h.log.Info("SSEStream open", "subscriber_id", client.ID.String(), "channels", channels)

	if h.initial != nil && channels[0] == realtime.ChannelCaptions {
		for _, msg := range h.initial() {
			select {
			case client.Outbound <- msg:
			default:
			}
		}
	}

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Info("SSEStream closed", "subscriber_id", client.ID.String())
}
