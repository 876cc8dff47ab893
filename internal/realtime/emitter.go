package realtime

import (
	"context"

	"github.com/yungbote/audiolens-backend/internal/platform/ctxutil"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
)

// Publisher fans messages out to other instances. The bus forwards every
// published message back into each instance's hub.
type Publisher interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

// Emitter sends events either through a Publisher or, without one, straight
// into the local hub.
type Emitter struct {
	log *logger.Logger
	hub *SSEHub
	pub Publisher
}

func NewEmitter(log *logger.Logger, hub *SSEHub, pub Publisher) *Emitter {
	return &Emitter{log: log.With("service", "SSEEmitter"), hub: hub, pub: pub}
}

func (e *Emitter) Emit(ctx context.Context, channel string, event SSEEvent, data any) {
	msg := SSEMessage{Channel: channel, Event: event, Data: data}
	if e.pub == nil {
		e.hub.Broadcast(msg)
		return
	}
	if err := e.pub.Publish(ctxutil.Default(ctx), msg); err != nil {
		e.log.Warn("SSE publish failed; delivering locally", "event", event, "error", err)
		e.hub.Broadcast(msg)
	}
}
