package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"github.com/yungbote/audiolens-backend/internal/realtime"
)

// DefaultChannel is the redis channel prefix. Each SSE channel is published
// on "<prefix>:<sse channel>", e.g. "audiolens:sse:session:<id>".
const DefaultChannel = "audiolens:sse"

// envelope is the redis payload. The SSE channel travels in the redis
// channel name.
type envelope struct {
	Origin string            `json:"origin"`
	Event  realtime.SSEEvent `json:"event"`
	Data   json.RawMessage   `json:"data,omitempty"`
}

type redisBus struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	origin string
}

func NewRedisBus(log *logger.Logger, addr, prefix string) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	origin := uuid.NewString()
	return &redisBus{
		log:    log.With("service", "RedisSSEBus", "origin", origin),
		rdb:    rdb,
		prefix: prefix,
		origin: origin,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	raw, err := encodeMessage(b.origin, msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, redisChannel(b.prefix, msg.Channel), raw).Err()
}

// StartForwarder subscribes to every SSE channel under the prefix and hands
// decoded messages to onMsg until ctx ends.
func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis SSE bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.PSubscribe(ctx, b.prefix+":*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				msg, origin, err := decodeMessage(b.prefix, m.Channel, m.Payload)
				if err != nil {
					b.log.Warn("Bad redis SSE payload", "redis_channel", m.Channel, "error", err)
					continue
				}
				if origin != b.origin {
					b.log.Debug("Forwarding remote SSE event", "event", msg.Event, "from", origin)
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func redisChannel(prefix, sseChannel string) string {
	return prefix + ":" + sseChannel
}

func encodeMessage(origin string, msg realtime.SSEMessage) ([]byte, error) {
	env := envelope{Origin: origin, Event: msg.Event}
	if msg.Data != nil {
		data, err := json.Marshal(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("encode %s data: %w", msg.Event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

func decodeMessage(prefix, channel, payload string) (realtime.SSEMessage, string, error) {
	sseChannel, ok := strings.CutPrefix(channel, prefix+":")
	if !ok || sseChannel == "" {
		return realtime.SSEMessage{}, "", fmt.Errorf("channel %q outside prefix %q", channel, prefix)
	}
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return realtime.SSEMessage{}, "", err
	}
	if env.Event == "" {
		return realtime.SSEMessage{}, "", fmt.Errorf("message without event")
	}
	msg := realtime.SSEMessage{Channel: sseChannel, Event: env.Event}
	if len(env.Data) > 0 {
		msg.Data = env.Data
	}
	return msg, env.Origin, nil
}
