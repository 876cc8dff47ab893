package bus

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"github.com/yungbote/audiolens-backend/internal/realtime"
)

func TestNewRedisBusRequiresAddr(t *testing.T) {
	if _, err := NewRedisBus(logger.Nop(), " ", ""); err == nil {
		t.Fatalf("expected error without address")
	}
	if _, err := NewRedisBus(nil, "localhost:6379", ""); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func TestMessageCrossesRedisChannels(t *testing.T) {
	id := uuid.New()
	in := realtime.SSEMessage{
		Channel: realtime.SessionChannel(id),
		Event:   realtime.SSEEventSessionStateChanged,
		Data:    map[string]any{"state": "streaming"},
	}
	raw, err := encodeMessage("node-a", in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	channel := redisChannel(DefaultChannel, in.Channel)
	if channel != "audiolens:sse:session:"+id.String() {
		t.Fatalf("redis channel = %q", channel)
	}

	out, origin, err := decodeMessage(DefaultChannel, channel, string(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if origin != "node-a" || out.Channel != in.Channel || out.Event != in.Event {
		t.Fatalf("decoded = %+v from %q", out, origin)
	}
	data, ok := out.Data.(json.RawMessage)
	if !ok || string(data) != `{"state":"streaming"}` {
		t.Fatalf("data = %#v", out.Data)
	}
}

func TestDecodeMessageRejects(t *testing.T) {
	cases := []struct {
		name, channel, payload string
	}{
		{"foreign channel", "other:captions", `{"event":"CaptionChanged"}`},
		{"bare prefix", DefaultChannel + ":", `{"event":"CaptionChanged"}`},
		{"not json", DefaultChannel + ":captions", `not json`},
		{"no event", DefaultChannel + ":captions", `{"origin":"x"}`},
	}
	for _, tc := range cases {
		if _, _, err := decodeMessage(DefaultChannel, tc.channel, tc.payload); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
