package domain

import (
	"testing"
	"time"
)

func TestTicksConversion(t *testing.T) {
	if got := TicksToSeconds(30_000_000); got != 3.0 {
		t.Fatalf("TicksToSeconds: want=3 got=%v", got)
	}
	if got := DurationToTicks(1500 * time.Millisecond); got != 15_000_000 {
		t.Fatalf("DurationToTicks: want=15000000 got=%d", got)
	}
}

func TestRecognitionEventTranslationFallsBackToPrimarySubtag(t *testing.T) {
	ev := RecognitionEvent{Translations: map[string]string{"en": "hello"}}
	got, ok := ev.Translation("en-US")
	if !ok || got != "hello" {
		t.Fatalf("want hello got %q ok=%v", got, ok)
	}
	if _, ok := ev.Translation("fr-FR"); ok {
		t.Fatalf("fr-FR should not match")
	}
	exact := RecognitionEvent{Translations: map[string]string{"en-US": "hi", "en": "hello"}}
	if got, _ := exact.Translation("en-US"); got != "hi" {
		t.Fatalf("exact tag should win, got %q", got)
	}
}

func TestSessionStateTransitions(t *testing.T) {
	cases := []struct {
		from, to SessionState
		want     bool
	}{
		{SessionIdle, SessionConfiguring, true},
		{SessionConfiguring, SessionStreaming, true},
		{SessionConfiguring, SessionFailed, true},
		{SessionStreaming, SessionCanceled, true},
		{SessionStreaming, SessionCompleted, true},
		{SessionIdle, SessionStreaming, false},
		{SessionCompleted, SessionStreaming, false},
		{SessionFailed, SessionCanceled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s->%s: want=%v got=%v", tc.from, tc.to, tc.want, got)
		}
	}
	if !SessionCanceled.Terminal() || SessionStreaming.Terminal() {
		t.Fatalf("terminal flags wrong")
	}
}
