package domain

import (
	"strings"
	"time"
)

// TicksPerSecond is the resolution of recognition event durations (100ns ticks).
const TicksPerSecond = 10_000_000

func TicksToSeconds(ticks int64) float64 {
	return float64(ticks) / TicksPerSecond
}

func DurationToTicks(d time.Duration) int64 {
	return int64(d / 100)
}

// RecognitionEvent is one final recognized utterance.
type RecognitionEvent struct {
	Text string
	// Translations is keyed by target language tag.
	Translations map[string]string
	// Duration is the utterance length in ticks.
	Duration int64
}

// Translation returns the translation for target, falling back to its primary
// subtag ("en-US" -> "en").
func (e RecognitionEvent) Translation(target string) (string, bool) {
	if len(e.Translations) == 0 {
		return "", false
	}
	if v, ok := e.Translations[target]; ok {
		return v, true
	}
	base := target
	if i := strings.IndexAny(target, "-_"); i > 0 {
		base = target[:i]
	}
	for k, v := range e.Translations {
		if strings.EqualFold(k, base) || strings.EqualFold(k, target) {
			return v, true
		}
	}
	return "", false
}

type CancellationEvent struct {
	Reason string
}

// Event carries exactly one of Recognition or Cancellation.
type Event struct {
	Recognition  *RecognitionEvent
	Cancellation *CancellationEvent
}

func Recognized(ev RecognitionEvent) Event { return Event{Recognition: &ev} }

func Canceled(reason string) Event { return Event{Cancellation: &CancellationEvent{Reason: reason}} }
