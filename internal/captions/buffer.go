// Package captions turns recognition events into a queryable caption timeline.
package captions

import (
	"strings"
	"sync"

	"github.com/yungbote/audiolens-backend/internal/domain"
)

// DefaultPadding is added to every segment's end to mask recognition latency and
// to keep consecutive captions from flickering off between utterances.
const DefaultPadding = 2.0

// Buffer is an append-only list of caption segments laid end to end from a
// running cursor. Appends and lookups may run on different goroutines.
type Buffer struct {
	mu       sync.RWMutex
	padding  float64
	segments []domain.CaptionSegment
	lastEnd  float64
	frozen   bool
}

func NewBuffer(padding float64) *Buffer {
	if padding < 0 {
		padding = 0
	}
	return &Buffer{padding: padding}
}

func (b *Buffer) Padding() float64 { return b.padding }

// Append records one recognition result. The segment starts at the current
// cursor and ends durationTicks plus padding later; the cursor moves to its end.
// A frozen buffer ignores appends and returns ok=false.
func (b *Buffer) Append(detected, translated string, durationTicks int64) (domain.CaptionSegment, bool) {
	if strings.TrimSpace(detected) == "" {
		detected = domain.PlaceholderNoText
	}
	if strings.TrimSpace(translated) == "" {
		translated = domain.PlaceholderNoTranslation
	}
	if durationTicks < 0 {
		durationTicks = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return domain.CaptionSegment{}, false
	}
	seg := domain.CaptionSegment{
		Start:          b.lastEnd,
		End:            b.lastEnd + domain.TicksToSeconds(durationTicks) + b.padding,
		DetectedText:   detected,
		TranslatedText: translated,
	}
	b.segments = append(b.segments, seg)
	b.lastEnd = seg.End
	return seg, true
}

// Lookup returns the caption of the first segment, in append order, whose
// interval contains t. Without a match it returns domain.NoCaption and false.
func (b *Buffer) Lookup(t float64) (domain.Caption, bool) {
	if b == nil {
		return domain.NoCaption, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, seg := range b.segments {
		if seg.Contains(t) {
			return seg.Caption(), true
		}
	}
	return domain.NoCaption, false
}

// Freeze stops further appends. Buffered segments stay queryable.
func (b *Buffer) Freeze() {
	b.mu.Lock()
	b.frozen = true
	b.mu.Unlock()
}

func (b *Buffer) Frozen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frozen
}

// Segments returns a copy of the timeline.
func (b *Buffer) Segments() []domain.CaptionSegment {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.CaptionSegment, len(b.segments))
	copy(out, b.segments)
	return out
}

func (b *Buffer) LastEnd() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastEnd
}

func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.segments)
}
