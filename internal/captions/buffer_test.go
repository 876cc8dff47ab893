package captions

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/yungbote/audiolens-backend/internal/domain"
)

func secs(s float64) int64 { return int64(s * domain.TicksPerSecond) }

func TestBufferAppendThreeUtterances(t *testing.T) {
	b := NewBuffer(2.0)
	durations := []float64{3.0, 1.5, 2.0}
	texts := []string{"uno", "dos", "tres"}
	for i, d := range durations {
		b.Append(texts[i], "t-"+texts[i], secs(d))
	}

	want := []domain.CaptionSegment{
		{Start: 0, End: 5.0, DetectedText: "uno", TranslatedText: "t-uno"},
		{Start: 5.0, End: 8.5, DetectedText: "dos", TranslatedText: "t-dos"},
		{Start: 8.5, End: 12.5, DetectedText: "tres", TranslatedText: "t-tres"},
	}
	got := b.Segments()
	if len(got) != len(want) {
		t.Fatalf("segments: want=%d got=%d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d: want=%+v got=%+v", i, want[i], got[i])
		}
	}
	if b.LastEnd() != 12.5 {
		t.Fatalf("cursor: want=12.5 got=%v", b.LastEnd())
	}

	c, ok := b.Lookup(6.0)
	if !ok || c.DetectedText != "dos" || c.TranslatedText != "t-dos" {
		t.Fatalf("lookup 6.0: got=%+v ok=%v", c, ok)
	}
	c, ok = b.Lookup(13.0)
	if ok || c != domain.NoCaption {
		t.Fatalf("lookup 13.0: want sentinel got=%+v ok=%v", c, ok)
	}
}

func TestBufferAppendUsesCursorAndPadding(t *testing.T) {
	b := NewBuffer(0.75)
	b.Append("a", "b", secs(1.25))
	seg, ok := b.Append("c", "d", secs(0.5))
	if !ok {
		t.Fatalf("append rejected")
	}
	if seg.Start != 2.0 || seg.End != 3.25 {
		t.Fatalf("segment: want=[2,3.25] got=[%v,%v]", seg.Start, seg.End)
	}
	if b.LastEnd() != 3.25 {
		t.Fatalf("cursor: want=3.25 got=%v", b.LastEnd())
	}
}

func TestBufferLookupBoundariesInclusive(t *testing.T) {
	b := NewBuffer(2.0)
	b.Append("first", "one", secs(3.0))
	b.Append("second", "two", secs(1.0))

	// 5.0 is both the end of the first and the start of the second: first wins.
	if c, _ := b.Lookup(5.0); c.DetectedText != "first" {
		t.Fatalf("touching boundary: want first got %q", c.DetectedText)
	}
	if c, ok := b.Lookup(0); !ok || c.DetectedText != "first" {
		t.Fatalf("lookup at 0: got=%+v ok=%v", c, ok)
	}
	if c, ok := b.Lookup(8.0); !ok || c.DetectedText != "second" {
		t.Fatalf("lookup at end: got=%+v ok=%v", c, ok)
	}
	if _, ok := b.Lookup(-0.1); ok {
		t.Fatalf("lookup before first start should miss")
	}
	if _, ok := b.Lookup(8.01); ok {
		t.Fatalf("lookup after last end should miss")
	}
}

func TestBufferLookupEachPointHasExactlyOneOwner(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := NewBuffer(2.0)
	for i := 0; i < 40; i++ {
		b.Append("seg", "tr", secs(rng.Float64()*4))
	}
	segs := b.Segments()
	for i := 1; i < len(segs); i++ {
		if segs[i].Start != segs[i-1].End {
			t.Fatalf("segment %d does not start at previous end", i)
		}
	}
	for i := 0; i < 2000; i++ {
		tt := rng.Float64() * b.LastEnd()
		matches := 0
		boundary := false
		owner := -1
		for j, s := range segs {
			if s.Start <= tt && tt < s.End {
				matches++
				owner = j
			}
			if tt == s.Start && j > 0 {
				boundary = true
			}
		}
		if boundary {
			continue
		}
		if matches != 1 {
			t.Fatalf("t=%v: half-open matches=%d", tt, matches)
		}
		c, ok := b.Lookup(tt)
		if !ok || c != segs[owner].Caption() {
			t.Fatalf("t=%v: lookup returned %+v want segment %d", tt, c, owner)
		}
	}
}

func TestBufferOverlapFirstMatchWins(t *testing.T) {
	b := NewBuffer(0)
	b.segments = []domain.CaptionSegment{
		{Start: 0, End: 10, DetectedText: "wide", TranslatedText: "w"},
		{Start: 2, End: 4, DetectedText: "narrow", TranslatedText: "n"},
	}
	if c, _ := b.Lookup(3); c.DetectedText != "wide" {
		t.Fatalf("overlap: want wide got %q", c.DetectedText)
	}
}

func TestBufferPlaceholdersAndNegativeDuration(t *testing.T) {
	b := NewBuffer(2.0)
	seg, _ := b.Append("  ", "", -500)
	if seg.DetectedText != domain.PlaceholderNoText || seg.TranslatedText != domain.PlaceholderNoTranslation {
		t.Fatalf("placeholders: got=%+v", seg)
	}
	if seg.End < seg.Start || seg.End != 2.0 {
		t.Fatalf("negative duration should clamp: got=[%v,%v]", seg.Start, seg.End)
	}
}

func TestBufferLookupIdempotent(t *testing.T) {
	b := NewBuffer(2.0)
	b.Append("x", "y", secs(1))
	first, ok1 := b.Lookup(1.5)
	for i := 0; i < 10; i++ {
		again, ok := b.Lookup(1.5)
		if again != first || ok != ok1 {
			t.Fatalf("lookup changed: %+v/%v vs %+v/%v", again, ok, first, ok1)
		}
	}
}

func TestBufferFreezeKeepsSegments(t *testing.T) {
	b := NewBuffer(2.0)
	b.Append("kept", "k", secs(1))
	before := b.Segments()
	b.Freeze()
	if _, ok := b.Append("late", "l", secs(1)); ok {
		t.Fatalf("append after freeze accepted")
	}
	after := b.Segments()
	if len(after) != len(before) || after[0] != before[0] {
		t.Fatalf("frozen buffer changed: %+v", after)
	}
	if c, ok := b.Lookup(0.5); !ok || c.DetectedText != "kept" {
		t.Fatalf("frozen lookup: %+v ok=%v", c, ok)
	}
}

func TestBufferConcurrentAppendAndLookup(t *testing.T) {
	b := NewBuffer(2.0)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			b.Append("a", "b", secs(0.1))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _ = b.Lookup(float64(i))
			_ = b.Len()
		}
	}()
	wg.Wait()
	if b.Len() != 500 {
		t.Fatalf("len: want=500 got=%d", b.Len())
	}
}

func TestNilBufferLookupReturnsSentinel(t *testing.T) {
	var b *Buffer
	if c, ok := b.Lookup(1); ok || c != domain.NoCaption {
		t.Fatalf("nil buffer: got=%+v ok=%v", c, ok)
	}
}
