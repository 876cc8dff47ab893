package captions

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/yungbote/audiolens-backend/internal/domain"
)

// TextKind selects which text of a segment is rendered.
type TextKind string

const (
	TextDetected   TextKind = "detected"
	TextTranslated TextKind = "translated"
)

func ParseTextKind(raw string) (TextKind, error) {
	switch TextKind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TextTranslated:
		return TextTranslated, nil
	case TextDetected:
		return TextDetected, nil
	default:
		return "", fmt.Errorf("unknown caption text %q", raw)
	}
}

func (k TextKind) pick(seg domain.CaptionSegment) string {
	if k == TextDetected {
		return seg.DetectedText
	}
	return seg.TranslatedText
}

// cueText folds text into the lines of one cue: line breaks of any style
// collapse, blank lines go away and "-->" cannot start a timing line. A cue
// with no text left gets a single space so its block stays intact.
func cueText(text string) string {
	text = strings.ReplaceAll(text, "-->", "->")
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return " "
	}
	return strings.Join(out, "\n")
}

func WriteWebVTT(w io.Writer, segs []domain.CaptionSegment, kind TextKind) error {
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "WEBVTT\n")
	for i, seg := range segs {
		fmt.Fprintf(bw, "\n%d\n%s --> %s\n%s\n", i+1, timestamp(seg.Start, "."), timestamp(seg.End, "."), cueText(kind.pick(seg)))
	}
	return bw.Flush()
}

func WriteSRT(w io.Writer, segs []domain.CaptionSegment, kind TextKind) error {
	bw := bufio.NewWriter(w)
	for i, seg := range segs {
		if i > 0 {
			fmt.Fprint(bw, "\n")
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n", i+1, timestamp(seg.Start, ","), timestamp(seg.End, ","), cueText(kind.pick(seg)))
	}
	return bw.Flush()
}

func timestamp(sec float64, msSep string) string {
	if sec < 0 {
		sec = 0
	}
	total := int64(math.Round(sec * 1000))
	ms := total % 1000
	s := (total / 1000) % 60
	m := (total / 60000) % 60
	h := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, msSep, ms)
}
