package captions

import (
	"bytes"
	"strings"
	"testing"

	"github.com/yungbote/audiolens-backend/internal/domain"
)

var exportSegs = []domain.CaptionSegment{
	{Start: 0, End: 5, DetectedText: "hola", TranslatedText: "hello"},
	{Start: 5, End: 3725.5, DetectedText: "adiós", TranslatedText: "bye"},
}

func TestWriteWebVTT(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWebVTT(&buf, exportSegs, TextTranslated); err != nil {
		t.Fatalf("WriteWebVTT: %v", err)
	}
	want := "WEBVTT\n\n1\n00:00:00.000 --> 00:00:05.000\nhello\n\n2\n00:00:05.000 --> 01:02:05.500\nbye\n"
	if buf.String() != want {
		t.Fatalf("vtt mismatch:\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteSRTDetected(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSRT(&buf, exportSegs, TextDetected); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:05,000\nhola\n\n2\n00:00:05,000 --> 01:02:05,500\nadiós\n"
	if buf.String() != want {
		t.Fatalf("srt mismatch:\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestParseTextKind(t *testing.T) {
	if k, err := ParseTextKind(""); err != nil || k != TextTranslated {
		t.Fatalf("default: %v %v", k, err)
	}
	if k, err := ParseTextKind("Detected"); err != nil || k != TextDetected {
		t.Fatalf("detected: %v %v", k, err)
	}
	if _, err := ParseTextKind("both"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestExportKeepsMultiLineTextInsideOneCue(t *testing.T) {
	segs := []domain.CaptionSegment{
		{Start: 0, End: 2, TranslatedText: "Hello.\n\n2\n00:00:09.000 --> 00:00:10.000\ninjected"},
		{Start: 2, End: 4, TranslatedText: "first line\r\n  \r\nsecond line"},
		{Start: 4, End: 6, TranslatedText: "\n\n"},
	}

	var vtt bytes.Buffer
	if err := WriteWebVTT(&vtt, segs, TextTranslated); err != nil {
		t.Fatalf("WriteWebVTT: %v", err)
	}
	wantVTT := "WEBVTT\n\n" +
		"1\n00:00:00.000 --> 00:00:02.000\nHello.\n2\n00:00:09.000 -> 00:00:10.000\ninjected\n\n" +
		"2\n00:00:02.000 --> 00:00:04.000\nfirst line\nsecond line\n\n" +
		"3\n00:00:04.000 --> 00:00:06.000\n \n"
	if vtt.String() != wantVTT {
		t.Fatalf("vtt mismatch:\n%q\nwant\n%q", vtt.String(), wantVTT)
	}

	var srt bytes.Buffer
	if err := WriteSRT(&srt, segs, TextTranslated); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}
	if got := strings.Count(srt.String(), " --> "); got != len(segs) {
		t.Fatalf("srt timing lines = %d, want %d:\n%s", got, len(segs), srt.String())
	}
	if strings.Contains(srt.String(), "\n\n2\n00:00:09") {
		t.Fatalf("translated text opened a cue:\n%s", srt.String())
	}
}
