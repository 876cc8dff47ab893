package main

import "testing"

func TestCLIHasNoServeCommand(t *testing.T) {
	parser, err := newParser()
	if err != nil {
		t.Fatalf("newParser: %v", err)
	}
	if _, err := parser.Parse([]string{"serve"}); err == nil {
		t.Fatal("serve must only be reachable through cmd/main.go")
	}
	if _, err := parser.Parse(nil); err == nil {
		t.Fatal("expected an error without a command")
	}
}

func TestCLIParsesCaption(t *testing.T) {
	parser, err := newParser()
	if err != nil {
		t.Fatalf("newParser: %v", err)
	}
	kctx, err := parser.Parse([]string{"caption", "clip.mp4", "-f", "srt", "-t", "detected", "-l", "de-DE"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if kctx.Command() != "caption <video>" {
		t.Fatalf("command = %q", kctx.Command())
	}
	if cli.Caption.Video != "clip.mp4" || cli.Caption.Format != "srt" || cli.Caption.Text != "detected" || cli.Caption.TargetLanguage != "de-DE" {
		t.Fatalf("caption flags = %+v", cli.Caption)
	}
}
