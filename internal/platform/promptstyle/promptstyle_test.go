package promptstyle

import (
	"strings"
	"testing"
)

func TestApplySystem(t *testing.T) {
	if got := ApplySystem("  ", "text"); got != "" {
		t.Fatalf("empty prompt: got %q", got)
	}
	once := ApplySystem("Translate from es-ES to en-US.", "translation")
	if !strings.HasPrefix(once, marker) || !strings.HasSuffix(once, "Translate from es-ES to en-US.") {
		t.Fatalf("unexpected prompt: %q", once)
	}
	if !strings.Contains(once, "target language") {
		t.Fatalf("translation guidance missing: %q", once)
	}
	if twice := ApplySystem(once, "translation"); twice != once {
		t.Fatalf("not idempotent")
	}
	if plain := ApplySystem("x", "text"); strings.Contains(plain, "target language") {
		t.Fatalf("translation guidance leaked into text mode")
	}
}
