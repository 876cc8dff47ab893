package promptstyle

import "strings"

const marker = "AUDIOLENS_PROMPT_STYLE_V1"

// ApplySystem prepends the shared guidance block to a system prompt. Prompts
// that already carry the block are returned unchanged.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" {
		return base
	}
	if strings.Contains(base, marker) {
		return base
	}
	mode = strings.ToLower(strings.TrimSpace(mode))

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou work inside a live captioning pipeline.")
	b.WriteString("\nOutput only the requested text.")
	b.WriteString("\nDo not add notes, quotes, or commentary.")
	if mode == "translation" {
		b.WriteString("\nPreserve meaning and tone; keep names and numbers as spoken.")
		b.WriteString("\nIf the input is already in the target language, return it unchanged.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return strings.TrimSpace(b.String())
}
