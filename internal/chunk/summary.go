package chunk

import (
	"strings"
	"unicode/utf8"
)

// summaryTerminators end a sentence for extractive summaries. The set is
// wider than the boundary separators so CJK and Arabic prose summarize too.
const summaryTerminators = ".!?。؟"

// extractiveSummary takes whole sentences from the front of text until the
// summary budget is met. Texts without sentence terminators fall back to a
// plain prefix. The result may run a few runes over budget before the
// word-boundary truncation trims it.
func (c *Chunker) extractiveSummary(text string) string {
	if text == "" {
		return ""
	}
	maxChars := c.cfg.SummaryMaxChars

	var sentences []string
	joined := 0
	var current []rune
	for _, r := range text {
		current = append(current, r)
		if !strings.ContainsRune(summaryTerminators, r) {
			continue
		}
		sentence := strings.TrimSpace(string(current))
		current = current[:0]
		if len(sentences) > 0 {
			joined++
		}
		joined += utf8.RuneCountInString(sentence)
		sentences = append(sentences, sentence)
		if joined >= maxChars {
			break
		}
	}

	summary := strings.Join(sentences, " ")
	if utf8.RuneCountInString(summary) > maxChars {
		truncated := string([]rune(summary)[:maxChars])
		if i := strings.LastIndex(truncated, " "); i >= 0 {
			truncated = truncated[:i]
		}
		summary = truncated + "..."
	}
	if summary == "" {
		runes := []rune(text)
		if len(runes) > maxChars {
			runes = runes[:maxChars]
		}
		summary = string(runes) + "..."
	}
	return summary
}
