package lexical

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// RuneRange is an inclusive range of code points the tokenizer keeps in
// addition to letters, digits, and underscore.
type RuneRange struct {
	Lo rune
	Hi rune
}

// DefaultKeepRanges covers the Hebrew block (U+0590..U+05FF). The block
// includes points and cantillation marks that are not classified as letters,
// so it must be kept explicitly.
var DefaultKeepRanges = []RuneRange{{Lo: 0x0590, Hi: 0x05FF}}

// minTokenRunes is the minimum token length, counted in runes.
const minTokenRunes = 2

// Tokenize splits text into lowercase search terms using DefaultKeepRanges.
func Tokenize(text string) []string {
	return TokenizeWith(text, DefaultKeepRanges)
}

// TokenizeWith splits text into lowercase search terms. Letters, digits,
// underscore, and any rune inside keep survive; every other rune becomes a
// separator. Tokens shorter than two runes are dropped. There is no stemming
// and no stop word list.
func TokenizeWith(text string, keep []RuneRange) []string {
	if text == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if isWordRune(r) || inKeepRanges(r, keep) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenRunes {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func inKeepRanges(r rune, keep []RuneRange) bool {
	for _, kr := range keep {
		if r >= kr.Lo && r <= kr.Hi {
			return true
		}
	}
	return false
}
