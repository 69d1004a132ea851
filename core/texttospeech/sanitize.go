package texttospeech

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	codeBlockPattern  = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern = regexp.MustCompile("`([^`]*)`")
	linkPattern       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingPattern    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasisPattern   = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
	bulletPattern     = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Sanitize strips formatting that reads badly aloud. Markdown markers, code
// blocks, and emoji are removed; link text survives without its URL.
func Sanitize(text string) string {
	text = codeBlockPattern.ReplaceAllString(text, " ")
	text = inlineCodePattern.ReplaceAllString(text, "$1")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = headingPattern.ReplaceAllString(text, "")
	text = emphasisPattern.ReplaceAllString(text, "$2")
	text = bulletPattern.ReplaceAllString(text, "")

	text = strings.Map(func(r rune) rune {
		if isEmoji(r) {
			return -1
		}
		return r
	}, text)

	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r == 0xFE0F || r == 0x200D: // variation selector, zero-width joiner
		return true
	case unicode.Is(unicode.Sk, r) && r > 0x2000:
		return true
	}
	return false
}
