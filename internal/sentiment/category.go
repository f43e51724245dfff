package sentiment

import (
	"strings"
	"unicode/utf8"

	"github.com/pscheid92/databoard/internal/domain"
)

var placeholderPrefixes = []string{"test", "asdf", "qwer", "123", "aaa"}

// Categorize labels text. Rules are checked in order, first match wins:
// placeholder prefix (case-insensitive), one character repeated three or more
// times, a single character, more than two space-separated pieces, otherwise neutral.
func Categorize(text string) domain.Category {
	switch {
	case hasPlaceholderPrefix(text):
		return domain.CategoryTest
	case isRepeatedRune(text):
		return domain.CategoryRepetitive
	case utf8.RuneCountInString(text) == 1:
		return domain.CategoryMinimal
	case len(strings.Split(text, " ")) > 2:
		return domain.CategoryExpressive
	default:
		return domain.CategoryNeutral
	}
}

// hasPlaceholderPrefix folds ASCII letters only, so non-ASCII look-alikes never match.
func hasPlaceholderPrefix(text string) bool {
	for _, prefix := range placeholderPrefixes {
		if len(text) < len(prefix) {
			continue
		}
		if asciiEqualFold(text[:len(prefix)], prefix) {
			return true
		}
	}
	return false
}

func asciiEqualFold(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if asciiLower(a[i]) != asciiLower(b[i]) {
			return false
		}
	}
	return true
}

func asciiLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isRepeatedRune(text string) bool {
	if utf8.RuneCountInString(text) < 3 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(text)
	if isLineTerminator(first) {
		return false
	}
	for _, r := range text {
		if r != first {
			return false
		}
	}
	return true
}

func isLineTerminator(r rune) bool {
	return r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029'
}
