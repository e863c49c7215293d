package document

import (
	"strings"
	"unicode"
)

// Sanitize derives a collection key from a document name. Anything other
// than a letter, digit or underscore becomes an underscore, except the last
// dot when it sits between two alphanumerics (the extension separator).
func Sanitize(name string) string {
	runes := []rune(name)

	keep := -1
	if i := lastDot(runes); i > 0 && i < len(runes)-1 && isAlnum(runes[i-1]) && isAlnum(runes[i+1]) {
		keep = i
	}

	var b strings.Builder
	b.Grow(len(name))
	for i, r := range runes {
		switch {
		case i == keep, isAlnum(r), r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func lastDot(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '.' {
			return i
		}
	}
	return -1
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
