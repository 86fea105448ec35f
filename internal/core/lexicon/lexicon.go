// Package lexicon validates dictionary input and derives the case-folded key
// used for duplicate detection
package lexicon

import (
	"regexp"
	"strings"
	"unicode/utf8"

	perr "vocabot/internal/platform/errors"

	"golang.org/x/text/cases"
)

// MaxLen bounds words and translations, in runes
const MaxLen = 255

// wordPattern accepts latin words and short phrases: optional leading capital,
// apostrophes, and words joined by spaces, hyphens or commas
var wordPattern = regexp.MustCompile(`^([A-Z]?[a-z]*'?[a-z]*)(,?( |-)?,?([A-z]|[a-z]?([a-z]*)'?[a-z]*))*$`)

// Normalize trims s and collapses inner whitespace runs to one space
func Normalize(s string) string { return strings.Join(strings.Fields(s), " ") }

// ValidWord reports whether s (after Normalize) is an acceptable dictionary word
func ValidWord(s string) bool {
	s = Normalize(s)
	return s != "" && utf8.RuneCountInString(s) <= MaxLen && wordPattern.MatchString(s)
}

// CheckWord returns a Validation error for field when s is not an acceptable word
func CheckWord(field, s string) error {
	if Normalize(s) == "" {
		return perr.Validationf(field, "%s is empty", field)
	}
	if !ValidWord(s) {
		return perr.Validationf(field, "%s does not look like a word", field)
	}
	return nil
}

// CheckText accepts any non-empty text up to MaxLen; used for translations and queries
func CheckText(field, s string) error {
	s = Normalize(s)
	switch {
	case s == "":
		return perr.Validationf(field, "%s is empty", field)
	case utf8.RuneCountInString(s) > MaxLen:
		return perr.Validationf(field, "%s is longer than %d characters", field, MaxLen)
	}
	return nil
}

// Key is the case-folded, normalized form two entries are compared by.
// A Caser keeps state, so each call gets its own.
func Key(s string) string { return cases.Fold().String(Normalize(s)) }

// Same reports whether a and b fold to the same key
func Same(a, b string) bool { return Key(a) == Key(b) }
