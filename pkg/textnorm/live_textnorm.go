// Package textnorm folds chat text into a comparable form: lowercase,
// Vietnamese diacritics removed, punctuation collapsed to single spaces.
// Question and exclamation marks and emoji survive as standalone tokens
// because they carry intent and emotion signal.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// đ has no combining mark to strip, so it is mapped explicitly.
var letterFold = strings.NewReplacer("đ", "d", "Đ", "d")

// Fold lowercases s and strips diacritical marks.
func Fold(s string) string {
	s = letterFold.Replace(strings.ToLower(s))
	// transform chains hold state, one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize folds s and rewrites it as space separated tokens with a
// leading and trailing space, so that a padded keyword only matches on
// token boundaries.
func Normalize(s string) string {
	folded := Fold(s)

	var b strings.Builder
	b.Grow(len(folded) + 2)
	b.WriteByte(' ')
	sep := true

	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			sep = false
		case isSignal(r):
			if !sep {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			b.WriteByte(' ')
			sep = true
		default:
			if !sep {
				b.WriteByte(' ')
				sep = true
			}
		}
	}
	if !sep {
		b.WriteByte(' ')
	}
	return b.String()
}

// Key is the dedup form of a message: Normalize without padding.
func Key(s string) string {
	return strings.TrimSpace(Normalize(s))
}

func isSignal(r rune) bool {
	return r == '?' || r == '!' || unicode.Is(unicode.So, r)
}
