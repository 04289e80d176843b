// Package normalize canonicalizes the messy text that arrives in spreadsheet
// exports: header names with accent and apostrophe variants, free text with
// non-breaking spaces, and categorical labels typed by hand in two languages.
//
// Everything here is pure string-in/string-out so it can be exercised without
// a database.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldChain decomposes, strips nonspacing marks (accents), and recomposes, so
// "Criticité" becomes "Criticite".
var foldChain = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Fold strips diacritics from s, mapping accented letters to their base form.
func Fold(s string) string {
	out, _, err := transform.String(foldChain, s)
	if err != nil {
		return s
	}
	return out
}

// apostrophes maps the curly and backtick variants seen in exports onto the
// plain ASCII apostrophe.
var apostrophes = strings.NewReplacer("’", "'", "`", "'")

// Header canonicalizes a column header for alias matching: trim, lowercase,
// fold accents, unify apostrophes, and collapse internal whitespace runs
// (including non-breaking spaces) to a single space.
func Header(s string) string {
	s = apostrophes.Replace(strings.ToLower(s))
	s = Fold(s)
	return strings.Join(strings.Fields(s), " ")
}

// Text canonicalizes free text for identity and equality comparison: trim,
// collapse whitespace runs, and unify apostrophes. Case and accents are kept;
// two question texts that differ only in spacing or quote style compare equal.
func Text(s string) string {
	s = apostrophes.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Slug converts a lookup-entity name into a URL-safe slug: accents folded,
// non-alphanumeric runs collapsed to single dashes.
func Slug(s string) string {
	s = strings.ToLower(Fold(strings.TrimSpace(s)))
	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Clip truncates s to at most max runes. max <= 0 means no limit.
func Clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
