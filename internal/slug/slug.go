// Package slug derives URL slugs and display names for articles, sources and tags.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const separator = "-"

var (
	underscores  = regexp.MustCompile(`_+`)
	disallowed   = regexp.MustCompile(`[^-\pL\pN\s]+`)
	separatorRun = regexp.MustCompile(`[-\s]+`)
)

// Make lowercases s, folds accents to ASCII, drops punctuation and joins words with hyphens.
// "Crime & Courts: Today" becomes "crime-courts-today".
func Make(s string) string {
	s = fold(s)
	s = underscores.ReplaceAllString(s, separator)
	s = strings.ReplaceAll(s, "@", separator+"at"+separator)
	s = disallowed.ReplaceAllString(strings.ToLower(s), "")
	s = separatorRun.ReplaceAllString(s, separator)
	return strings.Trim(s, separator)
}

// Title upper-cases the first letter of every word. Dots inside a word do not start a new one,
// so "torontostar.com" becomes "Torontostar.com".
func Title(s string) string {
	return cases.Title(language.Und).String(s)
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
