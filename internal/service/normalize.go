package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery applies NFKC, drops control characters and trims surrounding whitespace.
func NormalizeQuery(q string) string {
	q = norm.NFKC.String(q)
	q = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, q)
	return strings.TrimSpace(q)
}

// lowerQuery produces the case-insensitive form used for cache keys. It is a
// plain lowercase mapping like ILIKE, so "ß" and "ss" stay distinct.
// A Caser keeps state, so one is built per call.
func lowerQuery(q string) string {
	return cases.Lower(language.Und).String(q)
}
