package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// Lookup defaults for the CPV selector.
const (
	DefaultMaxCodes       = 5
	DefaultMinQueryLength = 3
	InlineResultLimit     = 10
	StandaloneResultLimit = 20
)

// SupportedLocales lists the label languages of the CPV table, in column order.
var SupportedLocales = []language.Tag{
	language.English,
	language.French,
	language.German,
	language.Dutch,
}

var localeMatcher = language.NewMatcher(SupportedLocales)

// ClassificationRecord is one row of the CPV reference table.
// An empty Code marks a malformed row.
type ClassificationRecord struct {
	Code   string
	Labels map[language.Tag]string
}

// NewClassificationRecord builds a record from per-column labels. Empty labels are omitted.
func NewClassificationRecord(code, en, fr, de, nl string) ClassificationRecord {
	rec := ClassificationRecord{
		Code:   strings.TrimSpace(code),
		Labels: make(map[language.Tag]string, len(SupportedLocales)),
	}
	for i, label := range []string{en, fr, de, nl} {
		if label != "" {
			rec.Labels[SupportedLocales[i]] = label
		}
	}
	return rec
}

// HasCode reports whether the record carries a usable key.
func (r ClassificationRecord) HasCode() bool {
	return r.Code != ""
}

// LabelFor returns the label stored for exactly this locale, or "".
func (r ClassificationRecord) LabelFor(tag language.Tag) string {
	return r.Labels[tag]
}

// Label picks the best label for the preferred locales, falling back to English.
func (r ClassificationRecord) Label(preferred ...language.Tag) string {
	if len(preferred) > 0 {
		_, idx, conf := localeMatcher.Match(preferred...)
		if conf != language.No {
			if label := r.Labels[SupportedLocales[idx]]; label != "" {
				return label
			}
		}
	}
	return r.Labels[language.English]
}

// MatchLocale resolves a raw locale string (tag or Accept-Language value) to a supported locale.
func MatchLocale(raw string) language.Tag {
	if raw == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return SupportedLocales[idx]
}
