package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxFileNameLen    = 255
	maxSearchQueryLen = 100
)

var (
	// strictPolicy allows no elements at all: tags are dropped, text is kept,
	// script/style bodies are discarded.
	strictPolicy = bluemonday.StrictPolicy()

	markupChars   = strings.NewReplacer("<", "", ">", "", "'", "", `"`, "", "&", "")
	unsafeSchemes = regexp.MustCompile(`(?i)javascript:|data:|vbscript:`)

	fileNameDisallowed = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	underscoreRuns     = regexp.MustCompile(`_+`)
	searchDisallowed   = regexp.MustCompile(`[^\w\s.\-]`)
)

// Text returns v with all markup removed. Non-string input yields "".
func Text(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return cleanText(s)
}

func cleanText(s string) string {
	if s == "" {
		return ""
	}
	// The policy entity-escapes the text it keeps; undo that before the
	// character pass or "&" would leave "amp;" behind.
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	s = markupChars.Replace(s)
	// Removing one scheme can splice another together ("javajavascript:script:").
	for unsafeSchemes.MatchString(s) {
		s = unsafeSchemes.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// FileName reduces name to [A-Za-z0-9._-], collapsing replacement runs and
// trimming underscores at both ends.
func FileName(name string) string {
	s := cleanText(name)
	s = fileNameDisallowed.ReplaceAllString(s, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return truncateRunes(s, maxFileNameLen)
}

// SearchQuery keeps word characters, whitespace, dots and dashes.
func SearchQuery(q string) string {
	s := cleanText(q)
	s = searchDisallowed.ReplaceAllString(s, "")
	return truncateRunes(s, maxSearchQueryLen)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
