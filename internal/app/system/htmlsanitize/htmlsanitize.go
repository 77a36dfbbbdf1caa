// internal/app/system/htmlsanitize/htmlsanitize.go
package htmlsanitize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// rich allows the formatting a group description may carry.
	rich = func() *bluemonday.Policy {
		p := bluemonday.UGCPolicy()
		p.AllowElements("p", "br", "strong", "em", "b", "i", "u", "ul", "ol", "li", "blockquote")
		return p
	}()

	strict = bluemonday.StrictPolicy()

	tagRE = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
)

// Sanitize removes unsafe markup but keeps basic formatting.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return rich.Sanitize(s)
}

// StripTags removes all markup and returns plain text. Entities the strict
// policy escapes are decoded again so "A & B" round-trips unchanged.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains nothing that looks like a tag.
func IsPlainText(s string) bool {
	return !tagRE.MatchString(s)
}
