package core

import (
	"regexp"
	"strings"
)

// MaxSlugLength bounds the length of generated slugs.
const MaxSlugLength = 50

var (
	slugStripRegex  = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaceRegex  = regexp.MustCompile(`\s+`)
	slugHyphenRegex = regexp.MustCompile(`-+`)
)

// Slug derives a URL path segment from a school name. It never fails and is
// not unique; the store's conflict key is what identifies a school.
func Slug(name string) string {
	s := strings.TrimSpace(strings.ToLower(name))
	s = slugStripRegex.ReplaceAllString(s, "")
	s = slugSpaceRegex.ReplaceAllString(s, "-")
	s = slugHyphenRegex.ReplaceAllString(s, "-")
	if len(s) > MaxSlugLength {
		s = s[:MaxSlugLength]
	}
	return s
}
