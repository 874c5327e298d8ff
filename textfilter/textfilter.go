// Package textfilter strips unwanted URLs from harvested text.
package textfilter

import (
	"regexp"
	"strings"
)

// SocialMediaDomains are the domains removed by default.
var SocialMediaDomains = []string{
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"linkedin.com",
	"tiktok.com",
	"youtube.com",
	"pinterest.com",
	"snapchat.com",
	"discord.com",
	"reddit.com",
}

// URLFilter removes http(s) URLs on a fixed set of domains.
type URLFilter struct {
	pattern *regexp.Regexp
}

// NewURLFilter builds a filter for domains. With no domains the filter
// leaves text untouched.
func NewURLFilter(domains []string) *URLFilter {
	quoted := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.TrimSpace(domain)
		if domain == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(domain))
	}
	if len(quoted) == 0 {
		return &URLFilter{}
	}

	pattern := `https?://(?:www\.)?(?:` + strings.Join(quoted, "|") + `)\S*`
	return &URLFilter{pattern: regexp.MustCompile(pattern)}
}

// Apply returns text with every matching URL removed. Only the URL itself
// is removed; surrounding whitespace is kept.
func (f *URLFilter) Apply(text string) string {
	if f.pattern == nil {
		return text
	}
	return f.pattern.ReplaceAllString(text, "")
}

// RemoveSocialMediaURLs removes URLs on SocialMediaDomains from text.
func RemoveSocialMediaURLs(text string) string {
	return defaultFilter.Apply(text)
}

var defaultFilter = NewURLFilter(SocialMediaDomains)
