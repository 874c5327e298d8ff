package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/pevans/harvest/fetcher"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultSection is the section label given to PDF links that appear before
// any heading.
const DefaultSection = "General"

// MaxNameLength is the longest file name stem, in runes, that
// SanitizeFilename and PDFFileName will produce.
const MaxNameLength = 150

// ErrNoBody is returned when a fetched page has no document body to search.
var ErrNoBody = errors.New("no <body> element found")

// Getter performs a single page fetch. *fetcher.Fetcher satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

// PDFLink is a PDF anchor found while walking a listing page, along with
// the section heading it appeared under and the file name synthesized for
// it.
type PDFLink struct {
	URL      string
	FileName string
	Section  string
	Text     string
}

// Discoverer finds same-domain links and PDF links on a single page.
type Discoverer struct {
	getter      Getter
	logger      *log.Logger
	headingTags map[string]bool
}

// New creates a Discoverer. headingTags lists the element names that start a
// new PDF section; "h3" is used when none are given.
func New(getter Getter, logger *log.Logger, headingTags ...string) *Discoverer {
	if logger == nil {
		logger = log.Default()
	}
	if len(headingTags) == 0 {
		headingTags = []string{"h3"}
	}

	tags := make(map[string]bool, len(headingTags))
	for _, tag := range headingTags {
		tags[strings.ToLower(strings.TrimSpace(tag))] = true
	}

	return &Discoverer{
		getter:      getter,
		logger:      logger,
		headingTags: tags,
	}
}

// IsValidURL reports whether rawURL is an absolute URL with both a scheme
// and a host.
func IsValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// FetchDocument fetches a page and parses it with goquery. Responses that are
// not HTML, and pages without a <body> tag, yield ErrNoBody.
func FetchDocument(ctx context.Context, getter Getter, pageURL string) (*goquery.Document, error) {
	resp, err := getter.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	doc, err := ParseResponse(resp)
	if err != nil {
		return nil, err
	}
	if !HasBodyTag(resp.Body) {
		return nil, ErrNoBody
	}

	return doc, nil
}

// ParseResponse parses an already fetched page. Non-HTML responses yield
// ErrNoBody. The parser synthesizes a body for pages that lack one, so
// callers that search the body must check HasBodyTag themselves.
func ParseResponse(resp *fetcher.Response) (*goquery.Document, error) {
	if !resp.IsHTML() {
		return nil, fmt.Errorf("%w (content type %q)", ErrNoBody, resp.ContentType)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, nil
}

// HasBodyTag reports whether page contains an explicit <body> start tag.
func HasBodyTag(page []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Body {
				return true
			}
		}
	}
}

// Links fetches baseURL and returns the same-domain links found in its body.
// Failures are logged and produce an empty result so that a crawl can still
// proceed with just the base URL.
func (d *Discoverer) Links(ctx context.Context, baseURL string) []string {
	doc, err := FetchDocument(ctx, d.getter, baseURL)
	if err != nil {
		d.logNoLinks(baseURL, err)
		return nil
	}

	return LinksFromDocument(doc, baseURL)
}

func (d *Discoverer) logNoLinks(baseURL string, err error) {
	if errors.Is(err, ErrNoBody) {
		d.logger.Warn("No <body> tag found", "url", baseURL, "err", err)
		return
	}
	d.logger.Error("Failed to get body links", "url", baseURL, "err", err)
}

// LinksFromDocument returns every anchor target in the document body that
// resolves to a valid URL on exactly the same host as baseURL. Links are
// deduplicated and returned in document order. Fragments are part of the
// link, so "/page#a" and "/page#b" are two entries.
func LinksFromDocument(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	links := []string{}

	doc.Find("body a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolve(base, href)
		if !ok || !IsValidURL(link) {
			return
		}

		u, err := url.Parse(link)
		if err != nil || u.Host != base.Host {
			return
		}

		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	return links
}

// PDFLinks fetches a listing page and returns its PDF links. Unlike Links, a
// failed fetch is returned to the caller since there is nothing to harvest
// without the listing.
func (d *Discoverer) PDFLinks(ctx context.Context, baseURL string) ([]PDFLink, error) {
	doc, err := FetchDocument(ctx, d.getter, baseURL)
	if err != nil {
		return nil, err
	}

	return d.PDFLinksFromDocument(doc, baseURL), nil
}

// PDFLinksFromDocument walks the document body in order. Each heading
// replaces the current section label; each anchor pointing at a PDF is
// emitted with a file name built from that label and the anchor text.
// Repeated links are emitted once per occurrence.
func (d *Discoverer) PDFLinksFromDocument(doc *goquery.Document, baseURL string) []PDFLink {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	section := DefaultSection
	links := []PDFLink{}

	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if d.headingTags[tag] {
			section = normalizeSpace(s.Text())
			return
		}
		if tag != "a" {
			return
		}

		href, ok := s.Attr("href")
		if !ok || !isPDFHref(href) {
			return
		}

		link, ok := resolve(base, href)
		if !ok || !IsValidURL(link) {
			return
		}

		text := normalizeSpace(s.Text())
		links = append(links, PDFLink{
			URL:      link,
			FileName: PDFFileName(section, text),
			Section:  section,
			Text:     text,
		})
	})

	return links
}

// PDFFileName builds "<section> - <text>.pdf" from sanitized parts.
func PDFFileName(section, text string) string {
	if strings.TrimSpace(text) == "" {
		text = "untitled"
	}

	stem := SanitizeFilename(section) + " - " + SanitizeFilename(text)
	return truncateRunes(stem, MaxNameLength) + ".pdf"
}

var illegalFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// SanitizeFilename removes characters that are illegal in file names,
// replaces runs of whitespace with a single underscore and truncates the
// result to MaxNameLength runes. An empty result becomes "untitled".
func SanitizeFilename(name string) string {
	name = illegalFilenameChars.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), "_")
	name = truncateRunes(name, MaxNameLength)
	if name == "" {
		return "untitled"
	}
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// resolve turns href into an absolute URL relative to base.
func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// isPDFHref reports whether the path of href ends in ".pdf", ignoring case
// and any query string or fragment.
func isPDFHref(href string) bool {
	href = strings.TrimSpace(href)
	path := href
	if u, err := url.Parse(href); err == nil {
		path = u.Path
	}
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
