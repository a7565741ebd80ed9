package instagram

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// PlaceholderUsername is used when no account name can be parsed
	PlaceholderUsername = "instagram_user"
	// PlaceholderCaption is used when the page has no description
	PlaceholderCaption = "Instagram content"
)

// OpenGraph holds the og:* tags of a page
type OpenGraph struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Video       string `json:"video,omitempty"`
}

// OpenGraphFromMap builds an OpenGraph from property/content pairs, as
// collected from a live DOM.
func OpenGraphFromMap(tags map[string]string) OpenGraph {
	og := OpenGraph{
		Title:       strings.TrimSpace(tags["og:title"]),
		Description: strings.TrimSpace(tags["og:description"]),
		Image:       strings.TrimSpace(tags["og:image"]),
		Video:       strings.TrimSpace(tags["og:video"]),
	}
	if og.Video == "" {
		og.Video = strings.TrimSpace(tags["og:video:secure_url"])
	}
	return og
}

// ParsePage reads the Open Graph tags and the concatenated inline script
// text from an HTML document.
func ParsePage(r io.Reader) (OpenGraph, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return OpenGraph{}, "", err
	}

	tags := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		prop, ok := s.Attr("property")
		if !ok {
			prop, ok = s.Attr("name")
		}
		if !ok || !strings.HasPrefix(prop, "og:") {
			return
		}
		if _, dup := tags[prop]; dup {
			return
		}
		content, _ := s.Attr("content")
		tags[prop] = content
	})

	var scripts strings.Builder
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		scripts.WriteString(s.Text())
		scripts.WriteByte('\n')
	})

	return OpenGraphFromMap(tags), scripts.String(), nil
}

var (
	onInstagramRe = regexp.MustCompile(`^\s*(.+?)\s+on Instagram`)
	handleRe      = regexp.MustCompile(`@([A-Za-z0-9._]{1,30})`)
	safeNameRe    = regexp.MustCompile(`[^A-Za-z0-9._]+`)

	engagementPrefixRe = regexp.MustCompile(`^\s*([0-9][0-9,]*|[0-9.]+[KkMm]) likes?,\s*([0-9][0-9,]*|[0-9.]+[KkMm]) comments?\s*-\s*.+?\s+on\s+[^:]+:\s*`)
)

// ParseUsername extracts the account name from an og:title, falling back to
// the story username in pageURL and finally to PlaceholderUsername.
func ParseUsername(title, pageURL string) string {
	if m := onInstagramRe.FindStringSubmatch(title); m != nil {
		name := m[1]
		if h := handleRe.FindStringSubmatch(name); h != nil {
			return h[1]
		}
		if cleaned := strings.Trim(safeNameRe.ReplaceAllString(name, "_"), "_"); cleaned != "" {
			return cleaned
		}
	}
	if h := handleRe.FindStringSubmatch(title); h != nil {
		return h[1]
	}
	if u := SanitizeUsername(StoryUsername(pageURL)); IsValidUsername(u) {
		return u
	}
	return PlaceholderUsername
}

// ParseCaption returns the caption from an og:description with the leading
// "N likes, M comments - user on date:" prefix and wrapping quotes removed.
func ParseCaption(description string) string {
	caption := strings.TrimSpace(engagementPrefixRe.ReplaceAllString(description, ""))
	caption = strings.TrimSpace(strings.Trim(caption, `"“”`))
	if caption == "" {
		return PlaceholderCaption
	}
	return caption
}

// ParseEngagement reads exact like and comment counts from the
// og:description prefix. Abbreviated counts such as 1.2K are not exact and
// are reported as unavailable.
func ParseEngagement(description string) (likes, comments *int) {
	m := engagementPrefixRe.FindStringSubmatch(description)
	if m == nil {
		return nil, nil
	}
	return exactCount(m[1]), exactCount(m[2])
}

func exactCount(s string) *int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}
