package instagram

import (
	"net/url"
	"regexp"
	"strings"
)

// ContentType is the kind of Instagram page a URL points at
type ContentType string

const (
	ContentTypePost  ContentType = "post"
	ContentTypeReel  ContentType = "reel"
	ContentTypeStory ContentType = "story"
	ContentTypeIGTV  ContentType = "igtv"
)

// IsVideo reports whether the content type must resolve to video media
func (t ContentType) IsVideo() bool {
	return t == ContentTypeReel || t == ContentTypeIGTV
}

func (t ContentType) String() string {
	return string(t)
}

// ParseContentType converts a stored string back into a ContentType
func ParseContentType(s string) (ContentType, bool) {
	switch ContentType(s) {
	case ContentTypePost, ContentTypeReel, ContentTypeStory, ContentTypeIGTV:
		return ContentType(s), true
	default:
		return "", false
	}
}

var validURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(?:www\.|m\.)?instagram\.com/p/[A-Za-z0-9_-]+/?(?:\?[^#]*)?(?:#.*)?$`),
	regexp.MustCompile(`^https?://(?:www\.|m\.)?instagram\.com/reels?/[A-Za-z0-9_-]+/?(?:\?[^#]*)?(?:#.*)?$`),
	regexp.MustCompile(`^https?://(?:www\.|m\.)?instagram\.com/stories/[A-Za-z0-9._]+/[0-9]+/?(?:\?[^#]*)?(?:#.*)?$`),
	regexp.MustCompile(`^https?://(?:www\.|m\.)?instagram\.com/tv/[A-Za-z0-9_-]+/?(?:\?[^#]*)?(?:#.*)?$`),
}

// ValidateURL reports whether rawURL is a post, reel, story or IGTV URL.
// It is the only gate before any network call.
func ValidateURL(rawURL string) bool {
	s := strings.TrimSpace(rawURL)
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	for _, re := range validURLPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Classify derives the content type from the URL path. Segments are checked
// in the order reel, stories, tv, p; anything else is treated as a post.
func Classify(rawURL string) ContentType {
	segments := pathSegments(rawURL)
	has := func(names ...string) bool {
		for _, seg := range segments {
			for _, name := range names {
				if seg == name {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has("reel", "reels"):
		return ContentTypeReel
	case has("stories"):
		return ContentTypeStory
	case has("tv"):
		return ContentTypeIGTV
	default:
		return ContentTypePost
	}
}

func pathSegments(rawURL string) []string {
	path := rawURL
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		path = u.Path
	}
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, strings.ToLower(seg))
		}
	}
	return segments
}

// trackingParams are dropped from cache keys; utm_* is matched by prefix
var trackingParams = map[string]bool{
	"igsh":   true,
	"igshid": true,
	"hl":     true,
	"fbclid": true,
}

// NormalizeURL strips tracking parameters and the fragment and lower-cases
// the host. Unparsable input is returned unchanged.
func NormalizeURL(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	query := u.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if trackingParams[lower] || strings.HasPrefix(lower, "utm_") {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode()

	return u.String()
}

// Shortcode returns the media code for post, reel and IGTV URLs
func Shortcode(rawURL string) string {
	segments := pathSegments(rawURL)
	for i, seg := range segments {
		switch seg {
		case "p", "reel", "reels", "tv":
			if i+1 < len(segments) {
				return originalCase(rawURL, segments[i+1])
			}
		}
	}
	return ""
}

// StoryUsername returns the account segment of a story URL
func StoryUsername(rawURL string) string {
	segments := pathSegments(rawURL)
	for i, seg := range segments {
		if seg == "stories" && i+1 < len(segments) {
			return originalCase(rawURL, segments[i+1])
		}
	}
	return ""
}

// originalCase recovers the un-lowered spelling of a path segment
func originalCase(rawURL, lowered string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return lowered
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if strings.ToLower(seg) == lowered {
			return seg
		}
	}
	return lowered
}
