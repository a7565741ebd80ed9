package instagram

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// CDNHosts are the host suffixes media URLs must belong to
var CDNHosts = []string{"cdninstagram.com", "fbcdn.net"}

var (
	// e.g. /s150x150/, _s320x320_, p150x150
	sizeTokenRe = regexp.MustCompile(`(?:^|[/_=-])[sp]([0-9]{2,4})x([0-9]{2,4})(?:[/_.&-]|$)`)

	genericResourceMarkers = []string{"/rsrc.php", "/static/"}
	profilePictureMarkers  = []string{"/t51.2885-19/", "profile_pic"}
)

// maxThumbnailEdge is the largest size token still considered a thumbnail
const maxThumbnailEdge = 320

// AcceptMediaURL applies the CDN denylist: the URL must be an http(s) URL on
// an Instagram CDN host and must not be a static resource, a small thumbnail
// rendition or a profile picture.
func AcceptMediaURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}

	host := strings.ToLower(u.Hostname())
	onCDN := false
	for _, suffix := range CDNHosts {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			onCDN = true
			break
		}
	}
	if !onCDN {
		return false
	}

	full := u.Path + "?" + u.RawQuery
	lower := strings.ToLower(full)
	for _, marker := range genericResourceMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	for _, marker := range profilePictureMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}

	for _, m := range sizeTokenRe.FindAllStringSubmatch(lower, -1) {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w <= maxThumbnailEdge && h <= maxThumbnailEdge {
			return false
		}
	}

	return true
}

var (
	videoExtensions = map[string]bool{".mp4": true, ".m4v": true, ".mov": true, ".webm": true}
	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true}
)

// ClassifyResponse buckets an observed network response by its declared
// MIME type, then the browser resource type, then the URL extension.
// It returns "" for responses that are neither video nor image.
func ClassifyResponse(rawURL, mimeType, resourceType string) Target {
	mime := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mime, "video/"):
		return TargetVideo
	case strings.HasPrefix(mime, "image/"):
		return TargetImage
	}

	switch strings.ToLower(resourceType) {
	case "media":
		return TargetVideo
	case "image":
		return TargetImage
	}

	return classifyByExtension(rawURL)
}

func classifyByExtension(rawURL string) Target {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch {
	case videoExtensions[ext]:
		return TargetVideo
	case imageExtensions[ext]:
		return TargetImage
	}
	return ""
}

// Candidates holds filtered, de-duplicated media URLs by kind in the order
// they were discovered.
type Candidates struct {
	Videos []string
	Images []string
	seen   map[string]bool
}

// Add decodes raw, applies the denylist and records it under kind.
// It reports whether the URL was accepted as new.
func (c *Candidates) Add(kind Target, raw string) bool {
	if raw == "" {
		return false
	}
	u := DecodeURL(raw)
	if !AcceptMediaURL(u) {
		return false
	}
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	if c.seen[u] {
		return false
	}

	switch kind {
	case TargetVideo:
		c.Videos = append(c.Videos, u)
	case TargetImage:
		c.Images = append(c.Images, u)
	default:
		return false
	}
	c.seen[u] = true
	return true
}

// Merge appends other's URLs after the receiver's, skipping duplicates
func (c *Candidates) Merge(other *Candidates) {
	if other == nil {
		return
	}
	for _, v := range other.Videos {
		c.Add(TargetVideo, v)
	}
	for _, i := range other.Images {
		c.Add(TargetImage, i)
	}
}

// Empty reports whether no candidate survived filtering
func (c *Candidates) Empty() bool {
	return c == nil || (len(c.Videos) == 0 && len(c.Images) == 0)
}
