package instagram

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Target is what a pattern's capture feeds
type Target string

const (
	TargetVideo    Target = "video"
	TargetImage    Target = "image"
	TargetDuration Target = "duration"
	TargetViews    Target = "views"
)

// Pattern is one entry of the script-payload scan table. Source must be
// valid in both RE2 and JavaScript since the browser runs the same table
// in the page context; capture group 1 carries the payload.
type Pattern struct {
	Name   string `json:"name"`
	Target Target `json:"target"`
	Source string `json:"source"`
	// Flags are JavaScript RegExp flags; "g" is always added in the page
	Flags string `json:"flags"`
	// Grouped captures hold a list of {width,url} candidates; the widest wins
	Grouped bool `json:"grouped"`
}

// escapedURL matches a JSON string body that may use \/ and \uXXXX escapes
const escapedURL = `((?:\\/|\\u[0-9a-fA-F]{4}|[^"\\])+)`

// DefaultPatterns is ordered by priority: structured version groups first,
// then legacy flat keys, then stats.
var DefaultPatterns = []Pattern{
	{
		Name:    "video_versions",
		Target:  TargetVideo,
		Source:  `"video_versions"\s*:\s*\[([^\]]*)\]`,
		Grouped: true,
	},
	{
		Name:    "image_versions2",
		Target:  TargetImage,
		Source:  `"image_versions2"\s*:\s*\{\s*"candidates"\s*:\s*\[([^\]]*)\]`,
		Grouped: true,
	},
	{
		Name:   "video_url",
		Target: TargetVideo,
		Source: `"video_url"\s*:\s*"` + escapedURL + `"`,
	},
	{
		Name:   "playback_url",
		Target: TargetVideo,
		Source: `"playback_url"\s*:\s*"` + escapedURL + `"`,
	},
	{
		Name:   "display_url",
		Target: TargetImage,
		Source: `"display_url"\s*:\s*"` + escapedURL + `"`,
	},
	{
		Name:   "video_duration",
		Target: TargetDuration,
		Source: `"video_duration"\s*:\s*([0-9]+(?:\.[0-9]+)?)`,
	},
	{
		Name:   "play_count",
		Target: TargetViews,
		Source: `"(?:play_count|video_play_count|video_view_count|view_count)"\s*:\s*([0-9]+)`,
	},
}

var compiled sync.Map // flags/source -> *regexp.Regexp

func (p Pattern) regexp() *regexp.Regexp {
	key := p.Flags + "/" + p.Source
	if re, ok := compiled.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	src := p.Source
	if strings.Contains(p.Flags, "i") {
		src = "(?i)" + src
	}
	re := regexp.MustCompile(src)
	compiled.Store(key, re)
	return re
}

// ScanText runs every pattern over text and returns raw group-1 captures
// keyed by pattern name, the same shape the in-page scan produces.
func ScanText(patterns []Pattern, text string) map[string][]string {
	captures := make(map[string][]string)
	for _, p := range patterns {
		for _, m := range p.regexp().FindAllStringSubmatch(text, -1) {
			if len(m) > 1 && m[1] != "" {
				captures[p.Name] = append(captures[p.Name], m[1])
			}
		}
	}
	return captures
}

// Stats holds engagement data found in script payloads
type Stats struct {
	Views    *int
	Duration *float64
}

// CollectMatches turns raw captures into filtered media candidates in
// pattern priority order, plus any stats the payload exposed.
func CollectMatches(patterns []Pattern, captures map[string][]string) (*Candidates, Stats) {
	candidates := &Candidates{}
	var stats Stats

	for _, p := range patterns {
		for _, raw := range captures[p.Name] {
			switch p.Target {
			case TargetVideo, TargetImage:
				u := raw
				if p.Grouped {
					u = widestCandidate(raw)
				}
				candidates.Add(p.Target, u)
			case TargetDuration:
				if stats.Duration == nil {
					if f, err := strconv.ParseFloat(raw, 64); err == nil && f > 0 {
						stats.Duration = &f
					}
				}
			case TargetViews:
				if stats.Views == nil {
					if n, err := strconv.Atoi(raw); err == nil {
						stats.Views = &n
					}
				}
			}
		}
	}

	return candidates, stats
}

var (
	groupObjectRe = regexp.MustCompile(`\{[^{}]*\}`)
	groupWidthRe  = regexp.MustCompile(`"width"\s*:\s*([0-9]+)`)
	groupURLRe    = regexp.MustCompile(`"url"\s*:\s*"` + escapedURL + `"`)
)

type sizedURL struct {
	width int
	url   string
}

// widestCandidate picks the max-width url from a version group body
func widestCandidate(group string) string {
	var found []sizedURL
	for _, obj := range groupObjectRe.FindAllString(group, -1) {
		um := groupURLRe.FindStringSubmatch(obj)
		if um == nil {
			continue
		}
		width := 0
		if wm := groupWidthRe.FindStringSubmatch(obj); wm != nil {
			width, _ = strconv.Atoi(wm[1])
		}
		found = append(found, sizedURL{width: width, url: um[1]})
	}
	if len(found) == 0 {
		return ""
	}
	// stable keeps document order among equal widths
	sort.SliceStable(found, func(i, j int) bool { return found[i].width > found[j].width })
	return found[0].url
}

var (
	unicodeEscapeRe = regexp.MustCompile(`\\u[0-9a-fA-F]{4}`)
	jsonUnescaper   = strings.NewReplacer(`\/`, "/", "&amp;", "&")
)

// DecodeURL undoes JSON string and HTML entity escaping found in payloads
func DecodeURL(raw string) string {
	s := unicodeEscapeRe.ReplaceAllStringFunc(raw, func(m string) string {
		n, err := strconv.ParseUint(m[2:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(n))
	})
	return strings.TrimSpace(jsonUnescaper.Replace(s))
}
