package instagram

import (
	errs "igfetch/pkg/errors"
)

// Extraction strategies recorded in ExtractionResult.Source
const (
	SourceFast    = "fast"
	SourceBrowser = "browser"
)

// ExtractionResult is the normalized metadata for one Instagram page
type ExtractionResult struct {
	Type      ContentType `json:"type"`
	Username  string      `json:"username"`
	Caption   string      `json:"caption"`
	Thumbnail string      `json:"thumbnail,omitempty"`
	MediaURLs []string    `json:"mediaUrls"`
	// Engagement counts are nil when the page did not expose them
	Likes      *int     `json:"likes,omitempty"`
	Comments   *int     `json:"comments,omitempty"`
	Views      *int     `json:"views,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
	MediaCount int      `json:"mediaCount"`
	Source     string   `json:"source,omitempty"`
}

// Finalize enforces the result invariants: MediaCount mirrors MediaURLs and
// video-only stats are dropped for non-video types.
func (r *ExtractionResult) Finalize() *ExtractionResult {
	r.MediaCount = len(r.MediaURLs)
	if !r.Type.IsVideo() {
		r.Views = nil
		r.Duration = nil
	}
	return r
}

// Clone returns a deep copy so cached results cannot be mutated by callers
func (r *ExtractionResult) Clone() *ExtractionResult {
	if r == nil {
		return nil
	}
	c := *r
	c.MediaURLs = append([]string(nil), r.MediaURLs...)
	c.Likes = cloneInt(r.Likes)
	c.Comments = cloneInt(r.Comments)
	c.Views = cloneInt(r.Views)
	if r.Duration != nil {
		d := *r.Duration
		c.Duration = &d
	}
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SelectMedia applies the per-type selection rule to the discovered
// candidates:
//   - reel/igtv need at least one video; images are never substituted
//   - story prefers videos, then images, then og:video, then og:image
//   - post prefers images, then og:image
func SelectMedia(t ContentType, c *Candidates, og OpenGraph) ([]string, error) {
	if c == nil {
		c = &Candidates{}
	}
	ogVideo := acceptedOG(og.Video)
	ogImage := acceptedOG(og.Image)

	switch {
	case t.IsVideo():
		if len(c.Videos) > 0 {
			return c.Videos, nil
		}
		if ogVideo != "" {
			return []string{ogVideo}, nil
		}
		return nil, errs.Newf(errs.ErrorTypeExtraction, "no video URL found for %s", t)

	case t == ContentTypeStory:
		switch {
		case len(c.Videos) > 0:
			return c.Videos, nil
		case len(c.Images) > 0:
			return c.Images, nil
		case ogVideo != "":
			return []string{ogVideo}, nil
		case ogImage != "":
			return []string{ogImage}, nil
		}
		return nil, errs.New(errs.ErrorTypeExtraction, "no media found for story")

	default:
		if len(c.Images) > 0 {
			return c.Images, nil
		}
		if ogImage != "" {
			return []string{ogImage}, nil
		}
		return nil, errs.Newf(errs.ErrorTypeExtraction, "no image URL found for %s", t)
	}
}

// acceptedOG decodes an og URL and applies the CDN denylist
func acceptedOG(raw string) string {
	u := DecodeURL(raw)
	if u == "" {
		return ""
	}
	if AcceptMediaURL(u) {
		return u
	}
	return ""
}

// BuildResult assembles a finalized ExtractionResult from page signals.
// The selection rule decides success; metadata is best effort.
func BuildResult(t ContentType, pageURL string, og OpenGraph, c *Candidates, stats Stats, source string) (*ExtractionResult, error) {
	media, err := SelectMedia(t, c, og)
	if err != nil {
		return nil, err
	}

	result := &ExtractionResult{
		Type:      t,
		Username:  ParseUsername(og.Title, pageURL),
		Caption:   ParseCaption(og.Description),
		MediaURLs: media,
		Views:     stats.Views,
		Duration:  stats.Duration,
		Source:    source,
	}
	result.Likes, result.Comments = ParseEngagement(og.Description)

	result.Thumbnail = acceptedOG(og.Image)
	if result.Thumbnail == "" && c != nil && len(c.Images) > 0 {
		result.Thumbnail = c.Images[0]
	}
	if result.Thumbnail == "" && t == ContentTypePost {
		result.Thumbnail = media[0]
	}

	return result.Finalize(), nil
}
