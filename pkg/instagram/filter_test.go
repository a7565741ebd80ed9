package instagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptMediaURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"cdninstagram image", cdnImage, true},
		{"cdninstagram video", cdnVideo, true},
		{"fbcdn", "https://video.xx.fbcdn.net/v/t42.1790-2/clip.mp4?_nc_cat=1", true},
		{"bare cdn host", "https://fbcdn.net/v/a.jpg", true},
		{"other host", "https://example.com/v/t51.2885-15/a.jpg", false},
		{"lookalike host", "https://evilcdninstagram.com/a.jpg", false},
		{"instagram page", "https://www.instagram.com/p/ABC/", false},
		{"blob", "blob:https://m.instagram.com/1234", false},
		{"data", "data:image/png;base64,AAAA", false},
		{"rsrc", "https://static.cdninstagram.com/rsrc.php/v3/yI/r/icon.png", false},
		{"static", "https://scontent.cdninstagram.com/static/bundles/logo.png", false},
		{"s150 segment", "https://scontent.cdninstagram.com/v/t51.2885-15/s150x150/a.jpg", false},
		{"s320 query token", "https://scontent.cdninstagram.com/v/t51.2885-15/a.jpg?stp=dst-jpg_s320x320", false},
		{"p150", "https://scontent.cdninstagram.com/v/t51.2885-15/p150x150/a.jpg", false},
		{"s64", "https://scontent.cdninstagram.com/v/t51.2885-15/s64x64/a.jpg", false},
		{"s640 is fine", "https://scontent.cdninstagram.com/v/t51.2885-15/s640x640/a.jpg", true},
		{"profile path", "https://scontent.cdninstagram.com/v/t51.2885-19/44884218_n.jpg", false},
		{"profile_pic", "https://scontent.cdninstagram.com/v/profile_pic/a.jpg", false},
		{"garbage", "::not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AcceptMediaURL(tt.url))
		})
	}
}

func TestClassifyResponse(t *testing.T) {
	assert.Equal(t, TargetVideo, ClassifyResponse(cdnImage, "video/mp4", "Media"))
	assert.Equal(t, TargetImage, ClassifyResponse(cdnVideo, "image/jpeg", ""))
	assert.Equal(t, TargetVideo, ClassifyResponse("https://x.fbcdn.net/seg", "application/octet-stream", "Media"))
	assert.Equal(t, TargetImage, ClassifyResponse("https://x.fbcdn.net/seg", "", "Image"))
	assert.Equal(t, TargetVideo, ClassifyResponse(cdnVideo, "", "Other"))
	assert.Equal(t, TargetImage, ClassifyResponse("https://x.fbcdn.net/a.webp?x=1", "", ""))
	assert.Equal(t, Target(""), ClassifyResponse("https://x.fbcdn.net/graphql", "application/json", "XHR"))
}

func TestCandidatesAddAndMerge(t *testing.T) {
	var c Candidates
	assert.True(t, c.Empty())

	assert.True(t, c.Add(TargetVideo, cdnVideo))
	assert.False(t, c.Add(TargetVideo, cdnVideo))
	// one URL never lands in both buckets
	assert.False(t, c.Add(TargetImage, cdnVideo))
	assert.False(t, c.Add(TargetImage, "https://example.com/a.jpg"))
	assert.False(t, c.Add(TargetDuration, cdnImage))
	assert.False(t, c.Add(TargetImage, ""))

	other := &Candidates{}
	other.Add(TargetImage, cdnImage)
	other.Add(TargetVideo, cdnVideo)
	other.Add(TargetVideo, cdnVideoLow)

	c.Merge(other)
	c.Merge(nil)

	assert.Equal(t, []string{cdnVideo, cdnVideoLow}, c.Videos)
	assert.Equal(t, []string{cdnImage}, c.Images)
	assert.False(t, c.Empty())
}
