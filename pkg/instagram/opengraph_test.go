package instagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	html := `<!DOCTYPE html><html><head>
<meta property="og:title" content="National Geographic (@natgeo) on Instagram" />
<meta property="og:description" content="1,204 likes, 31 comments - natgeo on March 3, 2024: &quot;Into the wild&quot;" />
<meta property="og:image" content="https://scontent.cdninstagram.com/v/t51.2885-15/a.jpg?x=1&amp;y=2" />
<meta name="og:image" content="https://example.com/duplicate.jpg" />
<meta property="og:video:secure_url" content="https://scontent.cdninstagram.com/o1/v/clip.mp4" />
<script src="https://static.cdninstagram.com/rsrc.php/app.js"></script>
<script type="application/json">{"display_url":"x"}</script>
</head><body><script>window.__data = {"video_duration":3.5}</script></body></html>`

	og, scripts, err := ParsePage(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "National Geographic (@natgeo) on Instagram", og.Title)
	assert.Contains(t, og.Description, `"Into the wild"`)
	assert.Equal(t, "https://scontent.cdninstagram.com/v/t51.2885-15/a.jpg?x=1&y=2", og.Image)
	assert.Equal(t, "https://scontent.cdninstagram.com/o1/v/clip.mp4", og.Video)

	assert.Contains(t, scripts, `{"display_url":"x"}`)
	assert.Contains(t, scripts, `"video_duration":3.5`)
	assert.NotContains(t, scripts, "rsrc.php")
}

func TestOpenGraphFromMap(t *testing.T) {
	og := OpenGraphFromMap(map[string]string{
		"og:title":            "  someone on Instagram ",
		"og:video":            "https://a.fbcdn.net/v.mp4",
		"og:video:secure_url": "https://b.fbcdn.net/v.mp4",
	})
	assert.Equal(t, "someone on Instagram", og.Title)
	assert.Equal(t, "https://a.fbcdn.net/v.mp4", og.Video)
	assert.Empty(t, og.Image)
}

func TestParseUsername(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		pageURL string
		want    string
	}{
		{"display name with handle", "Jane Doe (@jane.doe) on Instagram: \"hi\"", "", "jane.doe"},
		{"bare handle", "natgeo on Instagram: \"Into the wild\"", "", "natgeo"},
		{"display name only", "Jane Doe on Instagram", "", "Jane_Doe"},
		{"handle elsewhere", "Video by @some_one", "", "some_one"},
		{"story url fallback", "", "https://instagram.com/stories/Some.User/123", "Some.User"},
		{"placeholder", "Instagram", "https://instagram.com/p/ABC", PlaceholderUsername},
		{"empty", "", "", PlaceholderUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseUsername(tt.title, tt.pageURL))
		})
	}
}

func TestParseCaption(t *testing.T) {
	assert.Equal(t, "Into the wild",
		ParseCaption(`1,204 likes, 31 comments - natgeo on March 3, 2024: "Into the wild"`))
	assert.Equal(t, "Sunset",
		ParseCaption(`12K likes, 1 comment - someone on June 1, 2024: “Sunset”`))
	assert.Equal(t, "Just words", ParseCaption("Just words"))
	assert.Equal(t, PlaceholderCaption, ParseCaption(""))
	assert.Equal(t, PlaceholderCaption, ParseCaption(`  ""  `))
}

func TestParseEngagement(t *testing.T) {
	likes, comments := ParseEngagement(`1,204 likes, 31 comments - natgeo on March 3, 2024: "x"`)
	require.NotNil(t, likes)
	require.NotNil(t, comments)
	assert.Equal(t, 1204, *likes)
	assert.Equal(t, 31, *comments)

	// abbreviated counts are not exact
	likes, comments = ParseEngagement(`1.2K likes, 3 comments - someone on May 1: "x"`)
	assert.Nil(t, likes)
	require.NotNil(t, comments)
	assert.Equal(t, 3, *comments)

	likes, comments = ParseEngagement("no counts here")
	assert.Nil(t, likes)
	assert.Nil(t, comments)
}
