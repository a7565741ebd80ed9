package storage

import (
	"fmt"
	"regexp"
	"time"

	"igfetch/pkg/instagram"
)

var (
	unsafeUsernameChars = regexp.MustCompile(`[^A-Za-z0-9._]+`)
	repeatedDots        = regexp.MustCompile(`\.{2,}`)
)

// GenerateFilename names the index-th (0-based) media file of result as
// {username}_{type}_{unixMillis}[_{n}].{mp4|jpg}. The 1-based _n suffix is
// only added when the result has more than one media URL.
func GenerateFilename(result *instagram.ExtractionResult, index int, now time.Time) string {
	username := unsafeUsernameChars.ReplaceAllString(result.Username, "_")
	username = repeatedDots.ReplaceAllString(username, ".")
	for len(username) > 0 && username[0] == '.' {
		username = username[1:]
	}
	if username == "" {
		username = instagram.PlaceholderUsername
	}

	ext := "jpg"
	if result.Type.IsVideo() {
		ext = "mp4"
	}

	name := fmt.Sprintf("%s_%s_%d", username, result.Type, now.UnixMilli())
	if result.MediaCount > 1 {
		name = fmt.Sprintf("%s_%d", name, index+1)
	}
	return name + "." + ext
}
