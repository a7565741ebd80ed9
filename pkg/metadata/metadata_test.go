package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igfetch/pkg/instagram"
)

func sampleResult() *instagram.ExtractionResult {
	likes := 42
	return &instagram.ExtractionResult{
		Type:       instagram.ContentTypePost,
		Username:   "natgeo",
		Caption:    "A very long caption about mountains",
		MediaURLs:  []string{"https://scontent.cdninstagram.com/v/t51.29350-15/1_n.jpg"},
		Likes:      &likes,
		MediaCount: 1,
		Source:     instagram.SourceFast,
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "natgeo_post_1700000000000.jpg")
	require.NoError(t, os.WriteFile(mediaPath, []byte("jpeg"), 0644))

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	downloaded := created.Add(3 * time.Second)
	result := sampleResult()

	s := New("job-1", "https://www.instagram.com/p/ABC/", result.MediaURLs[0], mediaPath, 4, result, created, downloaded)
	require.NoError(t, s.Save(mediaPath))

	assert.True(t, Exists(mediaPath))
	assert.NoFileExists(t, PathFor(mediaPath)+".tmp")

	loaded, err := Load(mediaPath)
	require.NoError(t, err)
	assert.Equal(t, "job-1", loaded.JobID)
	assert.Equal(t, "natgeo_post_1700000000000.jpg", loaded.FileName)
	assert.Equal(t, int64(4), loaded.FileSize)
	assert.Equal(t, result, loaded.Result)
	assert.True(t, loaded.CreatedAt.Equal(created))
	assert.True(t, loaded.DownloadedAt.Equal(downloaded))
}

func TestNewCopiesResult(t *testing.T) {
	result := sampleResult()
	s := New("job", "u", "m", "/tmp/f.jpg", 1, result, time.Now(), time.Now())

	result.MediaURLs[0] = "changed"
	assert.NotEqual(t, "changed", s.Result.MediaURLs[0])
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
	assert.False(t, Exists(filepath.Join(t.TempDir(), "missing.jpg")))
}

func TestSaveWritesCamelCaseKeys(t *testing.T) {
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "x.mp4")
	s := New("job", "src", "media", mediaPath, 10, sampleResult(), time.Now(), time.Now())
	require.NoError(t, s.Save(mediaPath))

	data, err := os.ReadFile(PathFor(mediaPath))
	require.NoError(t, err)
	for _, key := range []string{`"jobId"`, `"sourceUrl"`, `"mediaUrls"`, `"mediaCount"`, `"downloadedAt"`} {
		assert.True(t, strings.Contains(string(data), key), "missing key %s", key)
	}
}

func TestCaption(t *testing.T) {
	s := &Sidecar{Result: sampleResult()}
	assert.Equal(t, "A very ...", s.Caption(10))
	assert.Equal(t, "A very long caption about mountains", s.Caption(100))
	assert.Equal(t, "", (&Sidecar{}).Caption(10))
}
