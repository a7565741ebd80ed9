package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"igfetch/pkg/instagram"
)

// Suffix is appended to a media file path to name its sidecar
const Suffix = ".json"

// Sidecar is the JSON document written next to a downloaded media file
type Sidecar struct {
	JobID     string `json:"jobId"`
	SourceURL string `json:"sourceUrl"`
	MediaURL  string `json:"mediaUrl"`
	FileName  string `json:"fileName"`
	FileSize  int64  `json:"fileSize"`

	Result *instagram.ExtractionResult `json:"result"`

	CreatedAt    time.Time `json:"createdAt"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// New builds a sidecar for the media file at filePath
func New(jobID, sourceURL, mediaURL, filePath string, fileSize int64, result *instagram.ExtractionResult, createdAt, downloadedAt time.Time) *Sidecar {
	return &Sidecar{
		JobID:        jobID,
		SourceURL:    sourceURL,
		MediaURL:     mediaURL,
		FileName:     filepath.Base(filePath),
		FileSize:     fileSize,
		Result:       result.Clone(),
		CreatedAt:    createdAt.UTC(),
		DownloadedAt: downloadedAt.UTC(),
	}
}

// PathFor returns the sidecar path of a media file
func PathFor(mediaPath string) string {
	return mediaPath + Suffix
}

// Save writes the sidecar next to mediaPath. The file is written to a
// temporary name first and renamed into place.
func (s *Sidecar) Save(mediaPath string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	target := PathFor(mediaPath)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move metadata file into place: %w", err)
	}

	return nil
}

// Load reads the sidecar of mediaPath
func Load(mediaPath string) (*Sidecar, error) {
	data, err := os.ReadFile(PathFor(mediaPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &s, nil
}

// Exists checks if a sidecar exists for a media file
func Exists(mediaPath string) bool {
	_, err := os.Stat(PathFor(mediaPath))
	return err == nil
}

// Caption returns the caption truncated for display
func (s *Sidecar) Caption(maxLength int) string {
	if s.Result == nil || s.Result.Caption == "" {
		return ""
	}
	runes := []rune(s.Result.Caption)
	if maxLength > 3 && len(runes) > maxLength {
		return string(runes[:maxLength-3]) + "..."
	}
	return s.Result.Caption
}
