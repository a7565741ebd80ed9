package browser

import (
	"context"
	"time"

	"igfetch/pkg/instagram"
)

// RenderRequest describes one page load
type RenderRequest struct {
	URL         string
	ContentType instagram.ContentType
	// SessionID is attached as the sessionid cookie when set
	SessionID string
	Patterns  []instagram.Pattern
	Settle    time.Duration
}

// NetworkResource is one response observed while the page loaded
type NetworkResource struct {
	URL          string
	MIMEType     string
	ResourceType string
}

// Preload is a <link rel=preload> hint
type Preload struct {
	URL string `json:"url"`
	As  string `json:"as"`
}

// Snapshot is everything a rendered page exposed
type Snapshot struct {
	OpenGraph instagram.OpenGraph
	Network   []NetworkResource
	// DOMVideos are <video> and <source> sources in document order
	DOMVideos []string
	Preloads  []Preload
	// Captures are raw pattern captures keyed by pattern name
	Captures map[string][]string
	FinalURL string
	BodyText string
}

// Renderer loads a page in a real browser and reports what it saw
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (*Snapshot, error)
}
