package scraper

import (
	"context"

	"igfetch/pkg/instagram"
)

// FastExtractor is the single-request extraction strategy
type FastExtractor interface {
	ExtractFast(ctx context.Context, pageURL string) (*instagram.ExtractionResult, error)
}

// BrowserExtractor is the rendered-page extraction strategy
type BrowserExtractor interface {
	Extract(ctx context.Context, pageURL string, contentType instagram.ContentType) (*instagram.ExtractionResult, error)
}
