package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	errs "igfetch/pkg/errors"
	"igfetch/pkg/instagram"
	"igfetch/pkg/logger"
)

// Config tunes the browser extractor
type Config struct {
	// MobileBaseURL is the host every page is rewritten onto
	MobileBaseURL     string
	SessionID         string
	SettleDelay       time.Duration
	StorySettleDelay  time.Duration
	ExtractionTimeout time.Duration
	Patterns          []instagram.Pattern
}

// DefaultConfig returns the stock browser extractor settings
func DefaultConfig() Config {
	return Config{
		MobileBaseURL:     instagram.MobileBaseURL,
		SettleDelay:       1500 * time.Millisecond,
		StorySettleDelay:  3 * time.Second,
		ExtractionTimeout: 60 * time.Second,
		Patterns:          instagram.DefaultPatterns,
	}
}

// Extractor is the browser-driven extraction strategy
type Extractor struct {
	renderer Renderer
	cfg      Config
	logger   logger.Logger
}

// NewExtractor creates an extractor rendering pages through renderer
func NewExtractor(renderer Renderer, cfg Config, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	defaults := DefaultConfig()
	if cfg.MobileBaseURL == "" {
		cfg.MobileBaseURL = defaults.MobileBaseURL
	}
	if cfg.Patterns == nil {
		cfg.Patterns = defaults.Patterns
	}
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = defaults.ExtractionTimeout
	}
	return &Extractor{
		renderer: renderer,
		cfg:      cfg,
		logger:   log.WithField("component", "browser_extractor"),
	}
}

// Extract renders pageURL and selects media from network responses, DOM
// elements and script payloads. Story failures are classified and never
// replaced with placeholder data.
func (e *Extractor) Extract(ctx context.Context, pageURL string, contentType instagram.ContentType) (*instagram.ExtractionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ExtractionTimeout)
	defer cancel()

	isStory := contentType == instagram.ContentTypeStory
	if isStory && e.cfg.SessionID == "" {
		e.logger.WarnWithFields("no session credential configured; story may require login", map[string]interface{}{
			"url": pageURL,
		})
	}

	settle := e.cfg.SettleDelay
	if isStory {
		settle = e.cfg.StorySettleDelay
	}

	target := instagram.RewriteHost(pageURL, e.cfg.MobileBaseURL)
	snap, err := e.renderer.Render(ctx, RenderRequest{
		URL:         target,
		ContentType: contentType,
		SessionID:   e.cfg.SessionID,
		Patterns:    e.cfg.Patterns,
		Settle:      settle,
	})
	if err != nil {
		if errs.TypeOf(err) == errs.ErrorTypeUnknown {
			err = errs.Wrap(err, errs.ErrorTypeBrowser, "browser render failed")
		}
		if isStory {
			return nil, storyFailure(err, nil)
		}
		return nil, err
	}

	candidates, stats := e.collect(snap)
	result, err := instagram.BuildResult(contentType, pageURL, snap.OpenGraph, candidates, stats, instagram.SourceBrowser)
	if err != nil {
		if isStory {
			return nil, storyFailure(err, snap)
		}
		return nil, err
	}
	return result, nil
}

// collect unions every signal, network responses first
func (e *Extractor) collect(snap *Snapshot) (*instagram.Candidates, instagram.Stats) {
	candidates := &instagram.Candidates{}

	for _, res := range snap.Network {
		if kind := instagram.ClassifyResponse(res.URL, res.MIMEType, res.ResourceType); kind != "" {
			candidates.Add(kind, res.URL)
		}
	}
	for _, src := range snap.DOMVideos {
		candidates.Add(instagram.TargetVideo, src)
	}
	for _, p := range snap.Preloads {
		switch strings.ToLower(p.As) {
		case "video":
			candidates.Add(instagram.TargetVideo, p.URL)
		case "image":
			candidates.Add(instagram.TargetImage, p.URL)
		default:
			if kind := instagram.ClassifyResponse(p.URL, "", ""); kind != "" {
				candidates.Add(kind, p.URL)
			}
		}
	}

	scripted, stats := instagram.CollectMatches(e.cfg.Patterns, snap.Captures)
	candidates.Merge(scripted)

	e.logger.DebugWithFields("collected browser candidates", map[string]interface{}{
		"responses": len(snap.Network),
		"videos":    len(candidates.Videos),
		"images":    len(candidates.Images),
	})
	return candidates, stats
}

var unavailableMarkers = []string{
	"this story is unavailable",
	"isn't available",
	"is no longer available",
	"this account is private",
}

// pageSignal reads failure hints the rendered page exposed
func pageSignal(snap *Snapshot) string {
	if snap == nil {
		return ""
	}
	if strings.Contains(snap.FinalURL, "/accounts/login") {
		return "redirected to login"
	}
	text := strings.ToLower(snap.BodyText)
	for _, marker := range unavailableMarkers {
		if strings.Contains(text, marker) {
			return "story not available: " + marker
		}
	}
	return ""
}

func storyFailure(cause error, snap *Snapshot) error {
	if signal := pageSignal(snap); signal != "" {
		cause = fmt.Errorf("%s: %w", signal, cause)
	}
	return &errs.Error{
		Type:    errs.ClassifyStoryFailure(cause),
		Message: errs.StoryUnavailableMessage,
		Err:     cause,
	}
}
