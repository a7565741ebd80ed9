package scraper

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"igfetch/pkg/browser"
	"igfetch/pkg/config"
	errs "igfetch/pkg/errors"
	"igfetch/pkg/instagram"
	"igfetch/pkg/logger"
	"igfetch/pkg/metrics"
	"igfetch/pkg/ratelimit"
)

// Options tunes a Scraper
type Options struct {
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
}

// Scraper orchestrates the extraction strategies behind a TTL cache.
// Non-story URLs try the fast extractor first and fall back to the browser
// extractor; stories go straight to the browser.
type Scraper struct {
	fast    FastExtractor
	browser BrowserExtractor
	cache   *Cache
	metrics *metrics.Metrics
	closer  io.Closer
	logger  logger.Logger
}

// New creates a Scraper. browser may be nil when browser extraction is
// disabled.
func New(fast FastExtractor, browser BrowserExtractor, opts Options, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scraper{
		fast:    fast,
		browser: browser,
		cache:   NewCache(opts.CacheTTL),
		metrics: opts.Metrics,
		logger:  log.WithField("component", "scraper"),
	}
}

// FromConfig wires both extractors from cfg. The returned Scraper owns the
// browser session; call Close when done.
func FromConfig(cfg *config.Config, m *metrics.Metrics, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}

	client := instagram.NewClient(cfg.Instagram.FastTimeout, log)
	client.SetUserAgent(cfg.Instagram.MobileUserAgent)
	client.SetHeaders(cfg.Instagram.Headers)
	if limiter := ratelimit.ForRequestsPerMinute(cfg.RateLimit.RequestsPerMinute); limiter != nil {
		client.SetLimiter(limiter)
	}
	if base := cfg.Instagram.BaseURL; base != "" && base != instagram.BaseURL {
		client.SetBaseURL(base)
	}

	s := New(client, nil, Options{CacheTTL: cfg.Cache.TTL, Metrics: m}, log)

	if cfg.Browser.Enabled {
		session := browser.NewSession(browser.SessionOptions{
			ExecPath:  cfg.Browser.ExecPath,
			Headless:  cfg.Browser.Headless,
			NoSandbox: cfg.Browser.NoSandbox,
			UserAgent: cfg.Instagram.MobileUserAgent,
		}, log)
		renderer := browser.NewChromeRenderer(session, cfg.Browser.NavigationTimeout, log)
		s.browser = browser.NewExtractor(renderer, browser.Config{
			MobileBaseURL:     cfg.Browser.MobileBaseURL,
			SessionID:         cfg.Instagram.SessionID,
			SettleDelay:       cfg.Browser.SettleDelay,
			StorySettleDelay:  cfg.Browser.StorySettleDelay,
			ExtractionTimeout: cfg.Browser.ExtractionTimeout,
		}, log)
		s.closer = session
	} else {
		s.logger.Info("browser extraction disabled; stories are unavailable")
	}

	return s
}

// ValidateURL reports whether rawURL is an extractable Instagram URL
func (s *Scraper) ValidateURL(rawURL string) bool {
	return instagram.ValidateURL(rawURL)
}

// Classify returns the content type of rawURL
func (s *Scraper) Classify(rawURL string) instagram.ContentType {
	return instagram.Classify(rawURL)
}

// ExtractMetadata returns the media and metadata for rawURL, serving fresh
// cached results without network access. Only successes are cached.
func (s *Scraper) ExtractMetadata(ctx context.Context, rawURL string) (*instagram.ExtractionResult, error) {
	if !instagram.ValidateURL(rawURL) {
		return nil, errs.Newf(errs.ErrorTypeInvalidURL, "not an Instagram post, reel, story or IGTV URL: %q", rawURL)
	}

	key := instagram.NormalizeURL(strings.TrimSpace(rawURL))
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheHit()
		s.logger.DebugWithFields("cache hit", map[string]interface{}{"url": key})
		return cached, nil
	}
	s.metrics.CacheMiss()

	contentType := instagram.Classify(key)

	var fastErr error
	if contentType != instagram.ContentTypeStory {
		result, err := s.attempt(instagram.SourceFast, key, contentType, func() (*instagram.ExtractionResult, error) {
			return s.fast.ExtractFast(ctx, key)
		})
		if err == nil {
			s.cache.Put(key, result)
			return result, nil
		}
		if !errs.IsExtractionFailure(err) {
			return nil, err
		}
		fastErr = err
	}

	if s.browser == nil {
		if contentType == instagram.ContentTypeStory {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeAuthRequired,
				Message: errs.StoryUnavailableMessage,
				Err:     errors.New("browser extraction is disabled"),
			}
		}
		return nil, fastErr
	}

	result, err := s.attempt(instagram.SourceBrowser, key, contentType, func() (*instagram.ExtractionResult, error) {
		return s.browser.Extract(ctx, key, contentType)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, result)
	return result, nil
}

func (s *Scraper) attempt(strategy, key string, contentType instagram.ContentType, run func() (*instagram.ExtractionResult, error)) (*instagram.ExtractionResult, error) {
	start := time.Now()
	result, err := run()
	elapsed := time.Since(start)

	mediaCount := 0
	if result != nil {
		mediaCount = result.MediaCount
	}
	s.metrics.ObserveExtraction(strategy, err, elapsed)
	logger.LogExtraction(s.logger, strategy, key, contentType.String(), mediaCount, elapsed, err)
	return result, err
}

// Purge drops expired cache entries
func (s *Scraper) Purge() int {
	return s.cache.Purge()
}

// Close releases the browser session, if any
func (s *Scraper) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
