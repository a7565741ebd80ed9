package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	errs "igfetch/pkg/errors"
	"igfetch/pkg/logger"
	"igfetch/pkg/metrics"
	"igfetch/pkg/ratelimit"
	"igfetch/pkg/retry"
)

const (
	// DefaultDownloadTimeout bounds a single media download attempt
	DefaultDownloadTimeout = 2 * time.Minute
	// DefaultRetryAttempts is how many times a transient failure is tried
	DefaultRetryAttempts = 3

	defaultDesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Timeout       time.Duration
	UserAgent     string
	RetryAttempts int
	Limiter       ratelimit.Limiter
	Metrics       *metrics.Metrics
}

// Fetcher downloads media URLs into a Manager's directory
type Fetcher struct {
	httpClient *http.Client
	manager    *Manager
	userAgent  string
	retry      *retry.Config
	limiter    ratelimit.Limiter
	metrics    *metrics.Metrics
	logger     logger.Logger
}

// NewFetcher creates a media fetcher writing through manager
func NewFetcher(manager *Manager, opts FetcherOptions, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDownloadTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultDesktopUserAgent
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = DefaultRetryAttempts
	}
	log = log.WithField("component", "media_fetcher")

	return &Fetcher{
		httpClient: &http.Client{Timeout: opts.Timeout},
		manager:    manager,
		userAgent:  opts.UserAgent,
		retry:      retry.HTTPConfig(opts.RetryAttempts, log),
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
		logger:     log,
	}
}

// SetTransport replaces the HTTP transport, keeping the timeout
func (f *Fetcher) SetTransport(rt http.RoundTripper) {
	f.httpClient.Transport = rt
}

// SetRetryConfig overrides the retry policy
func (f *Fetcher) SetRetryConfig(cfg *retry.Config) {
	f.retry = cfg
}

// DownloadMedia streams mediaURL to filename in the download directory.
// Transient failures are retried; every failure is reported as a download
// error.
func (f *Fetcher) DownloadMedia(ctx context.Context, mediaURL, filename string) (*SavedFile, error) {
	name, err := CleanFilename(filename)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	saved, err := retry.DoWithResult(ctx, func(ctx context.Context) (*SavedFile, error) {
		return f.fetchOnce(ctx, mediaURL, name)
	}, f.retry)

	f.metrics.ObserveDownload(err, sizeOf(saved))
	if err != nil {
		if errs.IsType(err, errs.ErrorTypeDownload) {
			return nil, err
		}
		return nil, errs.Wrap(err, errs.ErrorTypeDownload, fmt.Sprintf("failed to download %s", name))
	}

	f.logger.DebugWithFields("media saved", map[string]interface{}{
		"file":     saved.FilePath,
		"size":     saved.FileSize,
		"duration": time.Since(start),
	})
	return saved, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, mediaURL, name string) (*SavedFile, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeDownload, "invalid media URL")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeNetwork, "media request failed")
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	saved, err := f.manager.Save(resp.Body, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// a body cut mid-stream is worth another attempt
		return nil, errs.Wrap(err, errs.ErrorTypeNetwork, "failed to store media")
	}
	return saved, nil
}

// statusError maps a media response status to a typed error. 429 and 5xx
// are retryable; any other non-2xx status is terminal.
func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return errs.WithCode(errs.ErrorTypeRateLimit, code, "media CDN rate limit")
	case errs.IsRetryableStatusCode(code):
		return errs.WithCode(errs.ErrorTypeServerError, code, "media CDN server error")
	default:
		return errs.WithCode(errs.ErrorTypeDownload, code, fmt.Sprintf("unexpected status code: %d", code))
	}
}

func sizeOf(s *SavedFile) int64 {
	if s == nil {
		return 0
	}
	return s.FileSize
}
