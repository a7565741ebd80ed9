package instagram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "igfetch/pkg/errors"
	"igfetch/pkg/logger"
	"igfetch/pkg/ratelimit"
)

const (
	// DefaultFastTimeout bounds the single fast-path request
	DefaultFastTimeout = 8 * time.Second
	// MaxPageBytes caps how much of a page body is read
	MaxPageBytes = 5 << 20

	defaultMobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Instagram 338.0.3.20.94 (iPhone14,5; iOS 17_5; en_US; en; scale=3.00; 1170x2532; 620157146)"
)

// Client performs the fast extraction path: one plain GET of the public page
// parsed for embedded media references.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	baseURL    string
	patterns   []Pattern
	logger     logger.Logger
}

// NewClient creates a fast-path client with a mobile in-app user agent
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if timeout <= 0 {
		timeout = DefaultFastTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      defaultMobileUserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
			"Sec-Fetch-Dest":  "document",
			"Sec-Fetch-Mode":  "navigate",
			"Sec-Fetch-Site":  "none",
		},
		patterns: DefaultPatterns,
		logger:   log.WithField("component", "fast_extractor"),
	}
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// SetUserAgent overrides the mobile user agent
func (c *Client) SetUserAgent(ua string) {
	if ua != "" {
		c.headers["User-Agent"] = ua
	}
}

// SetLimiter installs a politeness limiter consulted before each request
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// SetBaseURL sends page requests to base instead of the host in the page
// URL. Used for mirrors and tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// SetTransport replaces the HTTP transport, keeping the timeout
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// ExtractFast fetches pageURL once and extracts media from its HTML.
// Stories are refused; they need a logged-in browser.
func (c *Client) ExtractFast(ctx context.Context, pageURL string) (*ExtractionResult, error) {
	if !ValidateURL(pageURL) {
		return nil, errs.Newf(errs.ErrorTypeInvalidURL, "not an Instagram post, reel, story or IGTV URL: %q", pageURL)
	}
	contentType := Classify(pageURL)
	if contentType == ContentTypeStory {
		return nil, errs.New(errs.ErrorTypeExtraction, "stories cannot be extracted without a browser session")
	}

	body, err := c.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	og, scripts, err := ParsePage(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeParsing, "failed to parse page HTML")
	}

	candidates, stats := CollectMatches(c.patterns, ScanText(c.patterns, scripts))
	c.logger.DebugWithFields("scanned page payload", map[string]interface{}{
		"url":    pageURL,
		"videos": len(candidates.Videos),
		"images": len(candidates.Images),
		"og":     og.Image != "" || og.Video != "",
	})

	result, err := BuildResult(contentType, pageURL, og, candidates, stats, SourceFast)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.Wrap(err, errs.ErrorTypeNetwork, "rate limiter wait aborted")
		}
	}

	fetchURL := pageURL
	if c.baseURL != "" {
		fetchURL = RewriteHost(pageURL, c.baseURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeInvalidURL, "failed to create request")
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPageBytes))
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeNetwork, "failed to read response body")
	}
	return body, nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(err, errs.ErrorTypeNetwork, "request failed")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// checkResponseStatus maps non-200 responses to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("authentication required", fields)
		return errs.WithCode(errs.ErrorTypeAuthRequired, resp.StatusCode, "authentication required")
	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("page not found", fields)
		return errs.WithCode(errs.ErrorTypeNotFound, resp.StatusCode, "page not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", fields)
		return errs.WithCode(errs.ErrorTypeRateLimit, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode >= 500:
		c.logger.WarnWithFields("server error", fields)
		return errs.WithCode(errs.ErrorTypeServerError, resp.StatusCode, "server error")
	default:
		c.logger.WarnWithFields("unexpected status", fields)
		return errs.WithCode(errs.ErrorTypeExtraction, resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}
}
