package instagram

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	errs "igfetch/pkg/errors"
	"igfetch/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	calls   int32
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.handler(req)
}

func (m *mockRoundTripper) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

// Helper function to create a response
func newResponse(req *http.Request, statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
		Request:    req,
	}
}

// newTestClient returns a client whose transport serves pages by URL path
func newTestClient(log logger.Logger, pages map[string]string) (*Client, *mockRoundTripper) {
	rt := &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		if body, ok := pages[req.URL.Path]; ok {
			return newResponse(req, http.StatusOK, body), nil
		}
		return newResponse(req, http.StatusNotFound, ""), nil
	}}

	client := NewClient(5*time.Second, log)
	client.SetTransport(rt)
	return client, rt
}

func page(head, body string) string {
	return "<!DOCTYPE html><html><head>" + head + "</head><body>" + body + "</body></html>"
}

func TestNewClient(t *testing.T) {
	client := NewClient(0, logger.NewTestLogger())

	assert.Equal(t, DefaultFastTimeout, client.httpClient.Timeout)
	assert.Contains(t, client.headers["User-Agent"], "iPhone")
	assert.Equal(t, DefaultPatterns, client.patterns)

	client.SetUserAgent("")
	assert.Contains(t, client.headers["User-Agent"], "iPhone")
	client.SetUserAgent("custom-agent")
	client.SetHeaders(map[string]string{"X-Test": "1"})
	assert.Equal(t, "custom-agent", client.headers["User-Agent"])
	assert.Equal(t, "1", client.headers["X-Test"])
}

func TestExtractFastPostFromOpenGraphImage(t *testing.T) {
	imageURL := "https://scontent.cdninstagram.com/v/t51.2885-15/abc.jpg"
	client, rt := newTestClient(logger.NewTestLogger(), map[string]string{
		"/p/ABC123": page(
			`<meta property="og:title" content="natgeo on Instagram" />`+
				`<meta property="og:image" content="`+imageURL+`" />`, ""),
	})

	result, err := client.ExtractFast(context.Background(), "https://instagram.com/p/ABC123")
	require.NoError(t, err)

	assert.Equal(t, ContentTypePost, result.Type)
	assert.Equal(t, []string{imageURL}, result.MediaURLs)
	assert.Equal(t, 1, result.MediaCount)
	assert.Equal(t, imageURL, result.Thumbnail)
	assert.Equal(t, "natgeo", result.Username)
	assert.Equal(t, PlaceholderCaption, result.Caption)
	assert.Equal(t, SourceFast, result.Source)
	assert.Equal(t, 1, rt.Calls())
}

func TestExtractFastReelWithOnlyImageFails(t *testing.T) {
	client, _ := newTestClient(logger.NewTestLogger(), map[string]string{
		"/reel/XYZ": page("",
			`<script>{"display_url":"`+escapeJSON(cdnImage)+`"}</script>`),
	})

	result, err := client.ExtractFast(context.Background(), "https://instagram.com/reel/XYZ")
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeExtraction))
	assert.True(t, errs.IsExtractionFailure(err))
}

func TestExtractFastReelFromScriptPayload(t *testing.T) {
	payload := `{"items":[{"video_versions":[{"width":720,"url":"` + escapeJSON(cdnVideo) + `"}],` +
		`"video_duration":14.5,"play_count":98231}]}`
	client, _ := newTestClient(logger.NewTestLogger(), map[string]string{
		"/reel/XYZ/": page(`<meta property="og:image" content="`+cdnImage+`" />`,
			`<script type="application/json">`+payload+`</script>`),
	})

	result, err := client.ExtractFast(context.Background(), "https://www.instagram.com/reel/XYZ/?igsh=abc")
	require.NoError(t, err)

	assert.Equal(t, ContentTypeReel, result.Type)
	assert.Equal(t, []string{cdnVideo}, result.MediaURLs)
	assert.Equal(t, cdnImage, result.Thumbnail)
	require.NotNil(t, result.Views)
	assert.Equal(t, 98231, *result.Views)
	require.NotNil(t, result.Duration)
	assert.InDelta(t, 14.5, *result.Duration, 0.001)
}

func TestExtractFastRejectsBeforeAnyRequest(t *testing.T) {
	client, rt := newTestClient(logger.NewTestLogger(), nil)

	_, err := client.ExtractFast(context.Background(), "https://example.com/p/ABC")
	assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidURL))

	_, err = client.ExtractFast(context.Background(), "https://instagram.com/stories/someuser/123")
	assert.True(t, errs.IsType(err, errs.ErrorTypeExtraction))

	assert.Equal(t, 0, rt.Calls())
}

func TestExtractFastStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   errs.ErrorType
	}{
		{http.StatusUnauthorized, errs.ErrorTypeAuthRequired},
		{http.StatusForbidden, errs.ErrorTypeAuthRequired},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusServiceUnavailable, errs.ErrorTypeServerError},
		{http.StatusGone, errs.ErrorTypeExtraction},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			log := logger.NewTestLogger()
			client := NewClient(time.Second, log)
			client.SetTransport(&mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
				return newResponse(req, tt.status, ""), nil
			}})

			_, err := client.ExtractFast(context.Background(), "https://instagram.com/p/ABC")
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.TypeOf(err))

			var igErr *errs.Error
			require.True(t, errors.As(err, &igErr))
			assert.Equal(t, tt.status, igErr.Code)
			assert.NotEmpty(t, log.GetMessagesByLevel("WARN"))
		})
	}
}

func TestExtractFastNetworkError(t *testing.T) {
	client := NewClient(time.Second, logger.NewTestLogger())
	client.SetTransport(&mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection reset by peer")
	}})

	_, err := client.ExtractFast(context.Background(), "https://instagram.com/p/ABC")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))
}

func TestExtractFastSendsHeaders(t *testing.T) {
	var got http.Header
	client := NewClient(time.Second, logger.NewTestLogger())
	client.SetHeaders(map[string]string{"Cookie": "sessionid=abc"})
	client.SetTransport(&mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		return newResponse(req, http.StatusOK, page(`<meta property="og:image" content="`+cdnImage+`" />`, "")), nil
	}})

	_, err := client.ExtractFast(context.Background(), "https://instagram.com/p/ABC")
	require.NoError(t, err)
	assert.Contains(t, got.Get("User-Agent"), "Instagram")
	assert.Equal(t, "sessionid=abc", got.Get("Cookie"))
	assert.Equal(t, "navigate", got.Get("Sec-Fetch-Mode"))
}

type stubLimiter struct {
	waits int
	err   error
}

func (s *stubLimiter) Allow() bool { return s.err == nil }
func (s *stubLimiter) Wait(ctx context.Context) error {
	s.waits++
	return s.err
}
func (s *stubLimiter) Reset() {}

func TestExtractFastConsultsLimiter(t *testing.T) {
	client, rt := newTestClient(logger.NewTestLogger(), map[string]string{
		"/p/ABC": page(`<meta property="og:image" content="`+cdnImage+`" />`, ""),
	})

	limiter := &stubLimiter{}
	client.SetLimiter(limiter)
	_, err := client.ExtractFast(context.Background(), "https://instagram.com/p/ABC")
	require.NoError(t, err)
	assert.Equal(t, 1, limiter.waits)

	limiter.err = context.DeadlineExceeded
	_, err = client.ExtractFast(context.Background(), "https://instagram.com/p/ABC")
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))
	assert.Equal(t, 1, rt.Calls())
}

func TestExtractFastHonoursContext(t *testing.T) {
	client := NewClient(time.Second, logger.NewTestLogger())
	client.SetTransport(&mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.ExtractFast(ctx, "https://instagram.com/p/ABC")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExtractFastAgainstTestServer(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page(`<meta property="og:image" content="`+cdnImage+`" />`, "")))
	}))
	defer server.Close()

	client := NewClient(time.Second, logger.NewTestLogger())
	client.SetBaseURL(server.URL)

	result, err := client.ExtractFast(context.Background(), "https://instagram.com/p/ABC123")
	require.NoError(t, err)
	assert.Equal(t, "/p/ABC123", gotPath)
	assert.Equal(t, []string{cdnImage}, result.MediaURLs)
	assert.Equal(t, 1, result.MediaCount)
}
