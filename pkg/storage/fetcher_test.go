package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	errs "igfetch/pkg/errors"
	"igfetch/pkg/logger"
	"igfetch/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T) (*Fetcher, string) {
	t.Helper()
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	f := NewFetcher(manager, FetcherOptions{Timeout: 5 * time.Second}, logger.NewTestLogger())
	f.SetRetryConfig(&retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	})
	return f, dir
}

func TestDownloadMedia(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer server.Close()

	f, dir := newTestFetcher(t)
	saved, err := f.DownloadMedia(context.Background(), server.URL+"/clip.mp4", "natgeo_reel_1.mp4")
	require.NoError(t, err)

	assert.Equal(t, dir+string(os.PathSeparator)+"natgeo_reel_1.mp4", saved.FilePath)
	assert.Equal(t, int64(4096), saved.FileSize)
	assert.Contains(t, userAgent, "Chrome")
	assert.NotContains(t, userAgent, "Instagram")
}

func TestDownloadMediaRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte("image"))
		}
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)
	saved, err := f.DownloadMedia(context.Background(), server.URL+"/a.jpg", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(5), saved.FileSize)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDownloadMediaClientErrorIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f, dir := newTestFetcher(t)
	_, err := f.DownloadMedia(context.Background(), server.URL+"/a.jpg", "a.jpg")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeDownload))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestDownloadMediaGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)
	_, err := f.DownloadMedia(context.Background(), server.URL+"/a.jpg", "a.jpg")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeDownload))
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDownloadMediaRejectsUnsafeFilename(t *testing.T) {
	f, _ := newTestFetcher(t)
	_, err := f.DownloadMedia(context.Background(), "https://scontent.cdninstagram.com/a.jpg", "../../etc/passwd")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeDownload))
}

func TestDownloadMediaContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	f, _ := newTestFetcher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.DownloadMedia(ctx, server.URL+"/slow.mp4", "slow.mp4")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeDownload))
}
