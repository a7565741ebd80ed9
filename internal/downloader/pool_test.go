package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igfetch/pkg/browser"
	errs "igfetch/pkg/errors"
	"igfetch/pkg/instagram"
	"igfetch/pkg/jobs"
	"igfetch/pkg/logger"
	"igfetch/pkg/metadata"
	"igfetch/pkg/metrics"
	"igfetch/pkg/scraper"
	"igfetch/pkg/storage"
)

const (
	postURL  = "https://www.instagram.com/p/ABC123/"
	storyURL = "https://www.instagram.com/stories/natgeo/3123456789/"
)

type fakeExtractor struct {
	mu      sync.Mutex
	calls   int
	active  int32
	peak    int32
	delay   time.Duration
	release chan struct{}
	result  func(url string) *instagram.ExtractionResult
	err     error
}

func (f *fakeExtractor) ExtractMetadata(ctx context.Context, url string) (*instagram.ExtractionResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result(url), nil
	}
	return postResult("natgeo", "https://scontent.cdninstagram.com/v/t51.29350-15/1_n.jpg"), nil
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDownloader struct {
	mu    sync.Mutex
	names []string
	urls  []string
	err   error
}

func (f *fakeDownloader) DownloadMedia(ctx context.Context, mediaURL, filename string) (*storage.SavedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.names = append(f.names, filename)
	f.urls = append(f.urls, mediaURL)
	return &storage.SavedFile{FilePath: "/downloads/" + filename, FileSize: 100}, nil
}

func (f *fakeDownloader) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

type failingTransport struct {
	calls int32
}

func (t *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&t.calls, 1)
	return nil, errors.New("connection refused")
}

type failingBrowser struct {
	calls int32
}

func (b *failingBrowser) Extract(ctx context.Context, url string, ct instagram.ContentType) (*instagram.ExtractionResult, error) {
	atomic.AddInt32(&b.calls, 1)
	return nil, errs.New(errs.ErrorTypeBrowser, "browser crashed")
}

// emptyRenderer loads pages that expose no media at all
type emptyRenderer struct{}

func (emptyRenderer) Render(ctx context.Context, req browser.RenderRequest) (*browser.Snapshot, error) {
	return &browser.Snapshot{FinalURL: req.URL}, nil
}

func postResult(username string, media ...string) *instagram.ExtractionResult {
	r := &instagram.ExtractionResult{
		Type:      instagram.ContentTypePost,
		Username:  username,
		Caption:   "caption",
		MediaURLs: media,
		Source:    instagram.SourceFast,
	}
	return r.Finalize()
}

func collect(t *testing.T, p *Pool, n int) []Result {
	t.Helper()
	results := make([]Result, 0, n)
	timeout := time.After(5 * time.Second)
	for len(results) < n {
		select {
		case r := <-p.Results():
			results = append(results, r)
		case <-timeout:
			t.Fatalf("timed out waiting for results: got %d of %d", len(results), n)
		}
	}
	return results
}

func TestPoolCompletesJob(t *testing.T) {
	repo := jobs.NewMemoryRepository()
	extractor := &fakeExtractor{result: func(string) *instagram.ExtractionResult {
		return postResult("natgeo",
			"https://scontent.cdninstagram.com/v/t51.29350-15/1_n.jpg",
			"https://scontent.cdninstagram.com/v/t51.29350-15/2_n.jpg")
	}}
	downloader := &fakeDownloader{}

	p := NewPool(extractor, downloader, repo, Options{Workers: 1}, logger.NewNopLogger())
	p.Start()

	job, err := p.Submit(context.Background(), postURL)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, job.Status)
	assert.Equal(t, instagram.ContentTypePost, job.Type)

	res := collect(t, p, 1)[0]
	p.Stop()

	require.NoError(t, res.Err)
	assert.True(t, res.Success())
	require.Len(t, res.Files, 1, "only the first media URL is downloaded by default")

	names := downloader.Names()
	require.Len(t, names, 1)
	assert.True(t, strings.HasPrefix(names[0], "natgeo_post_"))
	assert.True(t, strings.HasSuffix(names[0], "_1.jpg"))

	stored, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, stored.Status)
	assert.Equal(t, "/downloads/"+names[0], stored.FilePath)
	assert.Equal(t, int64(100), stored.FileSize)
	require.NotNil(t, stored.DownloadedAt)
	require.NotNil(t, stored.Metadata)
	assert.Equal(t, 2, stored.Metadata.MediaCount)
	assert.Empty(t, stored.Error)
}

func TestPoolDownloadsAllMediaWithSidecars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprintf(w, "image-bytes-%s", r.URL.Path)
	}))
	defer server.Close()

	dir := t.TempDir()
	manager, err := storage.NewManager(dir)
	require.NoError(t, err)
	fetcher := storage.NewFetcher(manager, storage.FetcherOptions{Timeout: 5 * time.Second}, logger.NewNopLogger())

	extractor := &fakeExtractor{result: func(string) *instagram.ExtractionResult {
		return postResult("natgeo", server.URL+"/a.jpg", server.URL+"/b.jpg")
	}}
	repo := jobs.NewMemoryRepository()

	p := NewPool(extractor, fetcher, repo, Options{Workers: 1, AllMedia: true, WriteSidecar: true}, logger.NewNopLogger())
	p.Start()

	job, err := p.Submit(context.Background(), postURL)
	require.NoError(t, err)
	res := collect(t, p, 1)[0]
	p.Stop()

	require.NoError(t, res.Err)
	require.Len(t, res.Files, 2)

	var total int64
	for _, f := range res.Files {
		data, err := os.ReadFile(f.FilePath)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), f.FileSize)
		total += f.FileSize

		sc, err := metadata.Load(f.FilePath)
		require.NoError(t, err)
		assert.Equal(t, job.ID, sc.JobID)
		assert.Equal(t, postURL, sc.SourceURL)
		assert.Equal(t, f.FileSize, sc.FileSize)
		assert.Equal(t, 2, sc.Result.MediaCount)
	}

	stored, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Files[0].FilePath, stored.FilePath)
	assert.Equal(t, total, stored.FileSize)
}

func TestPoolExtractionFailureLeavesNoMetadata(t *testing.T) {
	log := logger.NewTestLogger()
	transport := &failingTransport{}
	client := instagram.NewClient(time.Second, log)
	client.SetTransport(transport)
	browserStub := &failingBrowser{}
	m := metrics.New()

	s := scraper.New(client, browserStub, scraper.Options{Metrics: m}, log)
	downloader := &fakeDownloader{}
	repo := jobs.NewMemoryRepository()

	p := NewPool(s, downloader, repo, Options{Workers: 1, Metrics: m}, log)
	p.Start()

	job, err := p.Submit(context.Background(), postURL)
	require.NoError(t, err)
	res := collect(t, p, 1)[0]
	p.Stop()

	require.Error(t, res.Err)
	assert.True(t, errs.IsType(res.Err, errs.ErrorTypeBrowser))
	assert.Equal(t, int32(1), atomic.LoadInt32(&transport.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&browserStub.calls))
	assert.Empty(t, downloader.Names())

	stored, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, stored.Status)
	assert.Nil(t, stored.Metadata)
	assert.Contains(t, stored.Error, "browser crashed")
	assert.Empty(t, stored.FilePath)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `igfetch_jobs_finished_total{status="failed"} 1`)
}

func TestPoolStoryWithoutCredential(t *testing.T) {
	log := logger.NewTestLogger()
	transport := &failingTransport{}
	client := instagram.NewClient(time.Second, log)
	client.SetTransport(transport)
	extractor := browser.NewExtractor(emptyRenderer{}, browser.Config{}, log)

	s := scraper.New(client, extractor, scraper.Options{}, log)
	repo := jobs.NewMemoryRepository()

	p := NewPool(s, &fakeDownloader{}, repo, Options{Workers: 1}, log)
	p.Start()

	job, err := p.Submit(context.Background(), storyURL)
	require.NoError(t, err)
	assert.Equal(t, instagram.ContentTypeStory, job.Type)

	res := collect(t, p, 1)[0]
	p.Stop()

	require.Error(t, res.Err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&transport.calls), "stories skip the fast path")

	stored, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, stored.Status)
	assert.Nil(t, stored.Metadata)
	assert.Contains(t, stored.Error, errs.StoryUnavailableMessage)
	assert.True(t, log.HasMessageContaining("no session credential"))
}

func TestPoolDownloadFailureKeepsMetadata(t *testing.T) {
	repo := jobs.NewMemoryRepository()
	downloader := &fakeDownloader{err: errs.New(errs.ErrorTypeDownload, "unexpected status code: 403")}

	p := NewPool(&fakeExtractor{}, downloader, repo, Options{Workers: 1}, logger.NewNopLogger())
	p.Start()

	job, err := p.Submit(context.Background(), postURL)
	require.NoError(t, err)
	res := collect(t, p, 1)[0]
	p.Stop()

	require.Error(t, res.Err)
	assert.False(t, res.Success())

	stored, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, stored.Status)
	require.NotNil(t, stored.Metadata)
	assert.Equal(t, "natgeo", stored.Metadata.Username)
	assert.True(t, strings.HasPrefix(stored.Error, "Media download failed"))
}

func TestPoolEmptyMediaFails(t *testing.T) {
	repo := jobs.NewMemoryRepository()
	extractor := &fakeExtractor{result: func(string) *instagram.ExtractionResult {
		return &instagram.ExtractionResult{Type: instagram.ContentTypePost, Username: "x"}
	}}
	downloader := &fakeDownloader{}

	p := NewPool(extractor, downloader, repo, Options{Workers: 1}, logger.NewNopLogger())
	p.Start()
	_, err := p.Submit(context.Background(), postURL)
	require.NoError(t, err)
	res := collect(t, p, 1)[0]
	p.Stop()

	assert.True(t, errs.IsType(res.Err, errs.ErrorTypeExtraction))
	assert.Empty(t, downloader.Names())
}

func TestSubmitRejectsInvalidURL(t *testing.T) {
	repo := jobs.NewMemoryRepository()
	extractor := &fakeExtractor{}
	p := NewPool(extractor, &fakeDownloader{}, repo, Options{Workers: 1}, logger.NewNopLogger())
	p.Start()
	defer p.Stop()

	for _, url := range []string{"", "https://example.com/p/ABC/", "https://www.instagram.com/natgeo/"} {
		job, err := p.Submit(context.Background(), url)
		assert.Nil(t, job)
		assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidURL), "url %q", url)
	}

	list, err := repo.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, extractor.Calls())
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(&fakeExtractor{}, &fakeDownloader{}, jobs.NewMemoryRepository(), Options{Workers: 1}, logger.NewNopLogger())
	p.Start()
	p.Stop()
	p.Stop()

	_, err := p.Submit(context.Background(), postURL)
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestSubmitReturnsBeforeProcessing(t *testing.T) {
	repo := jobs.NewMemoryRepository()
	extractor := &fakeExtractor{release: make(chan struct{})}
	p := NewPool(extractor, &fakeDownloader{}, repo, Options{Workers: 1}, logger.NewNopLogger())
	p.Start()

	job, err := p.Submit(context.Background(), postURL)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, job.Status)

	require.Eventually(t, func() bool {
		j, err := repo.Get(context.Background(), job.ID)
		return err == nil && j.Status == jobs.StatusProcessing
	}, 2*time.Second, 10*time.Millisecond)

	close(extractor.release)
	res := collect(t, p, 1)[0]
	p.Stop()
	assert.True(t, res.Success())
}

func TestPoolJobTimeout(t *testing.T) {
	repo := jobs.NewMemoryRepository()
	extractor := &fakeExtractor{release: make(chan struct{})}
	p := NewPool(extractor, &fakeDownloader{}, repo, Options{Workers: 1, JobTimeout: 50 * time.Millisecond}, logger.NewNopLogger())
	p.Start()

	job, err := p.Submit(context.Background(), postURL)
	require.NoError(t, err)
	res := collect(t, p, 1)[0]
	p.Stop()

	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	stored, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "deadline exceeded")
}

func TestPoolConcurrency(t *testing.T) {
	const numJobs = 12
	repo := jobs.NewMemoryRepository()
	extractor := &fakeExtractor{delay: 20 * time.Millisecond}
	p := NewPool(extractor, &fakeDownloader{}, repo, Options{Workers: 3}, logger.NewNopLogger())
	p.Start()

	go func() {
		for i := 0; i < numJobs; i++ {
			_, err := p.Submit(context.Background(), fmt.Sprintf("https://www.instagram.com/p/CODE%d/", i))
			assert.NoError(t, err)
		}
	}()

	results := collect(t, p, numJobs)
	p.Stop()

	for _, r := range results {
		assert.True(t, r.Success())
	}
	assert.Equal(t, numJobs, extractor.Calls())
	assert.LessOrEqual(t, atomic.LoadInt32(&extractor.peak), int32(3))
	assert.Equal(t, 3, p.Workers())

	list, err := repo.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list, numJobs)
}

func TestStopDrainsQueuedJobs(t *testing.T) {
	repo := jobs.NewMemoryRepository()
	p := NewPool(&fakeExtractor{delay: 10 * time.Millisecond}, &fakeDownloader{}, repo, Options{Workers: 1}, logger.NewNopLogger())
	p.Start()

	var results []Result
	done := make(chan struct{})
	go func() {
		for r := range p.Results() {
			results = append(results, r)
		}
		close(done)
	}()

	for i := 0; i < 2; i++ {
		_, err := p.Submit(context.Background(), fmt.Sprintf("https://www.instagram.com/reel/R%d/", i))
		require.NoError(t, err)
	}
	p.Stop()
	<-done

	assert.Len(t, results, 2)
}
