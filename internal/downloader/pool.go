package downloader

import (
	"context"
	"errors"
	"sync"
	"time"

	errs "igfetch/pkg/errors"
	"igfetch/pkg/instagram"
	"igfetch/pkg/jobs"
	"igfetch/pkg/logger"
	"igfetch/pkg/metadata"
	"igfetch/pkg/metrics"
	"igfetch/pkg/storage"
)

// DefaultJobTimeout bounds one job's extract and download chain
const DefaultJobTimeout = 5 * time.Minute

// ErrPoolStopped is returned by Submit after Stop
var ErrPoolStopped = errors.New("worker pool is shutting down")

// MetadataExtractor resolves an Instagram URL to its media metadata
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, url string) (*instagram.ExtractionResult, error)
}

// MediaDownloader saves one media URL under filename
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaURL, filename string) (*storage.SavedFile, error)
}

// Options configures a Pool
type Options struct {
	Workers    int
	JobTimeout time.Duration
	// AllMedia downloads every media URL instead of only the first
	AllMedia bool
	// WriteSidecar writes a <file>.json next to each downloaded file
	WriteSidecar bool
	Metrics      *metrics.Metrics
}

// Result is published on the results channel when a job reaches a
// terminal state
type Result struct {
	Job      *jobs.Job
	Files    []*storage.SavedFile
	Err      error
	Duration time.Duration
}

// Success reports whether the job completed
func (r Result) Success() bool {
	return r.Err == nil && r.Job != nil && r.Job.Status == jobs.StatusCompleted
}

// Pool runs download jobs on a fixed number of workers. Submit records the
// job and returns immediately; workers move it through processing to
// completed or failed.
type Pool struct {
	numWorkers   int
	jobTimeout   time.Duration
	allMedia     bool
	writeSidecar bool

	queue   chan string
	results chan Result
	wg      sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	extractor  MetadataExtractor
	downloader MediaDownloader
	repo       jobs.Repository
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     logger.Logger
}

// NewPool creates a job runner. Results must be drained by the caller while
// the pool runs.
func NewPool(extractor MetadataExtractor, downloader MediaDownloader, repo jobs.Repository, opts Options, log logger.Logger) *Pool {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}

	return &Pool{
		numWorkers:   opts.Workers,
		jobTimeout:   opts.JobTimeout,
		allMedia:     opts.AllMedia,
		writeSidecar: opts.WriteSidecar,
		queue:        make(chan string, opts.Workers*2), // Buffer size = 2x workers
		results:      make(chan Result, opts.Workers),
		extractor:    extractor,
		downloader:   downloader,
		repo:         repo,
		metrics:      opts.Metrics,
		now:          time.Now,
		logger:       log.WithField("component", "job_runner"),
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
		"job_timeout": p.jobTimeout,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop refuses new jobs, waits for queued and in-flight jobs to finish and
// closes the results channel.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.logger.Info("Stopping worker pool...")
	p.wg.Wait()
	close(p.results)
	p.logger.Info("Worker pool stopped")
}

// Submit validates url, records a pending job and queues it. It returns as
// soon as the job is queued; the returned job is a snapshot.
func (p *Pool) Submit(ctx context.Context, url string) (*jobs.Job, error) {
	if !instagram.ValidateURL(url) {
		return nil, errs.Newf(errs.ErrorTypeInvalidURL, "not an Instagram post, reel, story or IGTV URL: %q", url)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return nil, ErrPoolStopped
	}

	job, err := p.repo.Create(ctx, url, instagram.Classify(url))
	if err != nil {
		return nil, err
	}

	select {
	case p.queue <- job.ID:
		p.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"job_id": job.ID,
			"url":    url,
			"type":   job.Type,
		})
		return job, nil
	case <-ctx.Done():
		p.finish(job.ID, jobs.FailedUpdate("job was not queued: "+ctx.Err().Error()))
		return nil, ctx.Err()
	}
}

// Results returns the channel of finished jobs
func (p *Pool) Results() <-chan Result {
	return p.results
}

// QueueSize returns the number of jobs waiting for a worker
func (p *Pool) QueueSize() int {
	return len(p.queue)
}

// Workers returns the number of workers
func (p *Pool) Workers() int {
	return p.numWorkers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.DebugWithFields("Worker started", map[string]interface{}{
		"worker_id": id,
	})

	for jobID := range p.queue {
		p.results <- p.process(jobID, id)
	}

	p.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// process runs the chain for one job. Every path ends with the job in a
// terminal state.
func (p *Pool) process(jobID string, workerID int) Result {
	start := p.now()
	ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()

	log := p.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"job_id":    jobID,
	})

	job, err := p.repo.Update(ctx, jobID, jobs.StatusUpdate(jobs.StatusProcessing))
	if err != nil {
		log.WithError(err).Error("Failed to mark job processing")
		return p.failed(jobID, err, start, nil)
	}
	log.DebugWithFields("Worker processing job", map[string]interface{}{
		"url":  job.URL,
		"type": job.Type,
	})

	result, err := p.extractor.ExtractMetadata(ctx, job.URL)
	if err != nil {
		log.WithError(err).WarnWithFields("Extraction failed", map[string]interface{}{
			"url":        job.URL,
			"error_type": errs.TypeOf(err),
		})
		return p.failed(jobID, err, start, nil)
	}

	if _, err := p.repo.Update(ctx, jobID, jobs.Update{Metadata: result}); err != nil {
		log.WithError(err).Error("Failed to store job metadata")
		return p.failed(jobID, err, start, nil)
	}

	media := result.MediaURLs
	if len(media) == 0 {
		return p.failed(jobID, errs.New(errs.ErrorTypeExtraction, "extraction returned no media URLs"), start, nil)
	}
	if !p.allMedia && len(media) > 1 {
		media = media[:1]
	}

	stamp := p.now()
	files := make([]*storage.SavedFile, 0, len(media))
	var total int64
	for i, mediaURL := range media {
		name := storage.GenerateFilename(result, i, stamp)
		saved, err := p.downloader.DownloadMedia(ctx, mediaURL, name)
		logger.LogDownload(log, jobID, name, sizeOf(saved), err)
		if err != nil {
			return p.failed(jobID, err, start, files)
		}
		files = append(files, saved)
		total += saved.FileSize

		if p.writeSidecar {
			sc := metadata.New(jobID, job.URL, mediaURL, saved.FilePath, saved.FileSize, result, job.CreatedAt, p.now())
			if err := sc.Save(saved.FilePath); err != nil {
				log.WithError(err).WarnWithFields("Failed to write metadata sidecar", map[string]interface{}{
					"file": saved.FilePath,
				})
			}
		}
	}

	done, err := p.finish(jobID, jobs.CompletedUpdate(files[0].FilePath, total, p.now()))
	if err != nil {
		return p.failed(jobID, err, start, files)
	}

	p.metrics.JobFinished(string(jobs.StatusCompleted))
	duration := p.now().Sub(start)
	log.InfoWithFields("Job completed", map[string]interface{}{
		"files":    len(files),
		"size":     total,
		"duration": duration,
	})

	return Result{Job: done, Files: files, Duration: duration}
}

// failed marks the job failed with a user-facing message
func (p *Pool) failed(jobID string, cause error, start time.Time, files []*storage.SavedFile) Result {
	job, err := p.finish(jobID, jobs.FailedUpdate(errs.UserMessage(cause)))
	if err != nil {
		p.logger.WithError(err).ErrorWithFields("Failed to mark job failed", map[string]interface{}{
			"job_id": jobID,
		})
	}
	p.metrics.JobFinished(string(jobs.StatusFailed))
	return Result{Job: job, Files: files, Err: cause, Duration: p.now().Sub(start)}
}

// finish writes a terminal update. It runs outside the job deadline so a
// timed out job can still be recorded.
func (p *Pool) finish(jobID string, u jobs.Update) (*jobs.Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.repo.Update(ctx, jobID, u)
}

func sizeOf(s *storage.SavedFile) int64 {
	if s == nil {
		return 0
	}
	return s.FileSize
}
