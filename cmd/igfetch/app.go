package main

import (
	"context"
	"fmt"

	"igfetch/internal/downloader"
	"igfetch/pkg/auth"
	"igfetch/pkg/config"
	"igfetch/pkg/jobs"
	"igfetch/pkg/logger"
	"igfetch/pkg/metrics"
	"igfetch/pkg/scraper"
	"igfetch/pkg/storage"
)

// pipeline is everything a download needs, built from configuration
type pipeline struct {
	scraper *scraper.Scraper
	fetcher *storage.Fetcher
	repo    jobs.Repository
	pool    *downloader.Pool
	metrics *metrics.Metrics
	log     logger.Logger
}

// resolveSession fills in the story session from the credential stores when
// neither the config file nor the environment set one
func resolveSession(c *config.Config, log logger.Logger) {
	var manager *auth.Manager
	if c.Instagram.SessionID == "" {
		m, err := auth.NewManager()
		if err != nil {
			log.WithError(err).Debug("credential stores unavailable")
		} else {
			manager = m
		}
	}

	cred := auth.ResolveSession(c.Instagram.SessionID, manager)
	if !cred.Present() {
		log.Debug("no session credential found; stories may require login")
		return
	}
	c.Instagram.SessionID = cred.SessionID
	log.WithField("source", cred.Source).Debug("using stored session credential")
}

func newScraper(c *config.Config, m *metrics.Metrics, log logger.Logger) *scraper.Scraper {
	resolveSession(c, log)
	return scraper.FromConfig(c, m, log)
}

func newPipeline(ctx context.Context, c *config.Config) (*pipeline, error) {
	log := logger.GetLogger()
	m := metrics.New()

	manager, err := storage.NewManager(c.Download.Directory)
	if err != nil {
		return nil, err
	}
	fetcher := storage.NewFetcher(manager, storage.FetcherOptions{
		Timeout:       c.Download.Timeout,
		UserAgent:     c.Download.UserAgent,
		RetryAttempts: c.Download.RetryAttempts,
		Metrics:       m,
	}, log)

	repo, err := jobs.Open(ctx, c.Jobs.Driver, c.Jobs.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}

	s := newScraper(c, m, log)
	pool := downloader.NewPool(s, fetcher, repo, downloader.Options{
		Workers:      c.Download.ConcurrentJobs,
		JobTimeout:   c.Download.JobTimeout,
		AllMedia:     c.Download.AllMedia,
		WriteSidecar: c.Output.WriteSidecar,
		Metrics:      m,
	}, log)

	return &pipeline{
		scraper: s,
		fetcher: fetcher,
		repo:    repo,
		pool:    pool,
		metrics: m,
		log:     log,
	}, nil
}

// Close releases the browser and the job store. Call after the pool has
// been stopped.
func (p *pipeline) Close() {
	if err := p.scraper.Close(); err != nil {
		p.log.WithError(err).Warn("failed to close browser session")
	}
	if err := p.repo.Close(); err != nil {
		p.log.WithError(err).Warn("failed to close job store")
	}
}

func openRepository(ctx context.Context) (jobs.Repository, error) {
	repo, err := jobs.Open(ctx, cfg.Jobs.Driver, cfg.Jobs.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}
	return repo, nil
}
