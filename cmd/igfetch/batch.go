package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"igfetch/pkg/logger"
	"igfetch/pkg/metrics"
	"igfetch/pkg/ui"
)

var (
	batchFile   string
	batchNotify bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Download every URL read from a file or stdin",
	Long: `Read Instagram URLs, one per line, from --file or stdin and download them
with the job runner. Blank lines and lines starting with # are skipped.

With --metrics-addr (or metrics.enabled in the config) the command serves
Prometheus metrics on /metrics and a liveness check on /healthz while it runs.`,
	Example: `  igfetch batch --file urls.txt
  cat urls.txt | igfetch batch --metrics-addr :9090 --all`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addDownloadFlags(batchCmd)
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "file with one URL per line (default: stdin)")
	batchCmd.Flags().StringVar(&cmdFlags.MetricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	batchCmd.Flags().BoolVar(&batchNotify, "notify", false, "send a desktop notification when the batch finishes")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := cmd.InOrStdin()
	if batchFile != "" {
		f, err := os.Open(batchFile)
		if err != nil {
			return fmt.Errorf("failed to open URL file: %w", err)
		}
		defer f.Close()
		in = f
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if cfg.Metrics.Enabled {
		srv := newMetricsServer(cfg.Metrics.Address, p.metrics)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				p.log.WithError(err).Error("metrics server failed")
			}
		}()
		defer shutdownServer(srv, p.log)
		console.Info("Metrics", "http://"+displayAddr(cfg.Metrics.Address)+"/metrics")
	}

	progress := ui.NewProgressDisplay(console, 0)
	p.pool.Start()

	hkCtx, stopHousekeeping := context.WithCancel(ctx)
	defer stopHousekeeping()
	go housekeep(hkCtx, p, cfg.Cache.TTL)

	// Results are consumed while URLs are still being submitted so a full
	// results channel never blocks the workers.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range p.pool.Results() {
			var size int64
			url := ""
			if res.Job != nil {
				size, url = res.Job.FileSize, res.Job.URL
			}
			if !res.Success() && res.Err == nil {
				res.Err = errors.New("job did not complete")
			}
			progress.JobFinished(url, size, res.Err)
			if res.Err != nil && res.Job != nil {
				p.log.WithFields(map[string]interface{}{
					"job_id": res.Job.ID,
					"url":    res.Job.URL,
				}).Warn(res.Job.Error)
			}
		}
	}()

	rejected, readErr := submitURLs(ctx, in, p, progress)
	p.pool.Stop()
	<-done

	progress.Complete()
	completed, failed := progress.Counts()
	failed += rejected
	if batchNotify {
		ui.NewNotifier().BatchFinished(completed, failed)
	}

	if readErr != nil {
		return readErr
	}
	if failed > 0 {
		return fmt.Errorf("%d jobs failed", failed)
	}
	return nil
}

// submitURLs queues every URL line of in until it is exhausted or ctx is
// cancelled. It returns the number of URLs rejected before queueing.
func submitURLs(ctx context.Context, in io.Reader, p *pipeline, progress *ui.ProgressDisplay) (int, error) {
	rejected := 0
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			console.Warning("Interrupted; waiting for running jobs")
			return rejected, nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, err := p.pool.Submit(ctx, line); err != nil {
			rejected++
			console.Error(line, err)
			continue
		}
		progress.AddTotal(1)
	}
	if err := scanner.Err(); err != nil {
		return rejected, fmt.Errorf("failed to read URLs: %w", err)
	}
	return rejected, nil
}

// housekeep drops expired cache entries every interval until ctx is done
func housekeep(ctx context.Context, p *pipeline, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged := p.scraper.Purge()
			p.log.WithFields(map[string]interface{}{
				"purged": purged,
				"queued": p.pool.QueueSize(),
			}).Debug("cache housekeeping")
		}
	}
}

func newMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func shutdownServer(srv *http.Server, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("metrics server shutdown failed")
	}
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
