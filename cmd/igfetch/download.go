package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"igfetch/internal/downloader"
	"igfetch/pkg/ui"
)

var downloadCmd = &cobra.Command{
	Use:   "download <url>...",
	Short: "Download the media of one or more Instagram URLs",
	Long: `Create a download job per URL, wait for all of them to finish and print
each job's final state. The command fails if any job failed.`,
	Example: `  igfetch download https://www.instagram.com/p/C1a2b3c4d5e/
  igfetch download --all --sidecar -o ./media URL1 URL2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	addDownloadFlags(downloadCmd)
}

// addDownloadFlags registers the flags shared by download and batch
func addDownloadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&cmdFlags.DownloadDir, "output", "o", "", "download directory")
	cmd.Flags().IntVarP(&cmdFlags.ConcurrentJobs, "concurrency", "j", 0, "number of jobs processed at once")
	cmd.Flags().BoolVar(&cmdFlags.AllMedia, "all", false, "download every media item instead of only the first")
	cmd.Flags().BoolVar(&cmdFlags.WriteSidecar, "sidecar", false, "write a <file>.json metadata sidecar next to each file")
	cmd.Flags().StringVar(&cmdFlags.JobsDriver, "jobs-driver", "", "job store: memory, sqlite or postgres")
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	failed := downloadAll(ctx, p.pool, args)
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(args))
	}
	return nil
}

// downloadAll runs one job per URL and returns the number that failed or
// were rejected. Results are read while URLs are still being submitted, so
// any number of URLs fits through the bounded queue.
func downloadAll(ctx context.Context, pool *downloader.Pool, urls []string) int {
	pool.Start()

	failedJobs := make(chan int, 1)
	go func() {
		failed := 0
		for res := range pool.Results() {
			reportResult(res)
			if !res.Success() {
				failed++
			}
		}
		failedJobs <- failed
	}()

	rejected := 0
	for _, arg := range urls {
		url := strings.TrimSpace(arg)
		job, err := pool.Submit(ctx, url)
		if err != nil {
			console.Error(url, err)
			rejected++
			continue
		}
		console.Info("Queued", fmt.Sprintf("%s (%s)", job.ID, job.Type))
	}

	pool.Stop()
	return rejected + <-failedJobs
}

func reportResult(res downloader.Result) {
	if res.Job == nil {
		console.Error("job failed", res.Err)
		return
	}
	if res.Success() {
		console.Success(fmt.Sprintf("%s → %s (%s)", res.Job.URL, res.Job.FilePath, ui.FormatBytes(res.Job.FileSize)))
	} else {
		console.Error(res.Job.URL, res.Job.Error)
	}
	console.Print(ui.JobDetail(res.Job) + "\n")
}
