package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"igfetch/pkg/jobs"
	"igfetch/pkg/logger"
	"igfetch/pkg/metadata"
	"igfetch/pkg/ui"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect download jobs",
	Long: `Inspect download jobs recorded in the job store (jobs.driver / jobs.dsn).
The memory driver keeps nothing between runs.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one job with its extracted metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsListCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "maximum number of jobs to list")
}

func runJobsList(cmd *cobra.Command, args []string) error {
	repo, err := openRepository(cmd.Context())
	if err != nil {
		return err
	}
	defer repo.Close()

	list, err := repo.ListRecent(cmd.Context(), jobsLimit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(list) == 0 {
		console.Warning("No jobs recorded")
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.JobsTable(list))
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	repo, err := openRepository(cmd.Context())
	if err != nil {
		return err
	}
	defer repo.Close()

	job, err := repo.Get(cmd.Context(), args[0])
	if errors.Is(err, jobs.ErrNotFound) {
		return fmt.Errorf("no job with id %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, ui.JobDetail(job))

	if job.FilePath != "" && metadata.Exists(job.FilePath) {
		sc, err := metadata.Load(job.FilePath)
		if err != nil {
			logger.GetLogger().WithError(err).Debug("unreadable metadata sidecar")
			return nil
		}
		console.Info("Sidecar", metadata.PathFor(job.FilePath))
		if caption := sc.Caption(80); caption != "" {
			console.Info("Caption", caption)
		}
	}
	return nil
}
