package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"igfetch/pkg/logger"
	"igfetch/pkg/metrics"
)

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Print the media and metadata of an Instagram URL as JSON",
	Long: `Resolve an Instagram post, reel, story or IGTV URL and print the
extraction result as JSON. Nothing is downloaded.`,
	Example: `  igfetch extract https://www.instagram.com/p/C1a2b3c4d5e/
  igfetch extract --no-browser https://www.instagram.com/reel/C1a2b3c4d5e/`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	url := strings.TrimSpace(args[0])
	log := logger.GetLogger()

	s := newScraper(cfg, metrics.New(), log)
	defer func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Warn("failed to close browser session")
		}
	}()

	result, err := s.ExtractMetadata(cmd.Context(), url)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
