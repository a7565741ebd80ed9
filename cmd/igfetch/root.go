package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igfetch/pkg/config"
	"igfetch/pkg/logger"
	"igfetch/pkg/ui"
)

var (
	// Version information
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	noBrowser  bool

	// Set by subcommands that override configuration
	cmdFlags config.Flags

	// Populated before every command runs
	cfg     *config.Config
	console *ui.Console
)

// skipConfigAnnotation marks commands that run on defaults when the
// configuration cannot be loaded
const skipConfigAnnotation = "igfetch/skip-config"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igfetch",
	Short: "Extract and download media from Instagram posts, reels, stories and IGTV",
	Long: `igfetch resolves an Instagram URL to its media and downloads it.

Posts, reels and IGTV are read from the public page with a single request and
fall back to a headless browser when that is not enough. Stories always use
the browser and need a logged-in session (see 'igfetch auth login').`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		console = ui.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr(), quiet)

		flags := cmdFlags
		flags.LogLevel = logLevel
		flags.NoBrowser = noBrowser

		loaded, err := config.Load(configFile, flags)
		if err != nil {
			if cmd.Annotations[skipConfigAnnotation] != "true" {
				return err
			}
			console.Warning("Using defaults", err)
			loaded = config.DefaultConfig()
			loaded.MergeFlags(flags)
		}
		cfg = loaded

		if err := logger.Initialize(&cfg.Logging, logger.Options{Quiet: quiet}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.WithFields(map[string]interface{}{
			"version": version,
			"command": cmd.CommandPath(),
		}).Debug("igfetch starting")
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if console == nil {
			console = ui.NewConsole(os.Stdout, os.Stderr, quiet)
		}
		console.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./.igfetch.yaml or ~/.config/igfetch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&noBrowser, "no-browser", false, "disable the headless browser fallback (stories become unavailable)")

	rootCmd.SetVersionTemplate(`igfetch {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
