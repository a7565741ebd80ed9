package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igfetch/pkg/auth"
	"igfetch/pkg/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igfetch configuration.

Configuration is merged from, lowest to highest priority:
  - defaults
  - the config file (YAML, or TOML when the name ends in .toml)
  - .env and ~/.igfetch.env
  - IGFETCH_* environment variables
  - command line flags`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the configuration after merging every source. The session ID is masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the default settings",
	Long: `Write the default configuration to path, --config, or
~/.config/igfetch/config.yaml. Use a .toml extension for TOML.`,
	Args:        cobra.MaximumNArgs(1),
	RunE:        runConfigInit,
	Annotations: map[string]string{skipConfigAnnotation: "true"},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	display := *cfg
	if display.Instagram.SessionID != "" {
		display.Instagram.SessionID = auth.MaskSecret(display.Instagram.SessionID)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	console.Highlight("# Effective configuration")
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	console.Success("Configuration written")
	console.Info("Path", path)
	return nil
}
