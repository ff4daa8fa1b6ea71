// Package cmd provides the command-line interface for rmsnarf.
package cmd

import (
	"fmt"

	"github.com/danielolaszy/rmsnarf/internal/config"
	"github.com/danielolaszy/rmsnarf/internal/dedup"
	"github.com/danielolaszy/rmsnarf/internal/redmine"
	"github.com/danielolaszy/rmsnarf/internal/snarf"
	"github.com/spf13/cobra"
)

// cfgFile is the optional YAML config file given with --config.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rmsnarf",
	Short: "rmsnarf announces Redmine issues mentioned in chat",
	Long: `rmsnarf watches chat channels for Redmine issue references such as
"RM 1234" and replies with a one or two line summary of each issue, fetched
from the tracker's REST API. The same summary is available on request with
the "bug <number>" command.

Configuration is read from an optional YAML file (--config) and from
RMSNARF_* environment variables, e.g. RMSNARF_REDMINE_API_KEY.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(bugCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// newSettings builds the snarfer settings, including a tracker client, from cfg.
func newSettings(cfg *config.Config) (snarf.Settings, error) {
	client, err := redmine.NewClient(cfg.Redmine)
	if err != nil {
		return snarf.Settings{}, fmt.Errorf("failed to initialize tracker client: %w", err)
	}
	return snarf.NewSettings(cfg, client), nil
}

// newService wires a snarf service for cfg. Channels named in the config get
// their announcement windows up front.
func newService(cfg *config.Config) (*snarf.Service, error) {
	settings, err := newSettings(cfg)
	if err != nil {
		return nil, err
	}

	tracker := dedup.NewTracker(settings.Timeout)
	for channel := range cfg.Snarfer.Channels {
		tracker.Prime(channel)
	}

	return snarf.NewService(tracker, settings), nil
}
