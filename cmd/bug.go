package cmd

import (
	"fmt"
	"strconv"

	"github.com/danielolaszy/rmsnarf/internal/config"
	"github.com/danielolaszy/rmsnarf/internal/logging"
	"github.com/spf13/cobra"
)

// bugCmd looks up a single issue, the same way the chat "bug" command does.
var bugCmd = &cobra.Command{
	Use:   "bug <number>",
	Short: "Show the summary of a Redmine issue",
	Long: `Fetch a Redmine issue and print its summary lines using the configured
message template. Announcement windows and channel settings do not apply.

Example:
  rmsnarf bug 1234`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%q is not a valid integer", args[0])
		}

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		svc, err := newService(cfg)
		if err != nil {
			return err
		}

		logging.Debug("looking up issue", "issue_id", id)
		for _, line := range svc.Lookup(cmd.Context(), id) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}
