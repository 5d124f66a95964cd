package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneDays int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old changes and resolved conflicts",
	Long: `Delete change log entries and resolved conflicts older than the given
number of days, for every user. Pending conflicts are never removed.

Examples:
  syncctl prune              # use retention.days from config
  syncctl prune --days 7`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		days := pruneDays
		if days == 0 {
			days = a.Config.Retention.Days
		}
		n, err := a.Sync.PruneOldData(cmd.Context(), days)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d records older than %d days\n", n, days)
		return nil
	},
}

func init() {
	pruneCmd.Flags().IntVarP(&pruneDays, "days", "d", 0, "retention horizon in days (default from config)")
	rootCmd.AddCommand(pruneCmd)
}
