package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Run one compaction cycle over already-synced snapshots, without syncing sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Coordinator.Compactor.RunCompactionCycle(cmd.Context(), a.User.ID, time.Now())
			fmt.Fprintf(cmd.OutOrStdout(), "hourly=%d daily=%d weekly=%d monthly=%d latest=%s\n",
				result.HourlyCompacted, result.DailyCompacted, result.WeeklyCompacted, result.MonthlyCompacted, result.LatestCompactedDate)
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", e)
			}
			return err
		},
	}
}
