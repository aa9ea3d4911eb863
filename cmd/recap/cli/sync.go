package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one ingestion pass: discover, sync sessions, and compact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.Coordinator.RunPass(cmd.Context(), a.User.ID)
			for name, sr := range result.Sources {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: scanned=%d processed=%d skipped=%d created=%d updated=%d\n",
					name, sr.ProjectsScanned, sr.SessionsProcessed, sr.SessionsSkipped, sr.WorkItemsCreated, sr.WorkItemsUpdated)
				if sr.Error != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "  error: %v\n", sr.Error)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compaction: hourly=%d daily=%d weekly=%d monthly=%d\n",
				result.Compaction.HourlyCompacted, result.Compaction.DailyCompacted,
				result.Compaction.WeeklyCompacted, result.Compaction.MonthlyCompacted)
			return result.Err
		},
	}
}
