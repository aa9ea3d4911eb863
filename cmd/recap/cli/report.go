package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/store"
)

func newReportCmd() *cobra.Command {
	var scaleFlag string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print compacted work summaries for every project at a given scale",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scale, err := parseScale(scaleFlag)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			summaries := store.NewSummaryStore(a.Store)
			projects, err := summaries.ListDistinctProjects(a.User.ID, scale)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no summaries yet; run `recap sync` first")
				return nil
			}

			for _, project := range projects {
				items, err := summaries.ListByScale(a.User.ID, project, scale)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "## %s\n", project)
				for _, s := range items {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", s.BucketKey, s.Outcome)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scaleFlag, "scale", "daily", "summary scale: hourly, daily, weekly, monthly")
	return cmd
}

func parseScale(s string) (model.SummaryScale, error) {
	switch s {
	case "hourly":
		return model.ScaleHourly, nil
	case "daily":
		return model.ScaleDaily, nil
	case "weekly":
		return model.ScaleWeekly, nil
	case "monthly":
		return model.ScaleMonthly, nil
	default:
		return "", fmt.Errorf("unknown scale %q (want hourly, daily, weekly, or monthly)", s)
	}
}
