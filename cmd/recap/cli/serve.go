package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wilbur182/recap/internal/core/coordinator"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic ingestion scheduler and quota poller until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			scheduler := coordinator.NewScheduler(a.Coordinator, []string{a.User.ID}, coordinator.DefaultIntervalMinutes, nil, a.Log)

			errCh := make(chan error, 3)
			go func() { errCh <- scheduler.Start(ctx) }()
			go func() { errCh <- a.QuotaPoller.Start(ctx) }()

			waits := 2
			if len(a.WatchRoots) > 0 {
				watcher := coordinator.NewWatcher(a.Coordinator, a.User.ID, a.WatchRoots, nil, a.Log)
				go func() { errCh <- watcher.Start(ctx) }()
				waits++
			}

			fmt.Fprintln(cmd.OutOrStdout(), "recap serve: running (ctrl-c to stop)")
			<-ctx.Done()
			for i := 0; i < waits; i++ {
				<-errCh
			}
			return nil
		},
	}
}
