package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Purge one batch of soft-deleted assets and their files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		purged, err := a.gc.Collect(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d assets\n", purged)
		return nil
	},
}

var pendingCleanCmd = &cobra.Command{
	Use:   "pending-clean",
	Short: "Remove expired pending uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.pending.CleanExpiredPendingAssets(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired pending assets\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gcCmd, pendingCleanCmd)
}

// scheduler планирует очистку временных загрузок и сборку мусора
func (a *app) scheduler(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	if _, err := c.AddFunc(a.cfg.Pending.CleanupSchedule, func() {
		if _, err := a.pending.CleanExpiredPendingAssets(ctx); err != nil {
			a.log.Error("Pending cleanup failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid pending cleanup schedule %q: %w", a.cfg.Pending.CleanupSchedule, err)
	}

	if _, err := c.AddFunc(a.cfg.GarbageCollector.Schedule, func() {
		if _, err := a.gc.Collect(ctx); err != nil {
			a.log.Error("Garbage collection failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid garbage collector schedule %q: %w", a.cfg.GarbageCollector.Schedule, err)
	}

	return c, nil
}
