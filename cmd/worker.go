package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediavault/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume the job queue (variants generation)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		a.log.Info("Starting job worker", "concurrency", a.cfg.Queue.Concurrency)
		return a.newWorker().Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func (a *app) newWorker() *queue.Worker {
	registry := queue.NewRegistry()
	if err := registry.Register(a.variants); err != nil {
		a.log.Fatal("Failed to register job handler", "error", err)
	}

	return queue.NewWorker(a.jobs, registry, a.log, queue.WorkerConfig{
		Concurrency:  a.cfg.Queue.Concurrency,
		PollInterval: a.cfg.Queue.PollInterval,
		Backoff:      a.cfg.Queue.Backoff,
		StaleAfter:   a.cfg.Queue.StaleAfter,
	})
}
