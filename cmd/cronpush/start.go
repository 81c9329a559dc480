package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sznuper/cronpush/internal/config"
	"github.com/sznuper/cronpush/internal/runner"
	"github.com/sznuper/cronpush/internal/schedule"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run on the configured schedule until stopped",
	Long: `Starts the daemon. Runs fire from trigger.cron or trigger.interval; send SIGUSR1
for a manual run. The config file is watched and the schedule is updated on change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runNow, _ := cmd.Flags().GetBool("run-now")

		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := setupLogger(cfg.Options.LogLevel)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var current atomic.Pointer[runner.Runner]
		current.Store(runner.NewFromConfig(cfg, logger))

		sched := schedule.New(ctx, cfg.Trigger.Overlap, logger, func(ctx context.Context, src runner.Source) {
			current.Load().Run(ctx, src, false)
		})
		if err := sched.Reschedule(cfg.Trigger.Schedule()); err != nil {
			return err
		}
		sched.Start()
		logger.Info("daemon started", "config", path, "schedule", cfg.Trigger.Schedule(), "next", sched.Next(), "pid", os.Getpid())

		go func() {
			err := config.Watch(ctx, path, logger, func(next *config.Config) error {
				applyOptionFlags(cmd, next)
				if err := next.Validate(); err != nil {
					return err
				}
				if next.Trigger.Overlap != cfg.Trigger.Overlap {
					logger.Warn("trigger.overlap changed, restart to apply", "current", cfg.Trigger.Overlap)
				}
				if err := sched.Reschedule(next.Trigger.Schedule()); err != nil {
					return err
				}
				current.Store(runner.NewFromConfig(next, logger))
				return nil
			})
			if err != nil {
				logger.Error("config watch stopped", "error", err)
			}
		}()

		manual := make(chan os.Signal, 1)
		signal.Notify(manual, syscall.SIGUSR1)
		defer signal.Stop(manual)

		var wg sync.WaitGroup
		trigger := func() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sched.Trigger(runner.SourceManual)
			}()
		}
		if runNow {
			trigger()
		}

		for {
			select {
			case <-ctx.Done():
				logger.Info("shutting down, waiting for active run")
				sched.Stop()
				wg.Wait()
				return nil
			case <-manual:
				logger.Info("manual trigger received")
				trigger()
			}
		}
	},
}

func init() {
	startCmd.Flags().Bool("run-now", false, "perform one manual run right after starting")
	rootCmd.AddCommand(startCmd)
}
