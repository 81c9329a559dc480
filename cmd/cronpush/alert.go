package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sznuper/cronpush/internal/weatheralert"
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Send the scheduled Telegram test alert",
	Long: `Sends the scheduled test message to Telegram and records it in a JSON cache.
Intended as the run script: credentials come from TELEGRAM_BOT_TOKEN and
TELEGRAM_CHAT_ID. A failed send is logged and exits 0 without touching the cache.

Missing TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID exits 1, so the scheduled run
fails and is reported instead of passing silently.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		statePath, _ := cmd.Flags().GetString("state")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		logger := setupLogger(flagLevel(cmd))

		creds, err := weatheralert.CredentialsFromEnv(os.Getenv)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		agent := &weatheralert.Agent{
			Creds:     creds,
			StatePath: statePath,
			DryRun:    dryRun,
			Logger:    logger,
		}
		outcome, err := agent.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), outcome)
		return nil
	},
}

func init() {
	alertCmd.Flags().String("state", "cache.json", "send cache file")
	alertCmd.Flags().Bool("dry-run", false, "build the message without sending it")
	rootCmd.AddCommand(alertCmd)
}
