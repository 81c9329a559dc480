package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sznuper/cronpush/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run once now",
	Long:  "Performs a single manual run: prepare, execute, reconcile. Use --dry-run to stop before committing.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := setupLogger(cfg.Options.LogLevel)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res := runner.NewFromConfig(cfg, logger).Run(ctx, runner.SourceManual, dryRun)
		printResult(cmd.OutOrStdout(), res)

		if res.Err != nil {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "run the script but do not commit, push or notify")
	rootCmd.AddCommand(runCmd)
}

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	idleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle = lipgloss.NewStyle().Faint(true)
)

func printResult(w io.Writer, r runner.Result) {
	field := func(label, value string) {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(label+":"), value)
	}

	switch r.State {
	case runner.StateFailed:
		fmt.Fprintf(w, "%s run %s\n", failStyle.Render("✗"), r.RunID)
	case runner.StateCommitted:
		fmt.Fprintf(w, "%s run %s\n", okStyle.Render("✓"), r.RunID)
	default:
		fmt.Fprintf(w, "%s run %s\n", idleStyle.Render("•"), r.RunID)
	}

	field("Trigger", string(r.Trigger))
	field("State", string(r.State))
	field("Path", joinStates(r.Transitions))
	if r.ScriptPath != "" {
		field("Script", fmt.Sprintf("%s (exit %d)", r.ScriptPath, r.ExitCode))
	}
	field("Duration", r.Duration.Round(time.Millisecond).String())

	if r.Err != nil {
		field("Error ("+string(r.ErrStage)+")", r.Err.Error())
		if r.Stderr != "" {
			field("Stderr", strings.TrimSpace(r.Stderr))
		}
		return
	}

	if len(r.Changed) > 0 {
		label := "Changed"
		if r.DryRun {
			label = "Would commit"
		}
		field(label, strings.Join(r.Changed, ", "))
	}
	if r.Commit != "" {
		field("Commit", r.Commit)
	}
	if r.Pushed {
		field("Pushed", "yes")
	}
}

func joinStates(states []runner.State) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, " → ")
}
