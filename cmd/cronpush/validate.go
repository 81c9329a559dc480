package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sznuper/cronpush/internal/secret"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", okStyle.Render("✓"), path)
		if spec := cfg.Trigger.Schedule(); spec != "" {
			fmt.Fprintf(out, "  %s %s (overlap: %s)\n", labelStyle.Render("Schedule:"), spec, cfg.Trigger.Overlap)
		} else {
			fmt.Fprintf(out, "  %s manual only\n", labelStyle.Render("Schedule:"))
		}
		fmt.Fprintf(out, "  %s %s on %s\n", labelStyle.Render("Working copy:"), cfg.Options.WorkDir, cfg.Options.Branch)
		fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("Script:"), cfg.Script.Path)
		fmt.Fprintf(out, "  %s %d\n", labelStyle.Render("Secrets:"), len(cfg.Secrets))
		if missing := secret.Set(cfg.Secrets).Missing(); len(missing) > 0 {
			fmt.Fprintf(out, "  %s empty in this environment: %s\n", failStyle.Render("!"), strings.Join(missing, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
