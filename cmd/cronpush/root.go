package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sznuper/cronpush/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cronpush",
	Short: "Run a script on a schedule and push the state it leaves behind",
	Long: `cronpush prepares a git working copy, runs a script with injected secrets,
and commits and pushes the state files the script changed.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/cronpush/config.yaml, then /etc/cronpush/config.yaml)")
	registerOptionFlags(rootCmd)
}

// loadConfig resolves the config file, applies flag overrides and validates.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, path, err := config.Resolve(cfgFile)
	if err != nil {
		return nil, "", err
	}
	applyOptionFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return cfg, path, nil
}

// setupLogger returns a logger writing to stderr: text on a terminal, JSON
// otherwise.
func setupLogger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// flagLevel reads --log-level for commands that run without a config file.
func flagLevel(cmd *cobra.Command) string {
	level, _ := cmd.Flags().GetString("log-level")
	return level
}
