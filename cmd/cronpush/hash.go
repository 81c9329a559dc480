package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sznuper/cronpush/internal/script"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file>",
	Short: "Print the sha256 hash of a file",
	Long:  "Prints the sha256 of a script, for use as script.sha256 in the config.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sum, err := script.HashFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sum)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
}
