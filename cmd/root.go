package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskguard",
	Short: "Single-instance task execution service",
	Long:  "Runs queued tasks with a distributed single-instance lock and exposes lock administration over HTTP and gRPC.",
}

// Execute runs the root Cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
