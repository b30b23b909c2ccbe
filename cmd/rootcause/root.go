package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rootcause",
		Short: "rootcause diagnoses performance problems in invocation traces",
		Long: `rootcause runs a forward-chaining rule set over captured invocation trees
and reports where time is wasted: the global context, the operations that
waste it, their problem context, the root cause calls and their structure.`,
		SilenceUsage: true,
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default $ROOTCAUSE_CONFIG or ./rootcause.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newDiagnoseCmd(),
		newServeCmd(),
		newMCPCmd(),
		newRulesCmd(),
		newResultsCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
