// Package cmd provides the CLI commands for Lattice.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// cfgFile holds the path to the config file
	cfgFile string
	// verbose enables verbose output
	verbose bool
	// outputFormat specifies the output format (json, plain)
	outputFormat string
)

var rootCmd = newRootCmd()

// Execute runs the root command. Called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// NewRootCmd creates a fresh command tree, mainly for tests.
func NewRootCmd() *cobra.Command {
	return newRootCmd()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lattice",
		Short: "Lattice DSL runtime",
		Long: `Lattice parses, validates, and runs declarative XML applications.

Documents declare components, functions, datasources, jobs, and routes;
the runtime executes them against live backends or serves them over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./lattice.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "plain", "output format (json|plain)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newParseCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// printVerbose prints message only if verbose mode is enabled.
func printVerbose(cmd *cobra.Command, format string, args ...any) {
	if verbose {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}
