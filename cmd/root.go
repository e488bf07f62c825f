// Package cmd provides the command-line interface for flowsim.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flowsim",
	Short: "flowsim runs discrete-event simulations of queueing networks.",
	Long: `flowsim runs discrete-event simulations of queueing networks ` +
		`described in scenario files, optionally paced against the wall ` +
		`clock, monitored over HTTP, and traced into SQLite.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		logrus.WithError(err).Error("flowsim failed")
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
