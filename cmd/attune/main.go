package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "attune",
	Short:   "Local wellness insight personalization service",
	Version: version,
	Long: `attune records daily check-ins, evaluates contextual wellness triggers,
and adapts insight messages to the user's role and learned preferences.

Run "attune start" to launch the server, then use the other commands to
interact with it.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(triggersCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
