// Package main is the entry point for the reelback playback daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reelback/reelback/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "reelbackd",
	Short:        "Playback coordination daemon for archived concert streaming",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetInfo().String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
