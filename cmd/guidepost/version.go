package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at release time via -ldflags.
var version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of guidepost",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("guidepost version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
