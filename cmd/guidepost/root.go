package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/guidepostlabs/guidepost/internal/config"
	"github.com/guidepostlabs/guidepost/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "guidepost",
	Short: "Guidepost is a conversational career advisor",
	Long:  `Guidepost serves a small web app that reads a pasted conversation, asks clarifying questions when it needs more detail, and maps a person's interests to concrete career paths.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "guidepost.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Minimum log level (debug, info, warn, error)")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	name, _ := cmd.Flags().GetString("log-level")
	return logging.New(logging.ParseLevel(name))
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
