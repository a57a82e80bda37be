package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guidepostlabs/guidepost/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the configuration for consistency",
	Long:  `Loads the configuration and resolves the API key the way the serve command would, without sending any request to the provider.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := runCheck(cmd)
		if err != nil {
			fmt.Printf("Check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration is valid! ✅")
		fmt.Printf("  addr:          %s\n", cfg.Server.Addr)
		fmt.Printf("  model:         %s\n", cfg.Advice.Model)
		fmt.Printf("  base url:      %s\n", cfg.Advice.BaseURL)
		fmt.Printf("  session store: %s (ttl %s)\n", cfg.Sessions.Store, cfg.Sessions.TTL.Std())
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command) (config.Config, error) {
	logger := newLogger(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, err
	}

	if _, err := config.ResolveAPIKey(cmd.Context(), cfg.Secrets, logger); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}
