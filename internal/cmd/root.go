// Package cmd implements the pcagent command line.
package cmd

import (
	"github.com/rahul/pcagent/pkg/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pcagent",
	Short: "Turn plain-language tasks into desktop and browser actions",
	Long: `pcagent plans a natural-language task into a sequence of clicks, typing,
navigation, waits and screen analysis, then executes it against the desktop
and a Chrome tab with per-step retries and an abort policy.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "config file (.json, .yaml or .yml)")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configPath)
}
