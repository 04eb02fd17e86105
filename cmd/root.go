// Package cmd implements llamabridge's command-line surface: the
// foreground proxy server and a handful of operator diagnostics, built
// on the teacher's cobra+color stack.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/llamabridge/llamabridge/internal/config"
)

const (
	AppName = "llamabridge"
	Version = "0.1.0"
)

var (
	cfgMgr         *config.Manager
	configFlagPath string
)

var rootCmd = &cobra.Command{
	Use:     AppName,
	Short:   "A reverse proxy bridging OpenAI and Anthropic chat APIs to a local llama.cpp-style backend",
	Long:    `llamabridge sits in front of a llama.cpp-style inference server: it repairs malformed tool-call JSON in the upstream's responses, bridges the Anthropic Messages grammar onto the upstream's OpenAI Chat Completions grammar, and synthesizes server-sent-event streams from buffered responses for clients that expect to stream.`,
	Version: Version,
}

// Execute runs the root command, printing any returned error in red and
// exiting non-zero — cobra's own error printing is suppressed in favor of
// this so every failure path gets the same colored treatment.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlagPath, "config", "c", defaultConfigPath(), "path to config.yaml")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug-level logging")

	cobra.OnInitialize(func() {
		cfgMgr = config.NewManager(configFlagPath)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listFixesCmd)
	rootCmd.AddCommand(checkConfigCmd)
	rootCmd.AddCommand(testBackendCmd)
}

func defaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "."+AppName, config.DefaultConfigFilename)
	}
	return config.DefaultConfigFilename
}
