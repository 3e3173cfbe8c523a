package main

import (
	"fmt"
	"os"

	"github.com/cuemby/glean/pkg/config"
	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "glean",
	Short: "Glean - client-side telemetry toolkit",
	Long: `Glean records metrics and events, assembles them into pings and
uploads them to a telemetry endpoint.

This binary bundles a local ingestion collector for development, a
command that records and sends a ping, and tools to inspect the pending
pings of a client data directory.`,
	Version: core.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		jsonOutput, _ := cmd.Flags().GetBool("log-json")
		log.Init(log.Config{
			Level:      log.Level(level),
			JSONOutput: jsonOutput,
		})
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Glean version %s\nCommit: %s\nBuilt: %s\n",
		core.Version, core.Commit, core.BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON instead of console output")

	rootCmd.AddCommand(collectorCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads --config if given, otherwise starts from the defaults
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// Config commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect client configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration a client would run with: the file given with
--config merged over the defaults, or the defaults alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("failed to encode config: %v", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configShowCmd.Flags().StringP("config", "c", "", "YAML configuration file")
}
