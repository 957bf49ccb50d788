package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "conveyor",
	Short: "Release pipeline generator and rebuild driver",
	Long: `Conveyor turns a resolved package dependency graph into a staged CI
pipeline and drives the per-job rebuild lifecycle.

generate reads a release set, plans build stages that maximize
parallelism, assigns each package to a runner via the configured mapping
rules, and writes the pipeline descriptor.

rebuild runs inside a generated CI job: it checks the mirror for an
existing artifact, builds and publishes the package when none exists, and
records the build's dependency relationships in the report service.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to conveyor.yaml (default: search upward from the working directory)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
