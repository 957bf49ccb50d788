package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgefleet/conveyor/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective pipeline configuration",
	Long: `Loads and validates conveyor.yaml, then prints the effective
configuration. Credential fields are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		displayConfig(cfg)
		return nil
	},
}

func displayConfig(cfg *config.Config) {
	fmt.Printf("mappings: %d rules\n", len(cfg.Mappings))
	for i, rule := range cfg.Mappings {
		fmt.Printf("  %d: match=%v tags=%v image=%s\n", i, rule.Match, rule.RunnerAttributes.Tags, rule.RunnerAttributes.Image.Name)
	}
	for _, phase := range cfg.Bootstrap {
		fmt.Printf("bootstrap: %s (compiler-agnostic: %t)\n", phase.Name, phase.CompilerAgnostic)
	}
	fmt.Printf("mirrors.remote: %s\n", cfg.Mirrors.Remote)
	fmt.Printf("mirrors.local: %s\n", cfg.Mirrors.Local)
	fmt.Printf("report.enabled: %t\n", cfg.Report.Enabled)
	if cfg.Report.Enabled {
		fmt.Printf("report.url: %s\n", cfg.Report.URL)
		fmt.Printf("report.project: %s\n", cfg.Report.Project)
		fmt.Printf("report.site: %s\n", cfg.Report.Site)
		fmt.Printf("report.build_group: %s\n", cfg.Report.BuildGroup)
		fmt.Printf("report.token: %s\n", mask(cfg.Report.Token))
	}
	fmt.Printf("signing.key: %s\n", mask(cfg.Signing.Key))
	fmt.Printf("artifact_paths: %v\n", cfg.ArtifactPaths)
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "****"
}
