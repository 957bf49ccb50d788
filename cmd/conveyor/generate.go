package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgefleet/conveyor/internal/config"
	"github.com/forgefleet/conveyor/internal/pipeline"
	"github.com/forgefleet/conveyor/internal/planner"
	"github.com/forgefleet/conveyor/internal/report"
)

var (
	generateOutput  string
	generateSummary bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <release-set.yaml>",
	Short: "Generate the CI pipeline descriptor for a release set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd.Context(), args[0])
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "pipeline.yaml", "Descriptor output path")
	generateCmd.Flags().BoolVar(&generateSummary, "summary", false, "Print a staging summary")
}

func runGenerate(ctx context.Context, releaseSetPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	rs, err := config.LoadReleaseSet(releaseSetPath)
	if err != nil {
		return err
	}

	phases := make([]planner.Phase, 0, len(cfg.Bootstrap))
	for _, p := range cfg.Bootstrap {
		specs, err := rs.List(p.Name)
		if err != nil {
			return err
		}
		phases = append(phases, planner.Phase{
			Name:             p.Name,
			Specs:            specs,
			CompilerAgnostic: p.CompilerAgnostic,
		})
	}

	d, err := pipeline.Generate(cfg, phases, rs.Specs)
	if err != nil {
		return err
	}

	raw, err := d.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(generateOutput, raw, 0644); err != nil {
		return fmt.Errorf("write descriptor %s: %w", generateOutput, err)
	}

	if generateSummary {
		d.PrintSummary(os.Stdout)
	}
	color.Green("Wrote %s (%d jobs)", generateOutput, len(d.Jobs))

	// Registering the expected jobs up front gives the report dashboard
	// pending entries for the whole release set. A failure here only
	// degrades the dashboard, never the pipeline.
	if cfg.Report.Enabled && cfg.Report.Token != "" {
		client := report.New(cfg.Report.URL, cfg.Report.Project, cfg.Report.Site, cfg.Report.Token)
		if err := client.PopulateBuildGroup(ctx, d.JobNames(), cfg.Report.BuildGroup); err != nil {
			color.Yellow("warning: populate build group: %v", err)
		}
	}

	return nil
}
