package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgefleet/conveyor/internal/state"
	"github.com/forgefleet/conveyor/pkg/models"
)

var (
	statusWorkDir string
	statusLimit   int
	statusPurge   time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent rebuild job runs from the local archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus()
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusWorkDir, "work-dir", "jobs_scratch_dir", "Job scratch directory holding the archive")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "Maximum number of runs to show")
	statusCmd.Flags().DurationVar(&statusPurge, "purge-older-than", 0, "Delete archived runs older than this duration before listing")
}

func runStatus() error {
	path := state.ArchivePath(statusWorkDir)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no job archive at %s", path)
	}

	db, err := state.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	if statusPurge > 0 {
		purged, err := db.PurgeOldJobs(statusPurge)
		if err != nil {
			return err
		}
		fmt.Printf("purged %d archived runs older than %s\n", purged, statusPurge)
	}

	jobs, err := db.RecentJobs(statusLimit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("no recorded job runs")
		return nil
	}

	for _, job := range jobs {
		stateColor(job.State).Printf("%-12s", job.State)
		fmt.Printf(" %s  %s", job.StartedAt.Format("2006-01-02 15:04"), job.SpecLabel)
		if job.ReportID != "" && job.ReportID != models.ReportIDNone {
			fmt.Printf("  report=%s", job.ReportID)
		}
		if job.Error != "" {
			fmt.Printf("  (%s)", job.Error)
		}
		fmt.Println()
	}
	return nil
}

func stateColor(s models.JobState) *color.Color {
	switch s {
	case models.JobStateDone:
		return color.New(color.FgGreen)
	case models.JobStateFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
