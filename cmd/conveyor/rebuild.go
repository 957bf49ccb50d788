package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgefleet/conveyor/internal/config"
	"github.com/forgefleet/conveyor/internal/exec"
	"github.com/forgefleet/conveyor/internal/mirror"
	"github.com/forgefleet/conveyor/internal/rebuild"
	"github.com/forgefleet/conveyor/internal/report"
	"github.com/forgefleet/conveyor/internal/sign"
	"github.com/forgefleet/conveyor/internal/state"
)

var rebuildWorkDir string

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Run one rebuild job inside a generated pipeline",
	Long: `Rebuild reads its job descriptor from the CONVEYOR_* variables the
generator injected into the CI job, decides whether the package's
artifact already exists on the mirror, and builds, signs, and publishes
it when it does not.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRebuild(cmd.Context())
	},
}

func init() {
	rebuildCmd.Flags().StringVar(&rebuildWorkDir, "work-dir", "jobs_scratch_dir", "Job scratch directory")
}

func runRebuild(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	jobCfg := jobConfigFromEnv(cfg)
	if err := jobCfg.Validate(); err != nil {
		return err
	}

	logger, err := rebuild.NewDebugLogger(filepath.Join(jobCfg.WorkDir, "logs", "rebuild-debug.log"))
	if err != nil {
		return err
	}
	defer logger.Close()

	remote, err := mirror.New(ctx, jobCfg.MirrorURL)
	if err != nil {
		return err
	}
	local := mirror.NewFS(jobCfg.LocalMirrorDir)

	// A broken archive never fails the build; the job just runs without
	// local run records.
	var archive *state.DB
	if db, err := state.Open(state.ArchivePath(jobCfg.WorkDir)); err == nil {
		if err := db.Migrate(); err == nil {
			archive = db
			defer db.Close()
		} else {
			logger.Log("archive migrate: %v", err)
			db.Close()
		}
	} else {
		logger.Log("archive open: %v", err)
	}

	runner := exec.NewRunner()
	deps := rebuild.Deps{
		Remote:   remote,
		Local:    local,
		Executor: rebuild.NewToolExecutor(runner, logger),
		Signer:   sign.New(runner),
		Archive:  archive,
		Logger:   logger,
	}
	if cfg.Report.Enabled {
		deps.Reporter = report.New(cfg.Report.URL, cfg.Report.Project, cfg.Report.Site, cfg.Report.Token)
	}

	o, err := rebuild.New(jobCfg, deps)
	if err != nil {
		return err
	}

	if err := o.Run(ctx); err != nil {
		color.Red("rebuild failed: %v", err)
		return err
	}

	job := o.Job()
	color.Green("rebuild complete: %s (%s)", job.Spec.Label(), job.State)
	return nil
}

// jobConfigFromEnv assembles the job config from the generator-injected
// variables and the pipeline configuration.
func jobConfigFromEnv(cfg *config.Config) *rebuild.JobConfig {
	localDir := os.Getenv("CONVEYOR_LOCAL_MIRROR_DIR")
	if localDir == "" {
		localDir = cfg.Mirrors.Local
	}
	return &rebuild.JobConfig{
		WorkDir:          rebuildWorkDir,
		JobName:          os.Getenv("CI_JOB_NAME"),
		PackageName:      os.Getenv("CONVEYOR_JOB_SPEC_PKG_NAME"),
		EncodedRootSpec:  os.Getenv("CONVEYOR_ROOT_SPEC"),
		MirrorURL:        os.Getenv("CONVEYOR_MIRROR_URL"),
		LocalMirrorDir:   localDir,
		CompilerAction:   os.Getenv("CONVEYOR_COMPILER_ACTION"),
		RelatedBuilds:    os.Getenv("CONVEYOR_RELATED_BUILDS"),
		SigningKey:       cfg.Signing.Key,
		ReportEnabled:    cfg.Report.Enabled,
		ReportBuildGroup: cfg.Report.BuildGroup,
	}
}
