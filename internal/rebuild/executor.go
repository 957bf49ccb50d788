package rebuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgefleet/conveyor/internal/exec"
	"github.com/forgefleet/conveyor/pkg/models"
)

// BuildResult is what a build produced: the entry directory ready for
// signing and upload, and the report identifier the build registered
// (ReportIDNone when reporting is off).
type BuildResult struct {
	EntryDir string
	ReportID string
}

// BuildExecutor performs the actual package build.
type BuildExecutor interface {
	Build(ctx context.Context, spec models.Spec, cfg *JobConfig) (*BuildResult, error)
}

// ToolExecutor runs the external conveyor-build tool. The tool resolves
// build dependencies from the local mirror, compiles the package, and
// leaves a mirror entry under <workdir>/build/<fullhash>/. When it
// registers the build with the report service it writes the assigned id
// to <workdir>/build/<fullhash>.reportid.
type ToolExecutor struct {
	runner exec.CommandRunner
	logger *DebugLogger
}

// NewToolExecutor creates an executor shelling out through the runner.
func NewToolExecutor(runner exec.CommandRunner, logger *DebugLogger) *ToolExecutor {
	return &ToolExecutor{runner: runner, logger: logger}
}

// Build invokes conveyor-build and collects its outputs.
func (e *ToolExecutor) Build(ctx context.Context, spec models.Spec, cfg *JobConfig) (*BuildResult, error) {
	args := []string{
		"--package", spec.Name,
		"--full-hash", spec.FullHash,
		"--compiler-action", cfg.CompilerAction,
		"--local-mirror", cfg.LocalMirrorDir,
		"--output-dir", filepath.Join(cfg.WorkDir, "build"),
	}
	env := []string{
		"CONVEYOR_ROOT_SPEC=" + cfg.EncodedRootSpec,
		"CONVEYOR_JOB_NAME=" + cfg.JobName,
	}
	if cfg.ReportEnabled {
		env = append(env, "CONVEYOR_REPORT_BUILD_GROUP="+cfg.ReportBuildGroup)
	}

	e.logger.Log("[executor] building %s (compiler action %s)", spec.Label(), cfg.CompilerAction)
	out, err := e.runner.RunEnv(ctx, cfg.WorkDir, env, "conveyor-build", args...)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w: %s", spec.Label(), err, out)
	}

	entryDir := filepath.Join(cfg.WorkDir, "build", spec.FullHash)
	if _, err := os.Stat(entryDir); err != nil {
		return nil, fmt.Errorf("build %s: no entry produced: %w", spec.Label(), err)
	}

	result := &BuildResult{EntryDir: entryDir, ReportID: models.ReportIDNone}
	raw, err := os.ReadFile(entryDir + ".reportid")
	if err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			result.ReportID = id
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("build %s: read report id: %w", spec.Label(), err)
	}

	return result, nil
}

// Verify ToolExecutor implements BuildExecutor at compile time.
var _ BuildExecutor = (*ToolExecutor)(nil)
