// Package pipeline turns a staged release set into the CI pipeline
// descriptor consumed by the external CI system.
package pipeline

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forgefleet/conveyor/internal/config"
	"github.com/forgefleet/conveyor/internal/planner"
	"github.com/forgefleet/conveyor/internal/runner"
	"github.com/forgefleet/conveyor/pkg/models"
)

// RebuildIndexStage is the trailing stage holding the mirror index
// refresh job.
const RebuildIndexStage = "stage-rebuild-index"

// RebuildIndexJob is the name of the mirror index refresh job.
const RebuildIndexJob = "rebuild-index"

// Job is one job entry in the generated descriptor.
type Job struct {
	Stage        string            `yaml:"stage"`
	Tags         []string          `yaml:"tags,omitempty"`
	Image        *models.Image     `yaml:"image,omitempty"`
	Script       []string          `yaml:"script"`
	Variables    map[string]string `yaml:"variables,omitempty"`
	Dependencies []string          `yaml:"dependencies,omitempty"`
	Artifacts    *Artifacts        `yaml:"artifacts,omitempty"`
}

// Artifacts declares the job paths the CI system keeps.
type Artifacts struct {
	Paths []string `yaml:"paths"`
	When  string   `yaml:"when,omitempty"`
}

// Descriptor is the full generated pipeline. Jobs are inlined at the top
// level next to the stage list, the way the CI system expects them.
type Descriptor struct {
	Stages []string        `yaml:"stages"`
	Jobs   map[string]*Job `yaml:",inline"`

	// stages in planner form, kept for the summary printer.
	planned []planner.Stage
}

// Encode renders the descriptor as YAML. Map keys are sorted by the
// encoder, so the same input always produces identical bytes.
func (d *Descriptor) Encode() ([]byte, error) {
	raw, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode pipeline: %w", err)
	}
	return raw, nil
}

// JobNames returns the generated build job names (the index refresh job
// excluded), for build group registration.
func (d *Descriptor) JobNames() []string {
	var names []string
	for name := range d.Jobs {
		if name != RebuildIndexJob {
			names = append(names, name)
		}
	}
	return names
}

// Generate stages the phases and main graph, assigns every spec to a
// runner, and assembles the descriptor. An unassignable spec aborts
// generation: silently dropping its job would leave the artifact
// unbuilt without any visible failure.
func Generate(cfg *config.Config, phases []planner.Phase, mainSpecs []models.Spec) (*Descriptor, error) {
	stages, err := planner.Sequence(phases, mainSpecs)
	if err != nil {
		return nil, err
	}

	multiPhase := len(phases) > 0

	// Each phase's staged specs are encoded together as that phase's
	// root spec: a job decodes the list and finds itself by package name.
	specsByPhase := make(map[string][]models.Spec)
	for _, stage := range stages {
		specsByPhase[stage.Phase] = append(specsByPhase[stage.Phase], stage.Specs...)
	}
	rootSpecByPhase := make(map[string]string, len(specsByPhase))
	for phase, specs := range specsByPhase {
		encoded, err := models.EncodeSpecs(specs)
		if err != nil {
			return nil, fmt.Errorf("phase %s: %w", phase, err)
		}
		rootSpecByPhase[phase] = encoded
	}

	// First pass: name every job so dependency lists can reference jobs
	// in earlier stages.
	jobNameByLabel := make(map[string]string)
	for _, stage := range stages {
		for _, spec := range stage.Specs {
			jobNameByLabel[spec.Label()] = jobName(stage.Phase, spec, cfg.Report.BuildGroup)
		}
	}

	d := &Descriptor{
		Jobs:    make(map[string]*Job),
		planned: stages,
	}

	var artifacts *Artifacts
	if len(cfg.ArtifactPaths) > 0 {
		artifacts = &Artifacts{Paths: cfg.ArtifactPaths, When: "always"}
	}

	for _, stage := range stages {
		stageName := fmt.Sprintf("stage-%d", stage.Index)
		d.Stages = append(d.Stages, stageName)

		for _, spec := range stage.Specs {
			attrs, err := runner.Assign(spec, cfg.Mappings)
			if err != nil {
				return nil, fmt.Errorf("stage %d: %w", stage.Index, err)
			}

			// Rule variables seed the environment; the job-specific
			// variables go on top, so a mapping rule can never override
			// the mirror, root spec, or any other value the rebuild step
			// depends on.
			vars := make(map[string]string, len(attrs.Variables))
			for k, v := range attrs.Variables {
				vars[k] = v
			}
			for k, v := range jobVariables(cfg, stage, spec, rootSpecByPhase[stage.Phase], multiPhase) {
				vars[k] = v
			}

			job := &Job{
				Stage:     stageName,
				Tags:      attrs.Tags,
				Script:    []string{"conveyor rebuild"},
				Variables: vars,
				Artifacts: artifacts,
			}
			if attrs.Image.Name != "" {
				img := attrs.Image
				job.Image = &img
			}
			for _, depLabel := range spec.DependsOn {
				depJob, ok := jobNameByLabel[depLabel]
				if !ok {
					return nil, fmt.Errorf("stage %d: dependency %s of %s has no job", stage.Index, depLabel, spec.Label())
				}
				job.Dependencies = append(job.Dependencies, depJob)
			}

			d.Jobs[jobNameByLabel[spec.Label()]] = job
		}
	}

	d.Stages = append(d.Stages, RebuildIndexStage)
	d.Jobs[RebuildIndexJob] = rebuildIndexJob(cfg)

	return d, nil
}

// jobName builds the descriptor job name for a spec. The compiler is
// omitted for compiler-agnostic specs, the phase for the main graph, and
// the build group when reporting is off.
func jobName(phase string, spec models.Spec, buildGroup string) string {
	var parts []string
	if phase != planner.MainPhase {
		parts = append(parts, "("+phase+")")
	}
	parts = append(parts, spec.Name, spec.Version)
	if spec.Compiler != "" && spec.Compiler != models.CompilerAny {
		parts = append(parts, spec.Compiler)
	}
	parts = append(parts, spec.Arch)
	if buildGroup != "" {
		parts = append(parts, buildGroup)
	}
	return strings.Join(parts, " ")
}

// jobVariables assembles the job's environment.
func jobVariables(cfg *config.Config, stage planner.Stage, spec models.Spec, rootSpec string, multiPhase bool) map[string]string {
	vars := map[string]string{
		"CONVEYOR_MIRROR_URL":        cfg.Mirrors.Remote,
		"CONVEYOR_LOCAL_MIRROR_DIR":  cfg.Mirrors.Local,
		"CONVEYOR_ROOT_SPEC":         rootSpec,
		"CONVEYOR_JOB_SPEC_PKG_NAME": spec.Name,
		"CONVEYOR_COMPILER_ACTION":   compilerAction(stage, spec, multiPhase),
		"CONVEYOR_RELATED_BUILDS":    strings.Join(spec.DependsOn, ";"),
	}
	if cfg.Report.Enabled {
		vars["CONVEYOR_REPORT_URL"] = cfg.Report.URL
		vars["CONVEYOR_REPORT_PROJECT"] = cfg.Report.Project
		vars["CONVEYOR_REPORT_SITE"] = cfg.Report.Site
		vars["CONVEYOR_REPORT_BUILD_GROUP"] = cfg.Report.BuildGroup
	}
	return vars
}

// compilerAction decides how the build step obtains its compiler:
// compiler-agnostic phases take whatever the runner has, main-graph jobs
// in a multi-phase pipeline install bootstrap-built compilers from the
// mirror, and single-phase pipelines use the compilers already on the
// runners.
func compilerAction(stage planner.Stage, spec models.Spec, multiPhase bool) string {
	if spec.Compiler == models.CompilerAny {
		return models.CompilerActionFindAny
	}
	if multiPhase && stage.Phase == planner.MainPhase {
		return models.CompilerActionInstallMissing
	}
	return models.CompilerActionNone
}

// rebuildIndexJob refreshes the mirror index after every build stage has
// published its entries. It reuses the first mapping's runner attributes;
// the index refresh has no spec of its own to match.
func rebuildIndexJob(cfg *config.Config) *Job {
	attrs := cfg.Mappings[0].RunnerAttributes.Clone()
	job := &Job{
		Stage:  RebuildIndexStage,
		Tags:   attrs.Tags,
		Script: []string{"conveyor-build --update-index --mirror " + cfg.Mirrors.Remote},
	}
	if attrs.Image.Name != "" {
		img := attrs.Image
		job.Image = &img
	}
	return job
}
