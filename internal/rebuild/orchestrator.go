package rebuild

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/forgefleet/conveyor/internal/mirror"
	"github.com/forgefleet/conveyor/internal/state"
	"github.com/forgefleet/conveyor/pkg/models"
)

// Reporter posts build relationship records to the report service.
type Reporter interface {
	RelateBuilds(ctx context.Context, jobID, dependencyID string) error
}

// EntrySigner imports the signing key and signs mirror entries.
type EntrySigner interface {
	ImportKey(ctx context.Context, encodedKey string) error
	SignEntry(ctx context.Context, entryDir string) error
}

// Deps are the collaborators a rebuild job uses. Reporter may be nil when
// reporting is disabled, Signer when no signing key is configured, and
// Archive when no state database is available.
type Deps struct {
	Remote   mirror.Mirror
	Local    mirror.Mirror
	Executor BuildExecutor
	Signer   EntrySigner
	Reporter Reporter
	Archive  *state.DB
	Logger   *DebugLogger
}

// Orchestrator drives one rebuild job through its lifecycle.
type Orchestrator struct {
	cfg  *JobConfig
	deps Deps
	job  models.JobRecord
}

// New validates the job config and prepares an orchestrator in the start
// state.
func New(cfg *JobConfig, deps Deps) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Remote == nil {
		return nil, &ConfigError{Field: "remote mirror", Reason: "required"}
	}
	if deps.Local == nil {
		return nil, &ConfigError{Field: "local mirror", Reason: "required"}
	}
	if deps.Executor == nil {
		return nil, &ConfigError{Field: "build executor", Reason: "required"}
	}
	if deps.Logger == nil {
		deps.Logger = NopLogger()
	}

	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		job: models.JobRecord{
			RunID:     uuid.NewString(),
			JobName:   cfg.JobName,
			State:     models.JobStateStart,
			ReportID:  models.ReportIDNone,
			StartedAt: time.Now(),
		},
	}, nil
}

// Job returns a snapshot of the job record.
func (o *Orchestrator) Job() models.JobRecord {
	return o.job
}

// Run executes the job lifecycle. The returned error names the failing
// step; nil means the job reached the done state.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.resolve(); err != nil {
		return o.fail("resolve", err)
	}

	exists, err := o.checkMirror(ctx)
	if err != nil {
		return o.fail("mirror-check", err)
	}

	if exists {
		if err := o.downloadExisting(ctx); err != nil {
			return o.fail("download", err)
		}
	} else {
		if err := o.buildAndPublish(ctx); err != nil {
			return o.fail("build", err)
		}
	}

	if err := o.verifyReport(ctx); err != nil {
		return o.fail("report-verify", err)
	}

	o.relateDependencies(ctx)

	if err := o.transition(models.JobStateDone); err != nil {
		return o.fail("finish", err)
	}
	o.deps.Logger.Log("[job %s] done", o.job.RunID)
	return nil
}

// resolve reconstructs the job's own spec and its direct dependency specs
// from the encoded root spec list.
func (o *Orchestrator) resolve() error {
	specs, err := models.DecodeSpecs(o.cfg.EncodedRootSpec)
	if err != nil {
		return err
	}

	byLabel := make(map[string]models.Spec, len(specs))
	found := false
	for _, s := range specs {
		byLabel[s.Label()] = s
		if !found && s.Name == o.cfg.PackageName {
			o.job.Spec = s
			found = true
		}
	}
	if !found {
		return fmt.Errorf("package %s not present in root spec", o.cfg.PackageName)
	}

	for _, label := range o.cfg.RelatedLabels() {
		dep, ok := byLabel[label]
		if !ok {
			return fmt.Errorf("related build %s not present in root spec", label)
		}
		o.job.Dependencies = append(o.job.Dependencies, dep)
	}

	if o.deps.Archive != nil {
		if err := o.deps.Archive.StartJob(o.job.RunID, o.job.JobName, o.job.Spec, o.job.StartedAt); err != nil {
			o.deps.Logger.Log("[job %s] archive unavailable: %v", o.job.RunID, err)
			o.deps.Archive = nil
		}
	}

	o.deps.Logger.Log("[job %s] resolved %s with %d dependencies",
		o.job.RunID, o.job.Spec.Label(), len(o.job.Dependencies))
	return o.transition(models.JobStateResolved)
}

// checkMirror asks the remote mirror whether the artifact already exists.
func (o *Orchestrator) checkMirror(ctx context.Context) (bool, error) {
	exists, err := o.deps.Remote.Exists(ctx, o.job.Spec.FullHash)
	if err != nil {
		return false, &MirrorError{Op: "check", Err: err}
	}

	o.deps.Logger.Log("[job %s] mirror %s has %s: %v",
		o.job.RunID, o.deps.Remote.URL(), o.job.Spec.Label(), exists)
	return exists, o.transition(models.JobStateMirrorChecked)
}

// downloadExisting pulls the published entry into the local mirror. The
// build executor is never invoked on this path, which makes job reruns
// idempotent.
func (o *Orchestrator) downloadExisting(ctx context.Context) error {
	if err := o.transition(models.JobStateUpToDate); err != nil {
		return err
	}

	if err := o.deps.Remote.Download(ctx, o.job.Spec.FullHash, o.cfg.LocalMirrorDir); err != nil {
		return &MirrorError{Op: "download", Err: err}
	}

	o.deps.Logger.Log("[job %s] artifact up to date, downloaded to %s",
		o.job.RunID, o.cfg.LocalMirrorDir)
	return nil
}

// buildAndPublish builds the package, signs the entry, and publishes it
// to the local and remote mirrors.
func (o *Orchestrator) buildAndPublish(ctx context.Context) error {
	if err := o.transition(models.JobStateNeedsBuild); err != nil {
		return err
	}

	if o.cfg.SigningKey != "" && o.deps.Signer != nil {
		if err := o.deps.Signer.ImportKey(ctx, o.cfg.SigningKey); err != nil {
			return err
		}
	}

	result, err := o.deps.Executor.Build(ctx, o.job.Spec, o.cfg)
	if err != nil {
		return err
	}
	o.job.ReportID = result.ReportID

	if o.cfg.SigningKey != "" && o.deps.Signer != nil {
		if err := o.deps.Signer.SignEntry(ctx, result.EntryDir); err != nil {
			return err
		}
	}

	fullHash := o.job.Spec.FullHash
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range []mirror.Mirror{o.deps.Local, o.deps.Remote} {
		m := m
		g.Go(func() error {
			if err := m.Upload(gctx, result.EntryDir, fullHash); err != nil {
				return err
			}
			return m.WriteLinkage(gctx, fullHash, result.ReportID)
		})
	}
	if err := g.Wait(); err != nil {
		return &MirrorError{Op: "publish", Err: err}
	}

	o.deps.Logger.Log("[job %s] published %s (report id %s)",
		o.job.RunID, o.job.Spec.Label(), result.ReportID)
	return o.transition(models.JobStatePublished)
}

// verifyReport reads back the linkage file for the entry the job now
// vouches for and checks it carries a usable report id.
func (o *Orchestrator) verifyReport(ctx context.Context) error {
	id, err := o.deps.Remote.ReadLinkage(ctx, o.job.Spec.FullHash)
	if errors.Is(err, mirror.ErrLinkageNotFound) {
		return &MissingLinkageError{FullHash: o.job.Spec.FullHash}
	}
	if err != nil {
		return &MirrorError{Op: "read linkage", Err: err}
	}

	if o.cfg.ReportEnabled && id == models.ReportIDNone {
		return &MissingReportIDError{FullHash: o.job.Spec.FullHash}
	}

	o.job.ReportID = id
	if o.deps.Archive != nil {
		if err := o.deps.Archive.SetReportID(o.job.RunID, id); err != nil {
			o.deps.Logger.Log("[job %s] archive report id: %v", o.job.RunID, err)
		}
	}
	return o.transition(models.JobStateReported)
}

// relateDependencies posts one "depends on" record per direct dependency.
// Failures here never fail the job: a missing record only degrades the
// report dashboard.
func (o *Orchestrator) relateDependencies(ctx context.Context) {
	if !o.cfg.ReportEnabled || o.deps.Reporter == nil {
		return
	}

	for _, dep := range o.job.Dependencies {
		depID, err := o.deps.Remote.ReadLinkage(ctx, dep.FullHash)
		if err != nil {
			o.deps.Logger.Log("[job %s] warning: no linkage for dependency %s: %v",
				o.job.RunID, dep.Label(), err)
			continue
		}
		if depID == models.ReportIDNone {
			o.deps.Logger.Log("[job %s] warning: dependency %s has no report id",
				o.job.RunID, dep.Label())
			continue
		}
		if err := o.deps.Reporter.RelateBuilds(ctx, o.job.ReportID, depID); err != nil {
			o.deps.Logger.Log("[job %s] warning: relate %s -> %s: %v",
				o.job.RunID, o.job.ReportID, depID, err)
		}
	}
}

// transition moves the job to the next state, archiving the edge.
func (o *Orchestrator) transition(to models.JobState) error {
	from := o.job.State
	if !models.CanTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}

	o.job.State = to
	now := time.Now()
	if to.Terminal() {
		o.job.FinishedAt = &now
	}

	o.deps.Logger.Log("[job %s] %s -> %s", o.job.RunID, from, to)
	if o.deps.Archive != nil {
		if err := o.deps.Archive.RecordTransition(o.job.RunID, from, to, now); err != nil {
			o.deps.Logger.Log("[job %s] archive transition: %v", o.job.RunID, err)
		}
	}
	return nil
}

// fail moves the job to the failed state, archives the error, and wraps
// it with the failing step's name.
func (o *Orchestrator) fail(step string, err error) error {
	o.job.Error = err.Error()
	o.deps.Logger.Log("[job %s] step %s failed: %v", o.job.RunID, step, err)

	if !o.job.State.Terminal() {
		if terr := o.transition(models.JobStateFailed); terr != nil {
			o.deps.Logger.Log("[job %s] record failure: %v", o.job.RunID, terr)
		}
	}
	if o.deps.Archive != nil {
		if aerr := o.deps.Archive.SetError(o.job.RunID, err.Error()); aerr != nil {
			o.deps.Logger.Log("[job %s] archive error: %v", o.job.RunID, aerr)
		}
	}
	return &StepError{Step: step, Err: err}
}
