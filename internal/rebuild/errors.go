package rebuild

import "fmt"

// ConfigError reports a missing or invalid job configuration field. It is
// returned before any lifecycle step runs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("job config: %s: %s", e.Field, e.Reason)
}

// MirrorError wraps a mirror operation failure. Mirror failures are fatal
// for the current job; no retry happens in the orchestrator.
type MirrorError struct {
	Op  string
	Err error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("mirror %s: %v", e.Op, e.Err)
}

func (e *MirrorError) Unwrap() error {
	return e.Err
}

// MissingLinkageError indicates a published entry has no linkage file.
// The mirror state is corrupt: the entry cannot be related to a build
// report.
type MissingLinkageError struct {
	FullHash string
}

func (e *MissingLinkageError) Error() string {
	return fmt.Sprintf("no linkage file for published entry %s", e.FullHash)
}

// MissingReportIDError indicates a linkage file holds the "none" sentinel
// even though reporting is enabled for this pipeline.
type MissingReportIDError struct {
	FullHash string
}

func (e *MissingReportIDError) Error() string {
	return fmt.Sprintf("linkage file for %s has no report id", e.FullHash)
}

// StepError names the lifecycle step a job failed in.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
