package models

import "time"

// ReportIDNone is the sentinel stored in a linkage file when no report
// identifier was ever assigned. Reading it back at the Reported step is a
// fatal state-corruption error.
const ReportIDNone = "NONE"

// JobState represents the lifecycle state of one rebuild job.
type JobState string

const (
	// JobStateStart is the initial state before the spec is resolved.
	JobStateStart JobState = "start"
	// JobStateResolved indicates the job's own spec and its dependency
	// specs were reconstructed from the job descriptor.
	JobStateResolved JobState = "resolved"
	// JobStateMirrorChecked indicates the mirror was queried for an
	// artifact matching the spec's full hash.
	JobStateMirrorChecked JobState = "mirror_checked"
	// JobStateUpToDate indicates a matching artifact existed and was
	// downloaded; no build is performed.
	JobStateUpToDate JobState = "up_to_date"
	// JobStateNeedsBuild indicates no matching artifact existed.
	JobStateNeedsBuild JobState = "needs_build"
	// JobStatePublished indicates the freshly built entry was signed and
	// uploaded to the mirror(s).
	JobStatePublished JobState = "published"
	// JobStateReported indicates the linkage file and report identifier
	// were verified.
	JobStateReported JobState = "reported"
	// JobStateDone is the terminal success state.
	JobStateDone JobState = "done"
	// JobStateFailed is the terminal failure state, reachable from any
	// other state.
	JobStateFailed JobState = "failed"
)

// Valid returns true if the state is a known value.
func (s JobState) Valid() bool {
	switch s {
	case JobStateStart, JobStateResolved, JobStateMirrorChecked,
		JobStateUpToDate, JobStateNeedsBuild, JobStatePublished,
		JobStateReported, JobStateDone, JobStateFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for states with no outgoing transitions.
func (s JobState) Terminal() bool {
	return s == JobStateDone || s == JobStateFailed
}

// jobTransitions enumerates the legal forward edges of the lifecycle.
// Failed is reachable from every non-terminal state and is handled in
// CanTransition rather than listed per state.
var jobTransitions = map[JobState][]JobState{
	JobStateStart:         {JobStateResolved},
	JobStateResolved:      {JobStateMirrorChecked},
	JobStateMirrorChecked: {JobStateUpToDate, JobStateNeedsBuild},
	JobStateUpToDate:      {JobStateReported},
	JobStateNeedsBuild:    {JobStatePublished},
	JobStatePublished:     {JobStateReported},
	JobStateReported:      {JobStateDone},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to JobState) bool {
	if to == JobStateFailed {
		return !from.Terminal()
	}
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// JobRecord is the runtime state for one spec's build attempt.
type JobRecord struct {
	// RunID uniquely identifies this attempt.
	RunID string `json:"run_id"`
	// JobName is the job's name in the generated pipeline.
	JobName string `json:"job_name"`
	// Spec is the spec this job builds.
	Spec Spec `json:"spec"`
	// State is the current lifecycle state.
	State JobState `json:"state"`
	// ReportID is the build-report identifier, or ReportIDNone.
	ReportID string `json:"report_id"`
	// Dependencies are the direct dependency specs, kept for
	// relationship reporting.
	Dependencies []Spec `json:"dependencies,omitempty"`
	// StartedAt is when the attempt began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the attempt reached a terminal state.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// Error holds the failure message when State is failed.
	Error string `json:"error,omitempty"`
}
