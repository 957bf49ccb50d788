package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/forgefleet/conveyor/pkg/models"
)

// ErrJobNotFound is returned when a run ID has no archived job.
var ErrJobNotFound = errors.New("job not found")

// ArchivedJob is a stored job run.
type ArchivedJob struct {
	RunID      string
	JobName    string
	SpecLabel  string
	FullHash   string
	State      models.JobState
	ReportID   string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Transition is one recorded state change of a job run.
type Transition struct {
	From models.JobState
	To   models.JobState
	At   time.Time
}

// StartJob records a new job run in its initial state.
func (db *DB) StartJob(runID, jobName string, spec models.Spec, startedAt time.Time) error {
	_, err := db.Exec(`
		INSERT INTO jobs (run_id, job_name, spec_label, full_hash, state, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, jobName, spec.Label(), spec.FullHash, string(models.JobStateStart), formatTime(startedAt))
	if err != nil {
		return fmt.Errorf("start job %s: %w", runID, err)
	}
	return nil
}

// RecordTransition archives one state change and moves the job to the new
// state. Terminal states also stamp finished_at.
func (db *DB) RecordTransition(runID string, from, to models.JobState, at time.Time) error {
	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO transitions (run_id, from_state, to_state, at)
			VALUES (?, ?, ?, ?)
		`, runID, string(from), string(to), formatTime(at)); err != nil {
			return err
		}

		if to.Terminal() {
			_, err := tx.Exec(`UPDATE jobs SET state = ?, finished_at = ? WHERE run_id = ?`,
				string(to), formatTime(at), runID)
			return err
		}
		_, err := tx.Exec(`UPDATE jobs SET state = ? WHERE run_id = ?`, string(to), runID)
		return err
	})
	if err != nil {
		return fmt.Errorf("record transition %s -> %s for %s: %w", from, to, runID, err)
	}
	return nil
}

// SetReportID stores the build-report identifier captured for a job run.
func (db *DB) SetReportID(runID, reportID string) error {
	if _, err := db.Exec(`UPDATE jobs SET report_id = ? WHERE run_id = ?`, reportID, runID); err != nil {
		return fmt.Errorf("set report id for %s: %w", runID, err)
	}
	return nil
}

// SetError stores the failure message for a job run.
func (db *DB) SetError(runID, message string) error {
	if _, err := db.Exec(`UPDATE jobs SET error = ? WHERE run_id = ?`, message, runID); err != nil {
		return fmt.Errorf("set error for %s: %w", runID, err)
	}
	return nil
}

// GetJob returns the archived job for the run ID.
func (db *DB) GetJob(runID string) (*ArchivedJob, error) {
	row := db.QueryRow(`
		SELECT run_id, job_name, spec_label, full_hash, state, report_id, error, started_at, finished_at
		FROM jobs WHERE run_id = ?
	`, runID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", runID, err)
	}
	return job, nil
}

// Transitions returns a job run's state changes in the order they
// happened.
func (db *DB) Transitions(runID string) ([]Transition, error) {
	rows, err := db.Query(`
		SELECT from_state, to_state, at FROM transitions
		WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get transitions for %s: %w", runID, err)
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var from, to, at string
		if err := rows.Scan(&from, &to, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t, err := parseTime(at)
		if err != nil {
			return nil, fmt.Errorf("parse transition time: %w", err)
		}
		transitions = append(transitions, Transition{
			From: models.JobState(from),
			To:   models.JobState(to),
			At:   t,
		})
	}
	return transitions, rows.Err()
}

// RecentJobs returns up to limit job runs, newest first.
func (db *DB) RecentJobs(limit int) ([]*ArchivedJob, error) {
	rows, err := db.Query(`
		SELECT run_id, job_name, spec_label, full_hash, state, report_id, error, started_at, finished_at
		FROM jobs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*ArchivedJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*ArchivedJob, error) {
	var job ArchivedJob
	var state, startedAt string
	var reportID, errMsg, finishedAt sql.NullString

	if err := s.Scan(&job.RunID, &job.JobName, &job.SpecLabel, &job.FullHash,
		&state, &reportID, &errMsg, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	job.State = models.JobState(state)
	job.ReportID = reportID.String
	job.Error = errMsg.String

	t, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	job.StartedAt = t
	job.FinishedAt = parseNullableTime(finishedAt)

	return &job, nil
}
