package models

import "testing"

func TestJobStateValid(t *testing.T) {
	valid := []JobState{
		JobStateStart, JobStateResolved, JobStateMirrorChecked,
		JobStateUpToDate, JobStateNeedsBuild, JobStatePublished,
		JobStateReported, JobStateDone, JobStateFailed,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if JobState("bogus").Valid() {
		t.Error("expected bogus state to be invalid")
	}
}

func TestCanTransitionHappyPaths(t *testing.T) {
	// The two legal paths through the lifecycle.
	rebuildPath := []JobState{
		JobStateStart, JobStateResolved, JobStateMirrorChecked,
		JobStateNeedsBuild, JobStatePublished, JobStateReported, JobStateDone,
	}
	cachedPath := []JobState{
		JobStateStart, JobStateResolved, JobStateMirrorChecked,
		JobStateUpToDate, JobStateReported, JobStateDone,
	}

	for _, path := range [][]JobState{rebuildPath, cachedPath} {
		for i := 0; i < len(path)-1; i++ {
			if !CanTransition(path[i], path[i+1]) {
				t.Errorf("expected %s -> %s to be legal", path[i], path[i+1])
			}
		}
	}
}

func TestCanTransitionToFailed(t *testing.T) {
	for _, s := range []JobState{
		JobStateStart, JobStateResolved, JobStateMirrorChecked,
		JobStateUpToDate, JobStateNeedsBuild, JobStatePublished,
		JobStateReported,
	} {
		if !CanTransition(s, JobStateFailed) {
			t.Errorf("expected %s -> failed to be legal", s)
		}
	}

	// Terminal states stay terminal.
	if CanTransition(JobStateDone, JobStateFailed) {
		t.Error("done must not transition to failed")
	}
	if CanTransition(JobStateFailed, JobStateFailed) {
		t.Error("failed must not transition again")
	}
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	illegal := [][2]JobState{
		{JobStateStart, JobStateMirrorChecked},
		{JobStateResolved, JobStateUpToDate},
		{JobStateMirrorChecked, JobStatePublished},
		{JobStateNeedsBuild, JobStateReported},
		{JobStateUpToDate, JobStateDone},
		{JobStateDone, JobStateStart},
	}
	for _, pair := range illegal {
		if CanTransition(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be illegal", pair[0], pair[1])
		}
	}
}
