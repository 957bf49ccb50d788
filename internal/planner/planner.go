// Package planner computes the ordered build stages for a spec graph and
// sequences bootstrap phases ahead of the main release graph.
package planner

import (
	"fmt"

	"github.com/forgefleet/conveyor/internal/graph"
	"github.com/forgefleet/conveyor/pkg/models"
)

// Stage is one rung of the pipeline: a set of specs whose dependencies all
// live in earlier stages, so every job in the stage can run in parallel.
type Stage struct {
	// Index is the global stage position, counted across all phases.
	Index int
	// Phase names the phase the stage belongs to ("specs" for the main
	// release graph).
	Phase string
	// Specs are the stage members, sorted by label for determinism.
	Specs []models.Spec
}

// Plan partitions the graph into ordered stages using longest-path
// layering: a spec's stage is one past the maximum stage of its direct
// dependencies, and specs with no dependencies land in stage 0. This
// places every spec in the earliest stage its dependencies allow, which
// maximizes per-stage parallelism.
//
// A cycle or a dependency reference missing from the graph is a fatal
// planning error.
func Plan(g *graph.Graph) ([]Stage, error) {
	if g.HasCycle() {
		return nil, fmt.Errorf("planning aborted: %w", graph.ErrCycleDetected)
	}

	levels := make(map[string]int)

	var visit func(label string) (int, error)
	visit = func(label string) (int, error) {
		if level, done := levels[label]; done {
			return level, nil
		}
		if _, ok := g.Spec(label); !ok {
			return 0, fmt.Errorf("dependency %s is not in the graph", label)
		}

		level := 0
		for _, depLabel := range g.Dependencies(label) {
			depLevel, err := visit(depLabel)
			if err != nil {
				return 0, err
			}
			if depLevel+1 > level {
				level = depLevel + 1
			}
		}

		levels[label] = level
		return level, nil
	}

	maxLevel := -1
	for _, label := range g.Labels() {
		level, err := visit(label)
		if err != nil {
			return nil, err
		}
		if level > maxLevel {
			maxLevel = level
		}
	}

	stages := make([]Stage, maxLevel+1)
	for i := range stages {
		stages[i].Index = i
	}
	// Labels() is sorted, so stage membership order is deterministic.
	for _, label := range g.Labels() {
		spec, _ := g.Spec(label)
		stages[levels[label]].Specs = append(stages[levels[label]].Specs, spec)
	}

	return stages, nil
}
