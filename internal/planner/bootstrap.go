package planner

import (
	"fmt"

	"github.com/forgefleet/conveyor/internal/graph"
	"github.com/forgefleet/conveyor/pkg/models"
)

// MainPhase is the reserved phase name for the main release graph.
const MainPhase = "specs"

// Phase is a barrier group of specs that must fully complete before the
// next phase or the main graph begins.
type Phase struct {
	// Name identifies the phase in config and job names.
	Name string
	// Specs are the phase members, drawn from the input definitions.
	Specs []models.Spec
	// CompilerAgnostic strips the compiler attribute from the phase's
	// specs before planning and runner matching, letting the build step
	// use whatever compiler the chosen runner has.
	CompilerAgnostic bool
}

// Sequence plans each bootstrap phase in declared order, then the main
// release graph, offsetting every phase's stage indices past the maximum
// index used by all prior phases. The offset turns phase boundaries into
// hard pipeline barriers: no job of phase i+1 shares a stage with any job
// of phase i, regardless of the parallelism inside each phase.
func Sequence(phases []Phase, mainSpecs []models.Spec) ([]Stage, error) {
	var all []Stage
	offset := 0

	for _, phase := range phases {
		g, err := buildInduced(phase.Specs)
		if err != nil {
			return nil, fmt.Errorf("phase %s: %w", phase.Name, err)
		}
		if phase.CompilerAgnostic {
			for _, label := range g.Labels() {
				g.Rewrite(label, models.Spec.StripCompiler)
			}
		}

		stages, err := Plan(g)
		if err != nil {
			return nil, fmt.Errorf("phase %s: %w", phase.Name, err)
		}

		for _, stage := range stages {
			stage.Index += offset
			stage.Phase = phase.Name
			all = append(all, stage)
		}
		offset += len(stages)
	}

	mainGraph := graph.New()
	if err := mainGraph.Build(mainSpecs); err != nil {
		return nil, fmt.Errorf("phase %s: %w", MainPhase, err)
	}
	mainStages, err := Plan(mainGraph)
	if err != nil {
		return nil, fmt.Errorf("phase %s: %w", MainPhase, err)
	}
	for _, stage := range mainStages {
		stage.Index += offset
		stage.Phase = MainPhase
		all = append(all, stage)
	}

	return all, nil
}

// buildInduced builds the graph induced by the given specs: dependency
// references leaving the subset are dropped rather than treated as
// dangling. Bootstrap phase subsets routinely depend on packages that are
// only built in the main graph on a previous pipeline run.
func buildInduced(specs []models.Spec) (*graph.Graph, error) {
	present := make(map[string]bool, len(specs))
	for _, s := range specs {
		present[s.Label()] = true
	}

	induced := make([]models.Spec, len(specs))
	for i, s := range specs {
		copied := s
		copied.DependsOn = nil
		for _, dep := range s.DependsOn {
			if present[dep] {
				copied.DependsOn = append(copied.DependsOn, dep)
			}
		}
		induced[i] = copied
	}

	g := graph.New()
	if err := g.Build(induced); err != nil {
		return nil, err
	}
	return g, nil
}
