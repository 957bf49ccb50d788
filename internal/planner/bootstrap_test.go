package planner

import (
	"testing"

	"github.com/forgefleet/conveyor/pkg/models"
)

func TestSequencePhaseBarriers(t *testing.T) {
	phase1 := Phase{
		Name: "stage1-compilers",
		Specs: []models.Spec{
			spec("gcc", "g111111"),
		},
	}
	phase2 := Phase{
		Name: "stage2-compilers",
		Specs: []models.Spec{
			spec("llvm", "l111111"),
			spec("cmake", "c111111"),
			spec("llvm-support", "l222222", "cmake/c111111"),
		},
	}
	mainSpecs := []models.Spec{
		spec("zlib", "zzzzzzz"),
		spec("readline", "rrrrrrr", "zlib/zzzzzzz"),
	}

	stages, err := Sequence([]Phase{phase1, phase2}, mainSpecs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	maxIndex := func(phase string) int {
		max := -1
		for _, s := range stages {
			if s.Phase == phase && s.Index > max {
				max = s.Index
			}
		}
		return max
	}
	minIndex := func(phase string) int {
		min := len(stages)
		for _, s := range stages {
			if s.Phase == phase && s.Index < min {
				min = s.Index
			}
		}
		return min
	}

	// Every stage of phase i ends before any stage of phase i+1 begins,
	// and the main graph comes after all bootstrap phases.
	if maxIndex("stage1-compilers") >= minIndex("stage2-compilers") {
		t.Error("phase 1 stages must precede phase 2 stages")
	}
	if maxIndex("stage2-compilers") >= minIndex(MainPhase) {
		t.Error("phase 2 stages must precede main graph stages")
	}

	// Indices are contiguous across the whole sequence.
	for i, s := range stages {
		if s.Index != i {
			t.Errorf("stage %d has index %d", i, s.Index)
		}
	}
}

func TestSequenceCompilerAgnosticStripsBeforePlanning(t *testing.T) {
	phase := Phase{
		Name:             "bootstrap",
		CompilerAgnostic: true,
		Specs: []models.Spec{
			spec("gcc", "g111111"),
		},
	}

	stages, err := Sequence([]Phase{phase}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(stages))
	}
	got := stages[0].Specs[0]
	if got.Compiler != models.CompilerAny {
		t.Errorf("expected stripped compiler, got %q", got.Compiler)
	}
}

func TestSequenceInducedSubgraphDropsOutsideEdges(t *testing.T) {
	// The phase spec depends on something outside the phase subset; the
	// edge is dropped instead of failing as a dangling reference.
	phase := Phase{
		Name: "bootstrap",
		Specs: []models.Spec{
			spec("gcc", "g111111", "zlib/zzzzzzz"),
		},
	}

	stages, err := Sequence([]Phase{phase}, []models.Spec{spec("zlib", "zzzzzzz")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(stages))
	}
	if stages[0].Phase != "bootstrap" || stages[1].Phase != MainPhase {
		t.Errorf("unexpected phase order: %s, %s", stages[0].Phase, stages[1].Phase)
	}
}

func TestSequenceNoPhases(t *testing.T) {
	mainSpecs := []models.Spec{
		spec("zlib", "zzzzzzz"),
		spec("readline", "rrrrrrr", "zlib/zzzzzzz"),
	}

	stages, err := Sequence(nil, mainSpecs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(stages))
	}
	for _, s := range stages {
		if s.Phase != MainPhase {
			t.Errorf("expected phase %s, got %s", MainPhase, s.Phase)
		}
	}
}

func TestSequenceMainGraphDanglingReferenceFails(t *testing.T) {
	mainSpecs := []models.Spec{
		spec("readline", "rrrrrrr", "zlib/zzzzzzz"),
	}

	if _, err := Sequence(nil, mainSpecs); err == nil {
		t.Fatal("expected error for dangling main-graph dependency")
	}
}
