package graph

import (
	"errors"
	"testing"

	"github.com/forgefleet/conveyor/pkg/models"
)

func spec(name, fullHash string, deps ...string) models.Spec {
	return models.Spec{
		Name:      name,
		Version:   "1.0",
		Compiler:  "gcc@9.1",
		Arch:      "linux-x86_64",
		FullHash:  fullHash,
		DependsOn: deps,
	}
}

func TestNewGraph(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	if g.Size() != 0 {
		t.Errorf("expected empty graph, got size %d", g.Size())
	}
}

func TestGraphBuildSimple(t *testing.T) {
	g := New()
	specs := []models.Spec{
		spec("pkga", "aaaaaaa"),
		spec("pkgb", "bbbbbbb"),
		spec("pkgc", "ccccccc"),
	}

	if err := g.Build(specs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
}

func TestGraphBuildWithDependencies(t *testing.T) {
	g := New()
	specs := []models.Spec{
		spec("pkga", "aaaaaaa"),
		spec("pkgb", "bbbbbbb", "pkga/aaaaaaa"),
		spec("pkgc", "ccccccc", "pkga/aaaaaaa", "pkgb/bbbbbbb"),
	}

	if err := g.Build(specs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := g.Dependencies("pkgc/ccccccc")
	if len(deps) != 2 {
		t.Errorf("expected 2 dependencies for pkgc, got %d", len(deps))
	}
}

func TestGraphBuildUnknownDependency(t *testing.T) {
	g := New()
	specs := []models.Spec{
		spec("pkga", "aaaaaaa", "missing/zzzzzzz"),
	}

	if err := g.Build(specs); err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestGraphCycleDetection(t *testing.T) {
	tests := []struct {
		name  string
		specs []models.Spec
	}{
		{
			name: "two node cycle",
			specs: []models.Spec{
				spec("pkga", "aaaaaaa", "pkgb/bbbbbbb"),
				spec("pkgb", "bbbbbbb", "pkga/aaaaaaa"),
			},
		},
		{
			name: "three node cycle",
			specs: []models.Spec{
				spec("pkga", "aaaaaaa", "pkgb/bbbbbbb"),
				spec("pkgb", "bbbbbbb", "pkgc/ccccccc"),
				spec("pkgc", "ccccccc", "pkga/aaaaaaa"),
			},
		},
		{
			name: "self loop",
			specs: []models.Spec{
				spec("pkga", "aaaaaaa", "pkga/aaaaaaa"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			if err := g.Build(tt.specs); !errors.Is(err, ErrCycleDetected) {
				t.Errorf("expected ErrCycleDetected, got %v", err)
			}
		})
	}
}

func TestGraphNoCycle(t *testing.T) {
	// Diamond: d depends on b and c, both depend on a.
	g := New()
	specs := []models.Spec{
		spec("pkga", "aaaaaaa"),
		spec("pkgb", "bbbbbbb", "pkga/aaaaaaa"),
		spec("pkgc", "ccccccc", "pkga/aaaaaaa"),
		spec("pkgd", "ddddddd", "pkgb/bbbbbbb", "pkgc/ccccccc"),
	}

	if err := g.Build(specs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.HasCycle() {
		t.Error("diamond graph should not report a cycle")
	}
}

func TestGraphLabelsSorted(t *testing.T) {
	g := New()
	specs := []models.Spec{
		spec("zlib", "zzzzzzz"),
		spec("autoconf", "aaaaaaa"),
		spec("ncurses", "nnnnnnn"),
	}
	if err := g.Build(specs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	labels := g.Labels()
	want := []string{"autoconf/aaaaaaa", "ncurses/nnnnnnn", "zlib/zzzzzzz"}
	for i, label := range labels {
		if label != want[i] {
			t.Errorf("labels[%d]: expected %s, got %s", i, want[i], label)
		}
	}
}

func TestGraphRewrite(t *testing.T) {
	g := New()
	if err := g.Build([]models.Spec{spec("gcc", "ggggggg")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g.Rewrite("gcc/ggggggg", models.Spec.StripCompiler)

	s, ok := g.Spec("gcc/ggggggg")
	if !ok {
		t.Fatal("spec missing after rewrite")
	}
	if s.Compiler != models.CompilerAny {
		t.Errorf("expected compiler %q, got %q", models.CompilerAny, s.Compiler)
	}
}
