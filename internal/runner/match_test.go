package runner

import (
	"testing"

	"github.com/forgefleet/conveyor/pkg/models"
)

func TestMatches(t *testing.T) {
	spec := models.Spec{
		Name:     "readline",
		Version:  "7.0",
		Compiler: "gcc@9.1",
		Arch:     "linux-x86_64",
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"readline", true},
		{"readline@7.0", true},
		{"readline@6.0", false},
		{"readline@7.*", true},
		{"read*", true},
		{"ncurses", false},
		{"*", true},
		{"%gcc", true},
		{"%gcc@9.1", true},
		{"%gcc@8.3", false},
		{"%clang", false},
		{"arch=linux-x86_64", true},
		{"arch=linux-*", true},
		{"arch=darwin-*", false},
		{"readline@7.0%gcc@9.1 arch=linux-x86_64", true},
		{"readline%clang", false},
		{"* arch=linux-x86_64", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Matches(spec, tt.expr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestMatchesEmptyConstraint(t *testing.T) {
	if _, err := Matches(models.Spec{Name: "zlib"}, "   "); err == nil {
		t.Error("expected error for empty constraint")
	}
}

func TestMatchesCompilerAgnosticSpec(t *testing.T) {
	stripped := models.Spec{
		Name:     "gcc",
		Version:  "9.1",
		Compiler: models.CompilerAny,
		Arch:     "linux-x86_64",
	}

	// A concrete compiler constraint never matches a stripped spec.
	if got, _ := Matches(stripped, "%gcc"); got {
		t.Error("concrete compiler constraint matched a stripped spec")
	}
	// A wildcard constraint does.
	if got, _ := Matches(stripped, "%*"); !got {
		t.Error("wildcard compiler constraint should match a stripped spec")
	}
	if got, _ := Matches(stripped, "gcc@9.1"); !got {
		t.Error("compiler-free constraint should match a stripped spec")
	}
}
