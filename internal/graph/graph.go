// Package graph provides the spec dependency graph consumed by the stage
// planner.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/forgefleet/conveyor/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the spec graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// Graph represents a directed acyclic graph of package build specs.
// Specs are nodes, and edges represent "depends on" relationships.
// The edge set is fixed once Build returns; the graph is read-only input
// to planning.
type Graph struct {
	// nodes maps spec label to the spec itself.
	nodes map[string]models.Spec
	// edges maps spec label to the labels of specs it depends on.
	edges map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]models.Spec),
		edges:    make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *Graph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from a slice of specs, wiring edges from each
// spec's DependsOn labels. Returns an error if a cycle is detected or a
// dependency references a spec absent from the input.
func (g *Graph) Build(specs []models.Spec) error {
	g.debugLog("[graph.Build] building graph from %d specs", len(specs))

	// First pass: register all specs as nodes.
	for _, spec := range specs {
		label := spec.Label()
		g.debugLog("[graph.Build] adding spec: label=%s depends_on=%v", label, spec.DependsOn)
		g.nodes[label] = spec
		g.edges[label] = nil
	}

	// Second pass: build edges from DependsOn fields.
	for _, spec := range specs {
		label := spec.Label()
		for _, depLabel := range spec.DependsOn {
			if _, exists := g.nodes[depLabel]; !exists {
				return fmt.Errorf("spec %s depends on unknown spec %s", label, depLabel)
			}
			g.edges[label] = append(g.edges[label], depLabel)
		}
	}

	if g.hasCycle() {
		return ErrCycleDetected
	}

	g.debugLog("[graph.Build] graph built successfully with %d nodes", len(g.nodes))
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *Graph) HasCycle() bool {
	return g.hasCycle()
}

func (g *Graph) hasCycle() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int)
	for label := range g.nodes {
		colors[label] = 0
	}

	var visit func(label string) bool
	visit = func(label string) bool {
		colors[label] = 1

		for _, depLabel := range g.edges[label] {
			switch colors[depLabel] {
			case 1:
				// Found a back edge.
				return true
			case 0:
				if visit(depLabel) {
					return true
				}
			}
		}

		colors[label] = 2
		return false
	}

	for label := range g.nodes {
		if colors[label] == 0 {
			if visit(label) {
				return true
			}
		}
	}

	return false
}

// Spec returns the spec for a given label. The second return value is
// false if the label is not in the graph.
func (g *Graph) Spec(label string) (models.Spec, bool) {
	s, ok := g.nodes[label]
	return s, ok
}

// Labels returns all spec labels in sorted order, so callers that iterate
// the graph produce deterministic output.
func (g *Graph) Labels() []string {
	labels := make([]string, 0, len(g.nodes))
	for label := range g.nodes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Size returns the number of specs in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Dependencies returns the labels of specs the given spec depends on.
func (g *Graph) Dependencies(label string) []string {
	return g.edges[label]
}

// Rewrite replaces the spec stored under label using fn, keeping the edge
// set intact. The bootstrap sequencer uses this to strip compilers from
// phase specs without rebuilding the graph.
func (g *Graph) Rewrite(label string, fn func(models.Spec) models.Spec) {
	if spec, ok := g.nodes[label]; ok {
		g.nodes[label] = fn(spec)
	}
}
