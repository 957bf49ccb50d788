// Package runner assigns staged specs to runner configurations using an
// ordered list of first-match mapping rules.
package runner

import (
	"errors"
	"fmt"

	"github.com/forgefleet/conveyor/pkg/models"
)

// ErrUnassignableSpec indicates that no mapping rule matched a spec. The
// generator must surface this instead of silently omitting the job, since
// an unassigned spec would otherwise vanish from the pipeline.
var ErrUnassignableSpec = errors.New("no mapping rule matched spec")

// Rule pairs a set of match constraints with the runner attributes
// assigned to specs satisfying all of them.
type Rule struct {
	// Match lists constraint expressions; a spec must satisfy every one.
	Match []string `mapstructure:"match"`
	// RunnerAttributes are the attributes assigned on a match.
	RunnerAttributes models.RunnerAttributes `mapstructure:"runner-attributes"`
}

// Assign evaluates rules in declaration order and returns a copy of the
// first matching rule's runner attributes. Rules after the first match are
// never consulted.
func Assign(spec models.Spec, rules []Rule) (models.RunnerAttributes, error) {
	for _, rule := range rules {
		matched := true
		for _, expr := range rule.Match {
			ok, err := Matches(spec, expr)
			if err != nil {
				return models.RunnerAttributes{}, fmt.Errorf("rule constraint %q: %w", expr, err)
			}
			if !ok {
				matched = false
				break
			}
		}
		if matched {
			return rule.RunnerAttributes.Clone(), nil
		}
	}
	return models.RunnerAttributes{}, fmt.Errorf("%w: %s", ErrUnassignableSpec, spec.Label())
}
