package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/forgefleet/conveyor/pkg/models"
)

// ReleaseSet is the resolved graph descriptor produced by the external
// resolver: the main release specs plus the named spec lists bootstrap
// phases draw from. Conveyor consumes it read-only.
type ReleaseSet struct {
	// Specs is the main release graph.
	Specs []models.Spec `yaml:"specs"`
	// Lists maps spec list names to their members.
	Lists map[string][]models.Spec `yaml:"lists,omitempty"`
}

// LoadReleaseSet reads and parses a release set file.
func LoadReleaseSet(path string) (*ReleaseSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading release set %s: %w", path, err)
	}

	rs := &ReleaseSet{}
	if err := yaml.Unmarshal(raw, rs); err != nil {
		return nil, fmt.Errorf("parsing release set %s: %w", path, err)
	}

	if len(rs.Specs) == 0 {
		return nil, fmt.Errorf("release set %s contains no specs", path)
	}

	return rs, nil
}

// List returns the named spec list, or an error naming the list when it is
// absent. Bootstrap phases reference lists by name, so a typo in the
// config should fail loudly at planning time.
func (rs *ReleaseSet) List(name string) ([]models.Spec, error) {
	specs, ok := rs.Lists[name]
	if !ok {
		return nil, fmt.Errorf("release set has no spec list named %q", name)
	}
	return specs, nil
}
