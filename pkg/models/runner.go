package models

// Image describes the container image a job runs in. Entrypoint is
// optional; when empty the image default applies.
type Image struct {
	Name       string   `yaml:"name" mapstructure:"name"`
	Entrypoint []string `yaml:"entrypoint,omitempty" mapstructure:"entrypoint"`
}

// RunnerAttributes are the execution attributes a mapping rule assigns to
// a job: runner selection tags, the container image, and free-form
// variables injected into the job environment.
type RunnerAttributes struct {
	Tags      []string          `yaml:"tags" mapstructure:"tags"`
	Image     Image             `yaml:"image,omitempty" mapstructure:"image"`
	Variables map[string]string `yaml:"variables,omitempty" mapstructure:"variables"`
}

// Clone returns a deep copy so per-job variable injection never mutates
// the rule the attributes came from.
func (ra RunnerAttributes) Clone() RunnerAttributes {
	out := RunnerAttributes{
		Tags:  append([]string(nil), ra.Tags...),
		Image: Image{Name: ra.Image.Name, Entrypoint: append([]string(nil), ra.Image.Entrypoint...)},
	}
	if ra.Variables != nil {
		out.Variables = make(map[string]string, len(ra.Variables))
		for k, v := range ra.Variables {
			out.Variables[k] = v
		}
	}
	return out
}
