// Package rebuild drives the lifecycle of one CI rebuild job: resolve the
// spec from the job descriptor, check the mirror, build or download,
// publish, and relate the build to its dependencies in the report
// service.
package rebuild

import (
	"strings"

	"github.com/forgefleet/conveyor/pkg/models"
)

// JobConfig carries everything a rebuild job needs. The command layer
// assembles it from flags, the CI-provided job variables, and the loaded
// pipeline configuration, then validates it once before any step runs.
type JobConfig struct {
	// WorkDir is the job's scratch directory.
	WorkDir string
	// JobName is the job's name in the generated pipeline.
	JobName string
	// PackageName selects this job's spec inside the root spec list.
	PackageName string
	// EncodedRootSpec is the encoded spec list for this job's subtree.
	EncodedRootSpec string
	// MirrorURL is the remote mirror the pipeline publishes to.
	MirrorURL string
	// LocalMirrorDir is the per-job local mirror directory.
	LocalMirrorDir string
	// CompilerAction tells the build tool how to obtain a compiler.
	CompilerAction string
	// RelatedBuilds is the semicolon-joined list of direct dependency
	// labels.
	RelatedBuilds string
	// SigningKey is the base64-encoded gpg key, empty to skip signing.
	SigningKey string
	// ReportEnabled turns on report-id verification and relationship
	// posting.
	ReportEnabled bool
	// ReportBuildGroup is the build group this job reports under.
	ReportBuildGroup string
}

// Validate checks the required fields, returning a ConfigError for the
// first missing one.
func (c *JobConfig) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"work dir", c.WorkDir},
		{"job name", c.JobName},
		{"package name", c.PackageName},
		{"root spec", c.EncodedRootSpec},
		{"mirror url", c.MirrorURL},
		{"local mirror dir", c.LocalMirrorDir},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ConfigError{Field: f.name, Reason: "required"}
		}
	}

	switch c.CompilerAction {
	case models.CompilerActionNone, models.CompilerActionFindAny, models.CompilerActionInstallMissing:
	case "":
		return &ConfigError{Field: "compiler action", Reason: "required"}
	default:
		return &ConfigError{Field: "compiler action", Reason: "unknown value " + c.CompilerAction}
	}

	return nil
}

// RelatedLabels splits the semicolon-joined dependency label list,
// dropping empty entries.
func (c *JobConfig) RelatedLabels() []string {
	var labels []string
	for _, l := range strings.Split(c.RelatedBuilds, ";") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}
