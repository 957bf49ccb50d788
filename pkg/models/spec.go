// Package models contains the core data types shared across conveyor:
// package build specs, job lifecycle states, and runner attributes.
package models

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// CompilerAny marks a spec whose compiler attribute has been stripped for a
// compiler-agnostic bootstrap phase. The build step on the chosen runner
// substitutes whatever compiler is available there.
const CompilerAny = "any"

// Compiler actions tell the build step on the runner how to obtain a
// compiler before building the job's spec.
const (
	// CompilerActionNone builds with the compiler the spec names.
	CompilerActionNone = "NONE"
	// CompilerActionFindAny substitutes any compiler present on the
	// runner; used for compiler-agnostic bootstrap phases.
	CompilerActionFindAny = "FIND_ANY"
	// CompilerActionInstallMissing installs the spec's compiler from the
	// mirror first when a bootstrap phase built it earlier in the
	// pipeline.
	CompilerActionInstallMissing = "INSTALL_MISSING"
)

// Spec identifies one package build instance. Specs are produced by the
// external resolver and treated as immutable by conveyor. Two specs are the
// same build artifact iff their full hashes match.
type Spec struct {
	// Name is the package name.
	Name string `yaml:"name" json:"name"`
	// Version is the package version.
	Version string `yaml:"version" json:"version"`
	// Compiler identifies the compiler, or CompilerAny when stripped.
	Compiler string `yaml:"compiler" json:"compiler"`
	// Arch is the target platform/architecture identifier.
	Arch string `yaml:"arch" json:"arch"`
	// Hash is the content hash over the package's own definition.
	Hash string `yaml:"hash" json:"hash"`
	// FullHash also incorporates all transitive dependency hashes. It is
	// the identity key for cached artifacts.
	FullHash string `yaml:"full_hash" json:"full_hash"`
	// DependsOn lists the labels of the specs this spec depends on.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// Label returns the short identity used for graph nodes and job wiring:
// the package name joined with a 7-character full-hash prefix.
func (s Spec) Label() string {
	h := s.FullHash
	if len(h) > 7 {
		h = h[:7]
	}
	return fmt.Sprintf("%s/%s", s.Name, h)
}

// String renders the spec the way it appears in logs and summaries,
// e.g. "readline@7.0%gcc@9.1 arch=linux-x86_64".
func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if s.Version != "" {
		b.WriteString("@" + s.Version)
	}
	if s.Compiler != "" && s.Compiler != CompilerAny {
		b.WriteString("%" + s.Compiler)
	}
	if s.Arch != "" {
		b.WriteString(" arch=" + s.Arch)
	}
	return b.String()
}

// StripCompiler returns a copy of the spec with the compiler attribute
// rewritten to CompilerAny.
func (s Spec) StripCompiler() Spec {
	s.Compiler = CompilerAny
	return s
}

// EncodeSpecs serializes specs into a single environment-variable safe
// string: YAML, zlib-compressed, base64-encoded. The pipeline generator
// uses this to hand a job its root spec and dependency specs.
func EncodeSpecs(specs []Spec) (string, error) {
	raw, err := yaml.Marshal(specs)
	if err != nil {
		return "", fmt.Errorf("marshal specs: %w", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("compress specs: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress specs: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeSpecs reverses EncodeSpecs.
func DecodeSpecs(encoded string) ([]Spec, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode specs: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress specs: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress specs: %w", err)
	}

	var specs []Spec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("unmarshal specs: %w", err)
	}
	return specs, nil
}
