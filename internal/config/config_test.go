package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
mappings:
  - match:
      - "arch=linux-x86_64"
    runner-attributes:
      tags: [docker, linux]
      image:
        name: "builder:latest"
      variables:
        CPU_TARGET: x86_64
  - match:
      - "*"
    runner-attributes:
      tags: [fallback]
bootstrap:
  - name: stage1-compilers
    compiler-agnostic: true
mirrors:
  remote: s3://release-mirror/prs
  local: local_mirror
report:
  enabled: true
  url: https://cdash.example.com
  project: Release
  site: cloud-ci
  build_group: PR testing
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conveyor.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(cfg.Mappings))
	}
	if cfg.Mappings[0].RunnerAttributes.Image.Name != "builder:latest" {
		t.Errorf("image not parsed: %+v", cfg.Mappings[0].RunnerAttributes.Image)
	}
	if cfg.Mappings[0].RunnerAttributes.Variables["CPU_TARGET"] != "x86_64" {
		t.Errorf("variables not parsed: %+v", cfg.Mappings[0].RunnerAttributes.Variables)
	}
	if len(cfg.Bootstrap) != 1 || !cfg.Bootstrap[0].CompilerAgnostic {
		t.Errorf("bootstrap not parsed: %+v", cfg.Bootstrap)
	}
	if cfg.Mirrors.Remote != "s3://release-mirror/prs" {
		t.Errorf("remote mirror not parsed: %q", cfg.Mirrors.Remote)
	}
	if !cfg.Report.Enabled || cfg.Report.BuildGroup != "PR testing" {
		t.Errorf("report config not parsed: %+v", cfg.Report)
	}
	// Defaulted fields.
	if len(cfg.ArtifactPaths) == 0 {
		t.Error("expected default artifact paths")
	}
}

func TestLoadSigningKeyFromEnv(t *testing.T) {
	t.Setenv("CONVEYOR_SIGNING_KEY", "c2VjcmV0")
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Signing.Key != "c2VjcmV0" {
		t.Errorf("expected signing key from environment, got %q", cfg.Signing.Key)
	}
}

func TestLoadMissingMappings(t *testing.T) {
	_, err := Load(writeConfig(t, `
mirrors:
  remote: s3://somewhere
`))
	if err == nil || !strings.Contains(err.Error(), "mapping") {
		t.Fatalf("expected mapping validation error, got %v", err)
	}
}

func TestLoadMissingRemoteMirror(t *testing.T) {
	_, err := Load(writeConfig(t, `
mappings:
  - match: ["*"]
    runner-attributes:
      tags: [x]
`))
	if err == nil || !strings.Contains(err.Error(), "mirrors.remote") {
		t.Fatalf("expected mirror validation error, got %v", err)
	}
}

func TestLoadReportRequiresFields(t *testing.T) {
	_, err := Load(writeConfig(t, `
mappings:
  - match: ["*"]
    runner-attributes:
      tags: [x]
mirrors:
  remote: s3://somewhere
report:
  enabled: true
  url: https://cdash.example.com
`))
	if err == nil || !strings.Contains(err.Error(), "report") {
		t.Fatalf("expected report validation error, got %v", err)
	}
}

func TestLoadReleaseSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.yaml")
	content := `
specs:
  - name: zlib
    version: "1.2.11"
    compiler: gcc@9.1
    arch: linux-x86_64
    hash: h1
    full_hash: zzzzzzz1
  - name: readline
    version: "7.0"
    compiler: gcc@9.1
    arch: linux-x86_64
    hash: h2
    full_hash: rrrrrrr1
    depends_on: [zlib/zzzzzzz]
lists:
  stage1-compilers:
    - name: gcc
      version: "9.1"
      compiler: system
      arch: linux-x86_64
      hash: h3
      full_hash: ggggggg1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write release set: %v", err)
	}

	rs, err := LoadReleaseSet(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs.Specs) != 2 {
		t.Errorf("expected 2 main specs, got %d", len(rs.Specs))
	}
	list, err := rs.List("stage1-compilers")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].Name != "gcc" {
		t.Errorf("unexpected list contents: %+v", list)
	}
	if _, err := rs.List("nope"); err == nil {
		t.Error("expected error for unknown list name")
	}
}

func TestLoadReleaseSetEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.yaml")
	if err := os.WriteFile(path, []byte("specs: []\n"), 0644); err != nil {
		t.Fatalf("write release set: %v", err)
	}
	if _, err := LoadReleaseSet(path); err == nil {
		t.Error("expected error for empty release set")
	}
}
