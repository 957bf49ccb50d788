// Package exec abstracts external command execution for the build and
// signing tools the rebuild jobs shell out to.
package exec

import (
	"context"
)

// CommandRunner runs external commands. The abstraction exists so tests
// can substitute a fake and assert on the invocations.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunEnv is Run with extra environment variables appended to the
	// inherited environment, each in KEY=value form.
	RunEnv(ctx context.Context, workDir string, env []string, name string, args ...string) (output []byte, err error)
}
