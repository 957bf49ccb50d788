// Package sign wraps gpg for importing the release signing key and
// producing detached signatures over mirror entries.
package sign

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgefleet/conveyor/internal/exec"
	"github.com/forgefleet/conveyor/internal/mirror"
)

// ErrNoSigningKey is returned when signing is attempted before a key has
// been imported.
var ErrNoSigningKey = errors.New("no signing key imported")

// Signer signs mirror entries with a gpg key imported at job start.
type Signer struct {
	runner   exec.CommandRunner
	imported bool
}

// New creates a Signer that shells out through the given runner.
func New(runner exec.CommandRunner) *Signer {
	return &Signer{runner: runner}
}

// ImportKey decodes a base64-encoded gpg private key and imports it into
// the job's keyring. The decoded key only ever exists in a private
// temporary file that is removed before returning.
func (s *Signer) ImportKey(ctx context.Context, encodedKey string) error {
	if encodedKey == "" {
		return errors.New("signing key is empty")
	}
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return fmt.Errorf("decode signing key: %w", err)
	}

	tmp, err := os.CreateTemp("", "signing-key-*.asc")
	if err != nil {
		return fmt.Errorf("import signing key: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		tmp.Close()
		return fmt.Errorf("import signing key: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("import signing key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("import signing key: %w", err)
	}

	out, err := s.runner.Run(ctx, "", "gpg", "--batch", "--import", tmp.Name())
	if err != nil {
		return fmt.Errorf("import signing key: %w: %s", err, out)
	}

	s.imported = true
	return nil
}

// SignEntry produces an armored detached signature next to the entry's
// metadata file, so mirror consumers can verify provenance.
func (s *Signer) SignEntry(ctx context.Context, entryDir string) error {
	if !s.imported {
		return ErrNoSigningKey
	}

	meta := filepath.Join(entryDir, mirror.EntryMetaFile)
	if _, err := os.Stat(meta); err != nil {
		return fmt.Errorf("sign entry: %w", err)
	}

	out, err := s.runner.Run(ctx, entryDir,
		"gpg", "--batch", "--yes", "--armor", "--detach-sign", meta)
	if err != nil {
		return fmt.Errorf("sign entry %s: %w: %s", entryDir, err, out)
	}
	return nil
}
