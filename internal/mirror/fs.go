package mirror

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSMirror is a mirror rooted at a local directory. It backs the per-job
// local mirror and file:// remotes in tests and small deployments.
type FSMirror struct {
	root string
}

// NewFS creates a filesystem mirror rooted at the given directory.
func NewFS(root string) *FSMirror {
	return &FSMirror{root: root}
}

// URL returns the mirror location for logging.
func (m *FSMirror) URL() string {
	return "file://" + m.root
}

// Exists reports whether a complete entry for the full hash is present.
func (m *FSMirror) Exists(ctx context.Context, fullHash string) (bool, error) {
	_, err := os.Stat(filepath.Join(m.root, entryPrefix(fullHash), EntryMetaFile))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("mirror check %s: %w", fullHash, err)
}

// Download copies the entry and its linkage file into destDir.
func (m *FSMirror) Download(ctx context.Context, fullHash string, destDir string) error {
	srcDir := filepath.Join(m.root, entryPrefix(fullHash))
	dstDir := filepath.Join(destDir, entryPrefix(fullHash))

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		return copyFile(path, filepath.Join(dstDir, rel))
	})
	if err != nil {
		return fmt.Errorf("mirror download %s: %w", fullHash, err)
	}

	// The linkage file travels with the entry so the Reported step can
	// verify it locally.
	src := filepath.Join(m.root, linkagePath(fullHash))
	if _, err := os.Stat(src); err == nil {
		if err := copyFile(src, filepath.Join(destDir, linkagePath(fullHash))); err != nil {
			return fmt.Errorf("mirror download linkage %s: %w", fullHash, err)
		}
	}

	return nil
}

// Upload publishes the files in entryDir as the entry for fullHash.
// Re-uploading an existing entry overwrites it with identical content.
func (m *FSMirror) Upload(ctx context.Context, entryDir string, fullHash string) error {
	dstDir := filepath.Join(m.root, entryPrefix(fullHash))

	err := filepath.WalkDir(entryDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(entryDir, path)
		if err != nil {
			return err
		}
		return copyFile(path, filepath.Join(dstDir, rel))
	})
	if err != nil {
		return fmt.Errorf("mirror upload %s: %w", fullHash, err)
	}
	return nil
}

// WriteLinkage stores the report identifier for the full hash.
func (m *FSMirror) WriteLinkage(ctx context.Context, fullHash string, reportID string) error {
	path := filepath.Join(m.root, linkagePath(fullHash))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mirror write linkage %s: %w", fullHash, err)
	}
	if err := os.WriteFile(path, []byte(reportID+"\n"), 0644); err != nil {
		return fmt.Errorf("mirror write linkage %s: %w", fullHash, err)
	}
	return nil
}

// ReadLinkage returns the stored report identifier.
func (m *FSMirror) ReadLinkage(ctx context.Context, fullHash string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(m.root, linkagePath(fullHash)))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrLinkageNotFound, fullHash)
	}
	if err != nil {
		return "", fmt.Errorf("mirror read linkage %s: %w", fullHash, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// copyFile copies src to dst, creating parent directories.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// Verify FSMirror implements Mirror at compile time.
var _ Mirror = (*FSMirror)(nil)
