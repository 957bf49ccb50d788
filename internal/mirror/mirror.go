// Package mirror provides clients for the buildcache mirrors that hold
// published build artifacts and their report-identifier linkage files.
//
// Entry layout on every mirror:
//
//	build_cache/<fullhash>/...        the published entry files
//	build_cache/<fullhash>/entry.yaml entry metadata; its presence marks a
//	                                  complete entry
//	build_cache/<fullhash>.reportid   linkage file mapping the entry to its
//	                                  build-report identifier
//
// Writes to a given full hash are idempotent: re-publishing identical
// content is safe, which is what lets two racing jobs share a dependency
// without coordination.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// BuildCacheDir is the directory entries live under on every mirror.
const BuildCacheDir = "build_cache"

// EntryMetaFile marks a complete entry.
const EntryMetaFile = "entry.yaml"

// ErrLinkageNotFound indicates a linkage file is absent from the mirror.
var ErrLinkageNotFound = errors.New("linkage file not found")

// Mirror is the interface the rebuild orchestrator uses to talk to an
// artifact mirror. The core performs no retries; retry policy, if any,
// belongs to the implementation.
type Mirror interface {
	// Exists reports whether a complete entry for the full hash is
	// present. It is a pure existence check, never a download.
	Exists(ctx context.Context, fullHash string) (bool, error)

	// Download copies the entry and its linkage file into destDir,
	// preserving the build_cache layout.
	Download(ctx context.Context, fullHash string, destDir string) error

	// Upload publishes the files in entryDir as the entry for fullHash.
	Upload(ctx context.Context, entryDir string, fullHash string) error

	// WriteLinkage stores the report identifier for the full hash.
	WriteLinkage(ctx context.Context, fullHash string, reportID string) error

	// ReadLinkage returns the stored report identifier, or
	// ErrLinkageNotFound when no linkage file exists.
	ReadLinkage(ctx context.Context, fullHash string) (string, error)

	// URL returns the mirror location for logging.
	URL() string
}

// New returns a mirror client for the given URL. s3:// URLs get the S3
// client; file:// URLs and plain paths get the filesystem client.
func New(ctx context.Context, url string) (Mirror, error) {
	switch {
	case strings.HasPrefix(url, "s3://"):
		return NewS3(ctx, url)
	case strings.HasPrefix(url, "file://"):
		return NewFS(strings.TrimPrefix(url, "file://")), nil
	case strings.Contains(url, "://"):
		return nil, fmt.Errorf("unsupported mirror scheme in %q", url)
	default:
		return NewFS(url), nil
	}
}

// entryPrefix returns the mirror-relative directory of an entry.
func entryPrefix(fullHash string) string {
	return BuildCacheDir + "/" + fullHash
}

// linkagePath returns the mirror-relative path of a linkage file.
func linkagePath(fullHash string) string {
	return BuildCacheDir + "/" + fullHash + ".reportid"
}
