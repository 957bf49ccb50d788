package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client the mirror uses, split out so tests
// can substitute a fake.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Mirror is a mirror backed by an S3 bucket, addressed as
// s3://bucket/prefix. Credentials come from the standard AWS environment
// (the CI infrastructure provides them).
type S3Mirror struct {
	client s3API
	bucket string
	prefix string
	url    string
}

// NewS3 creates an S3 mirror client for an s3:// URL using the default
// AWS configuration chain.
func NewS3(ctx context.Context, url string) (*S3Mirror, error) {
	bucket, prefix, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Mirror{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		url:    url,
	}, nil
}

// parseS3URL splits s3://bucket/prefix into bucket and prefix.
func parseS3URL(url string) (bucket, prefix string, err error) {
	rest := strings.TrimPrefix(url, "s3://")
	if rest == url || rest == "" {
		return "", "", fmt.Errorf("invalid s3 mirror url %q", url)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/"), nil
}

// URL returns the mirror location for logging.
func (m *S3Mirror) URL() string {
	return m.url
}

// key joins the bucket prefix with a mirror-relative path.
func (m *S3Mirror) key(rel string) string {
	if m.prefix == "" {
		return rel
	}
	return m.prefix + "/" + rel
}

// Exists reports whether a complete entry for the full hash is present.
func (m *S3Mirror) Exists(ctx context.Context, fullHash string) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(entryPrefix(fullHash) + "/" + EntryMetaFile)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("mirror check %s: %w", fullHash, err)
}

// Download copies the entry and its linkage file into destDir.
func (m *S3Mirror) Download(ctx context.Context, fullHash string, destDir string) error {
	prefix := m.key(entryPrefix(fullHash)) + "/"

	var token *string
	downloaded := 0
	for {
		page, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("mirror download %s: %w", fullHash, err)
		}

		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			dst := filepath.Join(destDir, entryPrefix(fullHash), rel)
			if err := m.getObject(ctx, aws.ToString(obj.Key), dst); err != nil {
				return fmt.Errorf("mirror download %s: %w", fullHash, err)
			}
			downloaded++
		}

		if page.NextContinuationToken == nil {
			break
		}
		token = page.NextContinuationToken
	}

	if downloaded == 0 {
		return fmt.Errorf("mirror download %s: entry has no files", fullHash)
	}

	// Fetch the linkage file alongside the entry when present.
	err := m.getObject(ctx, m.key(linkagePath(fullHash)), filepath.Join(destDir, linkagePath(fullHash)))
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("mirror download linkage %s: %w", fullHash, err)
	}

	return nil
}

// Upload publishes the files in entryDir as the entry for fullHash.
func (m *S3Mirror) Upload(ctx context.Context, entryDir string, fullHash string) error {
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

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(m.key(entryPrefix(fullHash) + "/" + filepath.ToSlash(rel))),
			Body:   in,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("mirror upload %s: %w", fullHash, err)
	}
	return nil
}

// WriteLinkage stores the report identifier for the full hash.
func (m *S3Mirror) WriteLinkage(ctx context.Context, fullHash string, reportID string) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(linkagePath(fullHash))),
		Body:   bytes.NewReader([]byte(reportID + "\n")),
	})
	if err != nil {
		return fmt.Errorf("mirror write linkage %s: %w", fullHash, err)
	}
	return nil
}

// ReadLinkage returns the stored report identifier.
func (m *S3Mirror) ReadLinkage(ctx context.Context, fullHash string) (string, error) {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(linkagePath(fullHash))),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return "", fmt.Errorf("%w: %s", ErrLinkageNotFound, fullHash)
		}
		return "", fmt.Errorf("mirror read linkage %s: %w", fullHash, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("mirror read linkage %s: %w", fullHash, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// getObject fetches one object to a local file, creating parent
// directories.
func (m *S3Mirror) getObject(ctx context.Context, key, dst string) error {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return err
	}
	return f.Close()
}

// isNoSuchKey reports whether an S3 error means the object is absent.
func isNoSuchKey(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// Verify S3Mirror implements Mirror at compile time.
var _ Mirror = (*S3Mirror)(nil)
