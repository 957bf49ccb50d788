package mirror

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 stores objects in a map keyed by object key.
type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	raw, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(raw))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	raw, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = raw
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func newTestS3Mirror(fake *fakeS3) *S3Mirror {
	return &S3Mirror{
		client: fake,
		bucket: "release-mirror",
		prefix: "prs",
		url:    "s3://release-mirror/prs",
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, prefix, err := parseS3URL("s3://release-mirror/prs/shared")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != "release-mirror" || prefix != "prs/shared" {
		t.Errorf("unexpected parse result: %q %q", bucket, prefix)
	}

	bucket, prefix, err = parseS3URL("s3://release-mirror")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != "release-mirror" || prefix != "" {
		t.Errorf("unexpected parse result: %q %q", bucket, prefix)
	}

	if _, _, err := parseS3URL("https://example.com"); err == nil {
		t.Error("expected error for non-s3 url")
	}
}

func TestS3MirrorExists(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	m := newTestS3Mirror(fake)

	ok, err := m.Exists(ctx, "fh1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("empty bucket should not report an entry")
	}

	fake.objects["prs/build_cache/fh1/entry.yaml"] = []byte("name: readline\n")

	ok, err = m.Exists(ctx, "fh1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("entry with metadata object should exist")
	}
}

func TestS3MirrorLinkage(t *testing.T) {
	ctx := context.Background()
	m := newTestS3Mirror(newFakeS3())

	if _, err := m.ReadLinkage(ctx, "fh1"); !errors.Is(err, ErrLinkageNotFound) {
		t.Fatalf("expected ErrLinkageNotFound, got %v", err)
	}

	if err := m.WriteLinkage(ctx, "fh1", "4242"); err != nil {
		t.Fatalf("write linkage: %v", err)
	}

	id, err := m.ReadLinkage(ctx, "fh1")
	if err != nil {
		t.Fatalf("read linkage: %v", err)
	}
	if id != "4242" {
		t.Errorf("expected report id 4242, got %q", id)
	}
}

func TestS3MirrorDownloadEmptyEntry(t *testing.T) {
	m := newTestS3Mirror(newFakeS3())
	if err := m.Download(context.Background(), "fh1", t.TempDir()); err == nil {
		t.Error("expected error downloading an absent entry")
	}
}
