package isolation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 simulates just enough of the S3 surface for cleanup tests.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string][]string // bucket -> keys

	failVersions bool
	failDelete   bool

	deletedBuckets []string
}

func newFakeS3(buckets map[string][]string) *fakeS3 {
	if buckets == nil {
		buckets = make(map[string][]string)
	}
	return &fakeS3{buckets: buckets}
}

func (f *fakeS3) ListBuckets(ctx context.Context, in *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListBucketsOutput{}
	for name := range f.buckets {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range f.buckets[aws.ToString(in.Bucket)] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeS3) ListObjectVersions(ctx context.Context, in *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failVersions {
		return nil, errors.New("NotImplemented")
	}
	out := &s3.ListObjectVersionsOutput{IsTruncated: aws.Bool(false)}
	for _, key := range f.buckets[aws.ToString(in.Bucket)] {
		out.Versions = append(out.Versions, types.ObjectVersion{
			Key:       aws.String(key),
			VersionId: aws.String("v1"),
		})
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return nil, errors.New("AccessDenied")
	}
	bucket := aws.ToString(in.Bucket)
	remove := make(map[string]bool)
	for _, id := range in.Delete.Objects {
		remove[aws.ToString(id.Key)] = true
	}
	var kept []string
	for _, key := range f.buckets[bucket] {
		if !remove[key] {
			kept = append(kept, key)
		}
	}
	f.buckets[bucket] = kept
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket := aws.ToString(in.Bucket)
	if len(f.buckets[bucket]) > 0 {
		return nil, errors.New("BucketNotEmpty")
	}
	delete(f.buckets, bucket)
	f.deletedBuckets = append(f.deletedBuckets, bucket)
	return &s3.DeleteBucketOutput{}, nil
}

func TestAcquireProducesDisjointNamespaces(t *testing.T) {
	m := NewManager(newFakeS3(nil), "s3ready", "0123456789abcdef")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ns, err := m.Acquire(42)
		require.NoError(t, err)
		assert.False(t, seen[ns.Prefix], "namespace %s handed out twice", ns.Prefix)
		seen[ns.Prefix] = true
		assert.True(t, strings.HasPrefix(ns.Prefix, "s3ready-r01234567-t042-"))
	}
}

func TestAcquireDisjointAcrossRuns(t *testing.T) {
	m1 := NewManager(newFakeS3(nil), "s3ready", "run-a")
	m2 := NewManager(newFakeS3(nil), "s3ready", "run-b")

	ns1, err := m1.Acquire(1)
	require.NoError(t, err)
	ns2, err := m2.Acquire(1)
	require.NoError(t, err)

	assert.False(t, strings.HasPrefix(ns1.Prefix, ns2.Prefix))
	assert.False(t, strings.HasPrefix(ns2.Prefix, ns1.Prefix))
}

func TestBucketNameStaysWithinLimit(t *testing.T) {
	ns := &Namespace{Prefix: strings.Repeat("a", 60)}
	name := ns.BucketName("some-long-label")
	assert.LessOrEqual(t, len(name), 63)
	assert.False(t, strings.HasSuffix(name, "-"))
}

func TestReleaseDeletesOnlyNamespacedBuckets(t *testing.T) {
	fake := newFakeS3(nil)
	m := NewManager(fake, "s3ready", "feedface")
	ns, err := m.Acquire(7)
	require.NoError(t, err)

	mine := ns.BucketName("data")
	fake.buckets[mine] = []string{"a", "b"}
	fake.buckets["someone-elses-bucket"] = []string{"keep"}

	leaked := m.Release(context.Background(), ns)
	assert.False(t, leaked)
	assert.Equal(t, []string{mine}, fake.deletedBuckets)

	_, stillThere := fake.buckets["someone-elses-bucket"]
	assert.True(t, stillThere)
}

func TestReleaseFallsBackWhenVersionsUnsupported(t *testing.T) {
	fake := newFakeS3(nil)
	fake.failVersions = true
	m := NewManager(fake, "s3ready", "feedface")
	ns, err := m.Acquire(8)
	require.NoError(t, err)

	bucket := ns.BucketName("plain")
	fake.buckets[bucket] = []string{"x"}

	leaked := m.Release(context.Background(), ns)
	assert.False(t, leaked)
	assert.Empty(t, fake.buckets[bucket])
}

func TestReleaseFlagsLeakOnDeleteFailure(t *testing.T) {
	fake := newFakeS3(nil)
	fake.failDelete = true
	m := NewManager(fake, "s3ready", "feedface")
	ns, err := m.Acquire(9)
	require.NoError(t, err)

	fake.buckets[ns.BucketName("leaky")] = []string{"x"}

	leaked := m.Release(context.Background(), ns)
	assert.True(t, leaked)
}

func TestReleaseIsIdempotent(t *testing.T) {
	fake := newFakeS3(nil)
	m := NewManager(fake, "s3ready", "feedface")
	ns, err := m.Acquire(10)
	require.NoError(t, err)

	fake.buckets[ns.BucketName("once")] = nil

	assert.False(t, m.Release(context.Background(), ns))
	deletions := len(fake.deletedBuckets)
	assert.False(t, m.Release(context.Background(), ns))
	assert.Equal(t, deletions, len(fake.deletedBuckets))
}

func TestReleaseFreesPrefixForReuse(t *testing.T) {
	m := NewManager(newFakeS3(nil), "s3ready", "feedface")

	var prefixes []string
	for i := 0; i < 3; i++ {
		ns, err := m.Acquire(11)
		require.NoError(t, err)
		prefixes = append(prefixes, ns.Prefix)
		m.Release(context.Background(), ns)
	}
	require.Len(t, prefixes, 3)
}
