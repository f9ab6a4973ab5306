// Package isolation provides per-invocation resource namespaces.
//
// Every bucket a test creates is named under a namespace prefix that is
// unique across concurrent invocations and across runs, so tests never
// observe each other's state. Release deletes everything under the prefix
// best-effort and reports leaks instead of failing.
package isolation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3API is the subset of the S3 client the isolation manager needs.
type S3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// Namespace scopes every resource one test invocation creates.
type Namespace struct {
	Prefix string

	released bool
	mu       sync.Mutex
}

// BucketName returns a bucket name under the namespace. The label must be
// a valid bucket-name fragment (lowercase letters, digits, hyphens).
func (n *Namespace) BucketName(label string) string {
	name := n.Prefix + "-" + label
	// S3 bucket names are capped at 63 characters.
	if len(name) > 63 {
		name = name[:63]
	}
	return strings.TrimRight(name, "-")
}

// ObjectKey returns an object key scoped to the namespace.
func (n *Namespace) ObjectKey(label string) string {
	return n.Prefix + "/" + label
}

// Manager hands out namespaces and tears them down.
type Manager struct {
	client S3API
	prefix string
	runID  string

	mu     sync.Mutex
	active map[string]struct{}
}

// NewManager creates a manager for one run. runID must be unique per run.
func NewManager(client S3API, bucketPrefix, runID string) *Manager {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return &Manager{
		client: client,
		prefix: strings.ToLower(bucketPrefix),
		runID:  strings.ToLower(short),
		active: make(map[string]struct{}),
	}
}

// Acquire returns a namespace for the given test id, distinct from every
// namespace of every concurrently active invocation. A collision means the
// framework itself is broken and is reported as an error.
func (m *Manager) Acquire(testID int) (*Namespace, error) {
	prefix := fmt.Sprintf("%s-r%s-t%03d-%s", m.prefix, m.runID, testID, randomSuffix(6))

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.active[prefix]; exists {
		return nil, fmt.Errorf("internal: namespace collision for %q", prefix)
	}
	m.active[prefix] = struct{}{}

	return &Namespace{Prefix: prefix}, nil
}

// Release deletes every bucket under the namespace, best-effort. It reports
// whether any resource leaked; it never fails the invocation and releasing
// an already-released namespace is a no-op.
func (m *Manager) Release(ctx context.Context, ns *Namespace) (leaked bool) {
	ns.mu.Lock()
	if ns.released {
		ns.mu.Unlock()
		return false
	}
	ns.released = true
	ns.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.active, ns.Prefix)
		m.mu.Unlock()
	}()

	out, err := m.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		log.Warn().Err(err).Str("namespace", ns.Prefix).Msg("Failed to list buckets during cleanup")
		return true
	}

	for _, bucket := range out.Buckets {
		name := aws.ToString(bucket.Name)
		if !strings.HasPrefix(name, ns.Prefix) {
			continue
		}
		if !m.purgeBucket(ctx, name) {
			leaked = true
			continue
		}
		if _, err := m.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
			log.Warn().Err(err).Str("bucket", name).Msg("Failed to delete bucket during cleanup")
			leaked = true
		}
	}
	return leaked
}

// purgeBucket removes all object versions and delete markers from a bucket.
// Endpoints without versioning support fall back to a plain object listing.
func (m *Manager) purgeBucket(ctx context.Context, bucket string) bool {
	var keyMarker, versionMarker *string
	for {
		out, err := m.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(bucket),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionMarker,
		})
		if err != nil {
			return m.purgeObjects(ctx, bucket)
		}

		var ids []types.ObjectIdentifier
		for _, v := range out.Versions {
			ids = append(ids, types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}
		for _, d := range out.DeleteMarkers {
			ids = append(ids, types.ObjectIdentifier{Key: d.Key, VersionId: d.VersionId})
		}
		if len(ids) > 0 {
			if !m.deleteBatch(ctx, bucket, ids) {
				return false
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			return true
		}
		keyMarker = out.NextKeyMarker
		versionMarker = out.NextVersionIdMarker
	}
}

func (m *Manager) purgeObjects(ctx context.Context, bucket string) bool {
	var token *string
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			log.Warn().Err(err).Str("bucket", bucket).Msg("Failed to list objects during cleanup")
			return false
		}

		var ids []types.ObjectIdentifier
		for _, obj := range out.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		if len(ids) > 0 {
			if !m.deleteBatch(ctx, bucket, ids) {
				return false
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			return true
		}
		token = out.NextContinuationToken
	}
}

func (m *Manager) deleteBatch(ctx context.Context, bucket string, ids []types.ObjectIdentifier) bool {
	_, err := m.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		log.Warn().Err(err).Str("bucket", bucket).Msg("Failed to delete objects during cleanup")
		return false
	}
	return true
}

func randomSuffix(n int) string {
	b := make([]byte, n/2+1)
	rand.Read(b)
	return hex.EncodeToString(b)[:n]
}
