package checks

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/endpoint"
	"github.com/kumasuke/s3ready/internal/isolation"
)

func registerVersioning(c *catalog.Catalog) {
	c.MustRegister(catalog.TestCase{
		ID: 200, Name: "versioning-basic", Category: catalog.CategoryVersioning,
		Tier: catalog.TierHigh, Requires: []endpoint.Capability{endpoint.CapVersioning},
		Run: checkVersioningBasic,
	})
	c.MustRegister(catalog.TestCase{
		ID: 201, Name: "versioning-delete-marker", Category: catalog.CategoryVersioning,
		Tier: catalog.TierHigh, Requires: []endpoint.Capability{endpoint.CapVersioning},
		Run: checkVersioningDeleteMarker,
	})
}

func enableVersioning(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(bucket),
		VersioningConfiguration: &types.VersioningConfiguration{
			Status: types.BucketVersioningStatusEnabled,
		},
	})
	return err
}

// Writes two versions of one key and reads the older one back by version id.
func checkVersioningBasic(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("ver")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}
	if err := enableVersioning(ctx, client, bucket); err != nil {
		return err
	}

	key := "versioned-key"
	v1 := []byte("first version")
	v2 := []byte("second version")

	put1, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket), Key: aws.String(key), Body: bytes.NewReader(v1),
	})
	if err != nil {
		return err
	}
	if put1.VersionId == nil {
		return catalog.Failf("no version id returned with versioning enabled")
	}
	if err := putObject(ctx, client, bucket, key, v2); err != nil {
		return err
	}

	latest, err := getObject(ctx, client, bucket, key)
	if err != nil {
		return err
	}
	if !bytes.Equal(latest, v2) {
		return catalog.Failf("latest read returned stale version")
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:    aws.String(bucket),
		Key:       aws.String(key),
		VersionId: put1.VersionId,
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return err
	}
	if !bytes.Equal(buf.Bytes(), v1) {
		return catalog.Failf("read by version id did not return the first version")
	}
	return nil
}

func checkVersioningDeleteMarker(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("ver-dm")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}
	if err := enableVersioning(ctx, client, bucket); err != nil {
		return err
	}

	key := "marked-key"
	if err := putObject(ctx, client, bucket, key, []byte("payload")); err != nil {
		return err
	}
	if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket), Key: aws.String(key),
	}); err != nil {
		return err
	}

	if _, err := getObject(ctx, client, bucket, key); err == nil {
		return catalog.Failf("object readable after delete marker")
	}

	versions, err := client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return err
	}
	if len(versions.DeleteMarkers) != 1 {
		return catalog.Failf("expected one delete marker, got %d", len(versions.DeleteMarkers))
	}
	if len(versions.Versions) != 1 {
		return catalog.Failf("expected the original version to survive, got %d versions", len(versions.Versions))
	}
	return nil
}
