package checks

import (
	"bytes"
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/isolation"
)

func registerBasic(c *catalog.Catalog) {
	c.MustRegister(catalog.TestCase{
		ID: 1, Name: "bucket-create-delete", Category: catalog.CategoryBasic,
		Tier: catalog.TierCritical, Run: checkBucketCreateDelete,
	})
	c.MustRegister(catalog.TestCase{
		ID: 2, Name: "object-put-get-delete", Category: catalog.CategoryBasic,
		Tier: catalog.TierCritical, Run: checkObjectPutGetDelete,
	})
	c.MustRegister(catalog.TestCase{
		ID: 4, Name: "object-data-integrity", Category: catalog.CategoryBasic,
		Tier: catalog.TierCritical, Run: checkObjectDataIntegrity,
	})
	c.MustRegister(catalog.TestCase{
		ID: 5, Name: "object-overwrite", Category: catalog.CategoryBasic,
		Tier: catalog.TierCritical, Run: checkObjectOverwrite,
	})
	c.MustRegister(catalog.TestCase{
		ID: 10, Name: "object-listing-prefix", Category: catalog.CategoryBasic,
		Tier: catalog.TierHigh, Run: checkObjectListingPrefix,
	})
}

// Create a bucket, verify it exists, delete it, verify it is gone.
func checkBucketCreateDelete(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("create")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return catalog.Failf("bucket %s not found after creation: %v", bucket, err)
	}

	if _, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return err
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return catalog.Failf("bucket %s still exists after deletion", bucket)
	}
	return nil
}

func checkObjectPutGetDelete(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("object")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	data := []byte("hello s3ready")
	key := "greeting.txt"
	if err := putObject(ctx, client, bucket, key, data); err != nil {
		return err
	}

	got, err := getObject(ctx, client, bucket, key)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, data) {
		return catalog.Failf("object round-trip mismatch: put %d bytes, got %d", len(data), len(got))
	}

	if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket), Key: aws.String(key),
	}); err != nil {
		return err
	}
	if _, err := getObject(ctx, client, bucket, key); err == nil {
		return catalog.Failf("object %s readable after deletion", key)
	}
	return nil
}

// Uploads binary payloads of varying sizes and verifies bytes and ETag.
func checkObjectDataIntegrity(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("integrity")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	for _, size := range []int{0, 1, 1024, 256 * 1024} {
		data := randomData(size)
		key := ns.ObjectKey("integrity")

		out, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return err
		}
		if etag := strings.Trim(aws.ToString(out.ETag), `"`); etag != md5Hex(data) {
			return catalog.Failf("etag mismatch for %d-byte object: got %s, want %s", size, etag, md5Hex(data))
		}

		got, err := getObject(ctx, client, bucket, key)
		if err != nil {
			return err
		}
		if !bytes.Equal(got, data) {
			return catalog.Failf("%d-byte object corrupted in round trip", size)
		}
	}
	return nil
}

func checkObjectOverwrite(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("overwrite")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	key := "overwrite-me"
	first := randomData(2048)
	second := randomData(4096)
	if err := putObject(ctx, client, bucket, key, first); err != nil {
		return err
	}
	if err := putObject(ctx, client, bucket, key, second); err != nil {
		return err
	}

	got, err := getObject(ctx, client, bucket, key)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, second) {
		return catalog.Failf("overwrite not observed: got %d bytes, want %d", len(got), len(second))
	}
	return nil
}

func checkObjectListingPrefix(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("listing")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	keys := []string{"logs/a.log", "logs/b.log", "data/a.bin"}
	for _, k := range keys {
		if err := putObject(ctx, client, bucket, k, []byte(k)); err != nil {
			return err
		}
	}

	out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String("logs/"),
	})
	if err != nil {
		return err
	}
	if n := len(out.Contents); n != 2 {
		return catalog.Failf("prefix listing returned %d objects, want 2", n)
	}
	for _, obj := range out.Contents {
		if !strings.HasPrefix(aws.ToString(obj.Key), "logs/") {
			return catalog.Failf("prefix listing leaked key %s", aws.ToString(obj.Key))
		}
	}
	return nil
}
