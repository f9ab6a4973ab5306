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

// Parts other than the last must be at least 5 MiB.
const partSize = 5 * 1024 * 1024

func registerMultipart(c *catalog.Catalog) {
	c.MustRegister(catalog.TestCase{
		ID: 100, Name: "multipart-upload-complete", Category: catalog.CategoryMultipart,
		Tier: catalog.TierCritical, Requires: []endpoint.Capability{endpoint.CapMultipart},
		Run: checkMultipartUploadComplete,
	})
	c.MustRegister(catalog.TestCase{
		ID: 101, Name: "multipart-upload-abort", Category: catalog.CategoryMultipart,
		Tier: catalog.TierCritical, Requires: []endpoint.Capability{endpoint.CapMultipart},
		Run: checkMultipartUploadAbort,
	})
}

func checkMultipartUploadComplete(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("mpu")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	key := "multipart-object"
	create, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}

	parts := [][]byte{randomData(partSize), randomData(partSize), randomData(1024)}
	var completed []types.CompletedPart
	for i, part := range parts {
		num := int32(i + 1)
		up, err := client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(bucket),
			Key:        aws.String(key),
			UploadId:   create.UploadId,
			PartNumber: aws.Int32(num),
			Body:       bytes.NewReader(part),
		})
		if err != nil {
			return err
		}
		completed = append(completed, types.CompletedPart{ETag: up.ETag, PartNumber: aws.Int32(num)})
	}

	_, err = client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        create.UploadId,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return err
	}

	got, err := getObject(ctx, client, bucket, key)
	if err != nil {
		return err
	}
	want := bytes.Join(parts, nil)
	if !bytes.Equal(got, want) {
		return catalog.Failf("assembled object has %d bytes, want %d", len(got), len(want))
	}
	return nil
}

func checkMultipartUploadAbort(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("mpu-abort")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	key := "aborted-object"
	create, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}

	if _, err := client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(key),
		UploadId:   create.UploadId,
		PartNumber: aws.Int32(1),
		Body:       bytes.NewReader(randomData(partSize)),
	}); err != nil {
		return err
	}

	if _, err := client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: create.UploadId,
	}); err != nil {
		return err
	}

	if _, err := getObject(ctx, client, bucket, key); err == nil {
		return catalog.Failf("object %s exists after multipart abort", key)
	}

	uploads, err := client.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return err
	}
	if n := len(uploads.Uploads); n != 0 {
		return catalog.Failf("%d multipart uploads still pending after abort", n)
	}
	return nil
}
