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

func registerEncryption(c *catalog.Catalog) {
	c.MustRegister(catalog.TestCase{
		ID: 400, Name: "sse-s3-object", Category: catalog.CategoryEncryption,
		Tier: catalog.TierHigh, Requires: []endpoint.Capability{endpoint.CapEncryption},
		Run: checkSSES3Object,
	})
	c.MustRegister(catalog.TestCase{
		ID: 401, Name: "bucket-default-encryption", Category: catalog.CategoryEncryption,
		Tier: catalog.TierHigh, Requires: []endpoint.Capability{endpoint.CapEncryption},
		Run: checkBucketDefaultEncryption,
	})
}

func checkSSES3Object(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("sse")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	data := randomData(4096)
	key := "encrypted-object"
	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	}); err != nil {
		return err
	}

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket), Key: aws.String(key),
	})
	if err != nil {
		return err
	}
	if head.ServerSideEncryption != types.ServerSideEncryptionAes256 {
		return catalog.Failf("object not reported as AES256 encrypted: %s", head.ServerSideEncryption)
	}

	got, err := getObject(ctx, client, bucket, key)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, data) {
		return catalog.Failf("encrypted object corrupted in round trip")
	}
	return nil
}

func checkBucketDefaultEncryption(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("sse-default")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	if _, err := client.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
		Bucket: aws.String(bucket),
		ServerSideEncryptionConfiguration: &types.ServerSideEncryptionConfiguration{
			Rules: []types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &types.ServerSideEncryptionByDefault{
					SSEAlgorithm: types.ServerSideEncryptionAes256,
				},
			}},
		},
	}); err != nil {
		return err
	}

	out, err := client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return err
	}
	rules := out.ServerSideEncryptionConfiguration.Rules
	if len(rules) == 0 || rules[0].ApplyServerSideEncryptionByDefault == nil {
		return catalog.Failf("default encryption configuration not returned")
	}
	if alg := rules[0].ApplyServerSideEncryptionByDefault.SSEAlgorithm; alg != types.ServerSideEncryptionAes256 {
		return catalog.Failf("default encryption algorithm is %s, want AES256", alg)
	}
	return nil
}
