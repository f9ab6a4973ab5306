package checks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/endpoint"
	"github.com/kumasuke/s3ready/internal/isolation"
)

func registerLifecycle(c *catalog.Catalog) {
	c.MustRegister(catalog.TestCase{
		ID: 500, Name: "lifecycle-expiration-rule", Category: catalog.CategoryLifecycle,
		Tier: catalog.TierMedium, Requires: []endpoint.Capability{endpoint.CapLifecycle},
		Run: checkLifecycleExpirationRule,
	})
}

func checkLifecycleExpirationRule(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("lc")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	if _, err := client.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(bucket),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: []types.LifecycleRule{{
				ID:         aws.String("expire-tmp"),
				Status:     types.ExpirationStatusEnabled,
				Filter:     &types.LifecycleRuleFilter{Prefix: aws.String("tmp/")},
				Expiration: &types.LifecycleExpiration{Days: aws.Int32(7)},
			}},
		},
	}); err != nil {
		return err
	}

	out, err := client.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return err
	}
	if len(out.Rules) != 1 {
		return catalog.Failf("expected 1 lifecycle rule, got %d", len(out.Rules))
	}
	rule := out.Rules[0]
	if aws.ToString(rule.ID) != "expire-tmp" {
		return catalog.Failf("lifecycle rule id mismatch: %s", aws.ToString(rule.ID))
	}
	if rule.Expiration == nil || aws.ToInt32(rule.Expiration.Days) != 7 {
		return catalog.Failf("lifecycle expiration days not preserved")
	}

	if _, err := client.DeleteBucketLifecycle(ctx, &s3.DeleteBucketLifecycleInput{
		Bucket: aws.String(bucket),
	}); err != nil {
		return err
	}
	return nil
}
