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

func registerACL(c *catalog.Catalog) {
	c.MustRegister(catalog.TestCase{
		ID: 300, Name: "bucket-acl-roundtrip", Category: catalog.CategoryACL,
		Tier: catalog.TierMedium, Requires: []endpoint.Capability{endpoint.CapACL},
		Run: checkBucketACLRoundtrip,
	})
}

func checkBucketACLRoundtrip(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("acl")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	if _, err := client.PutBucketAcl(ctx, &s3.PutBucketAclInput{
		Bucket: aws.String(bucket),
		ACL:    types.BucketCannedACLPrivate,
	}); err != nil {
		return err
	}

	out, err := client.GetBucketAcl(ctx, &s3.GetBucketAclInput{Bucket: aws.String(bucket)})
	if err != nil {
		return err
	}
	if out.Owner == nil {
		return catalog.Failf("acl response has no owner")
	}
	if len(out.Grants) == 0 {
		return catalog.Failf("private bucket acl has no grants at all")
	}
	for _, g := range out.Grants {
		if g.Grantee != nil && g.Grantee.Type == types.TypeGroup {
			return catalog.Failf("private bucket acl grants access to group %s", aws.ToString(g.Grantee.URI))
		}
	}
	return nil
}
