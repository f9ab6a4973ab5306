package endpoint

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// Capability names an optional S3 feature a test may require.
type Capability string

const (
	CapVersioning Capability = "versioning"
	CapObjectLock Capability = "object-lock"
	CapEncryption Capability = "encryption"
	CapLifecycle  Capability = "lifecycle"
	CapTagging    Capability = "tagging"
	CapACL        Capability = "acl"
	CapMultipart  Capability = "multipart"
)

// Capabilities is the probed feature set of an endpoint.
type Capabilities map[Capability]bool

// Supports reports whether every given capability is supported.
func (c Capabilities) Supports(caps ...Capability) bool {
	for _, want := range caps {
		if !c[want] {
			return false
		}
	}
	return true
}

// Supported returns the sorted list of supported capability names.
func (c Capabilities) Supported() []string {
	var out []string
	for name, ok := range c {
		if ok {
			out = append(out, string(name))
		}
	}
	sort.Strings(out)
	return out
}

// Probe determines which optional features the endpoint supports by running
// each feature operation once against a scratch bucket. It runs once per run
// and the result is cached by the caller. A connectivity failure is fatal;
// any other failure of a feature operation marks that feature unsupported.
func Probe(ctx context.Context, client *s3.Client, bucketPrefix string) (Capabilities, error) {
	scratch := fmt.Sprintf("%s-probe-%s", bucketPrefix, randomHex(6))

	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(scratch)}); err != nil {
		if kind := Classify(err); kind == KindConnectivity || kind == KindTimeout {
			return nil, fmt.Errorf("capability probe could not reach endpoint: %w", err)
		}
		return nil, fmt.Errorf("capability probe could not create scratch bucket: %w", err)
	}
	defer func() {
		if _, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(scratch)}); err != nil {
			log.Warn().Err(err).Str("bucket", scratch).Msg("Failed to delete probe bucket")
		}
	}()

	caps := Capabilities{}

	_, err := client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(scratch),
		VersioningConfiguration: &types.VersioningConfiguration{
			Status: types.BucketVersioningStatusEnabled,
		},
	})
	caps[CapVersioning] = err == nil

	_, err = client.GetObjectLockConfiguration(ctx, &s3.GetObjectLockConfigurationInput{
		Bucket: aws.String(scratch),
	})
	// A lock-aware endpoint answers with "no configuration" rather than
	// rejecting the call outright.
	caps[CapObjectLock] = err == nil || Classify(err) == KindNotFound

	_, err = client.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
		Bucket: aws.String(scratch),
		ServerSideEncryptionConfiguration: &types.ServerSideEncryptionConfiguration{
			Rules: []types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &types.ServerSideEncryptionByDefault{
					SSEAlgorithm: types.ServerSideEncryptionAes256,
				},
			}},
		},
	})
	caps[CapEncryption] = err == nil

	_, err = client.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(scratch),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: []types.LifecycleRule{{
				ID:         aws.String("probe"),
				Status:     types.ExpirationStatusEnabled,
				Filter:     &types.LifecycleRuleFilter{Prefix: aws.String("probe/")},
				Expiration: &types.LifecycleExpiration{Days: aws.Int32(1)},
			}},
		},
	})
	caps[CapLifecycle] = err == nil

	_, err = client.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket: aws.String(scratch),
		Tagging: &types.Tagging{
			TagSet: []types.Tag{{Key: aws.String("probe"), Value: aws.String("true")}},
		},
	})
	caps[CapTagging] = err == nil

	_, err = client.PutBucketAcl(ctx, &s3.PutBucketAclInput{
		Bucket: aws.String(scratch),
		ACL:    types.BucketCannedACLPrivate,
	})
	caps[CapACL] = err == nil

	mpu, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(scratch),
		Key:    aws.String("probe-multipart"),
	})
	caps[CapMultipart] = err == nil
	if err == nil {
		_, _ = client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(scratch),
			Key:      aws.String("probe-multipart"),
			UploadId: mpu.UploadId,
		})
	}

	log.Info().Strs("supported", caps.Supported()).Msg("Capability probe complete")
	return caps, nil
}

func randomHex(n int) string {
	b := make([]byte, n/2+1)
	rand.Read(b)
	return hex.EncodeToString(b)[:n]
}
