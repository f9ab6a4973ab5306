// Package endpoint builds the S3 client for the target under validation,
// probes which optional features it supports, and maps vendor-specific
// errors onto a canonical taxonomy.
package endpoint

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kumasuke/s3ready/internal/config"
)

// NewClient builds an S3 client for the configured endpoint. The client is
// shared read-only across workers; nothing mutates it after construction.
func NewClient(ctx context.Context, cfg *config.RunConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Endpoint.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Endpoint.AccessKey,
			cfg.Endpoint.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint.URL)
		o.UsePathStyle = cfg.Endpoint.PathStyle
	})

	return client, nil
}

// CheckConnectivity verifies the endpoint answers at all before any test is
// dispatched. A failure here is fatal for the run.
func CheckConnectivity(ctx context.Context, client *s3.Client) error {
	if _, err := client.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		return fmt.Errorf("endpoint unreachable: %w", err)
	}
	return nil
}
