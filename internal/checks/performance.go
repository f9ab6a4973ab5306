package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/isolation"
)

func registerPerformance(c *catalog.Catalog) {
	c.MustRegister(catalog.TestCase{
		ID: 600, Name: "sequential-put-get-latency", Category: catalog.CategoryPerformance,
		Tier: catalog.TierMedium, Run: checkSequentialPutGetLatency,
	})
}

// Writes and reads a run of small objects and fails when latency degrades
// past an order of magnitude over what any production endpoint sustains.
func checkSequentialPutGetLatency(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("perf")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	const objects = 20
	data := randomData(16 * 1024)

	start := time.Now()
	for i := 0; i < objects; i++ {
		if err := putObject(ctx, client, bucket, fmt.Sprintf("perf-%03d", i), data); err != nil {
			return err
		}
	}
	for i := 0; i < objects; i++ {
		if _, err := getObject(ctx, client, bucket, fmt.Sprintf("perf-%03d", i)); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	avg := elapsed / (2 * objects)
	if avg > time.Second {
		return catalog.Failf("average operation latency %s exceeds 1s", avg)
	}
	return nil
}
