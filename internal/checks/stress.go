package checks

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/isolation"
)

func registerStress(c *catalog.Catalog) {
	// Exclusive: saturates the endpoint's connection capacity, so it must
	// not overlap with other load-generating tests.
	c.MustRegister(catalog.TestCase{
		ID: 700, Name: "concurrent-writers", Category: catalog.CategoryStress,
		Tier: catalog.TierLow, Exclusive: true, Run: checkConcurrentWriters,
	})
}

func checkConcurrentWriters(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	bucket := ns.BucketName("stress")
	if err := createBucket(ctx, client, bucket); err != nil {
		return err
	}

	const writers = 16
	const perWriter = 8

	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			data := randomData(8 * 1024)
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("w%02d/obj-%03d", w, i)
				if err := putObject(ctx, client, bucket, key, data); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return err
	}

	var count int
	var token *string
	for {
		out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return err
		}
		count += len(out.Contents)
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	if count != writers*perWriter {
		return catalog.Failf("wrote %d objects concurrently, listing found %d", writers*perWriter, count)
	}
	return nil
}
