package catalog

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/isolation"
)

func noopBody(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error {
	return nil
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := New()
	for _, tc := range []TestCase{
		{ID: 4, Name: "b", Category: CategoryBasic, Tier: TierCritical, Run: noopBody},
		{ID: 1, Name: "a", Category: CategoryBasic, Tier: TierCritical, Run: noopBody},
		{ID: 100, Name: "m", Category: CategoryMultipart, Tier: TierCritical, Run: noopBody},
		{ID: 600, Name: "p", Category: CategoryPerformance, Tier: TierMedium, Run: noopBody},
	} {
		require.NoError(t, c.Register(tc))
	}
	return c
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	c := newTestCatalog(t)

	err := c.Register(TestCase{ID: 1, Name: "dup", Category: CategoryBasic, Run: noopBody})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")
}

func TestRegisterRejectsOutOfRangeID(t *testing.T) {
	c := New()

	err := c.Register(TestCase{ID: 250, Name: "x", Category: CategoryBasic, Run: noopBody})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id range")
}

func TestRegisterRejectsMissingBody(t *testing.T) {
	c := New()

	err := c.Register(TestCase{ID: 1, Name: "x", Category: CategoryBasic})
	require.Error(t, err)
}

func TestSelectAllFollowsCatalogOrder(t *testing.T) {
	c := newTestCatalog(t)

	selected, err := c.Select(Filter{})
	require.NoError(t, err)

	var ids []int
	for _, tc := range selected {
		ids = append(ids, tc.ID)
	}
	// Ascending ids within a category, categories in declaration order.
	assert.Equal(t, []int{1, 4, 100, 600}, ids)
}

func TestSelectByCategory(t *testing.T) {
	c := newTestCatalog(t)

	selected, err := c.Select(Filter{Category: CategoryBasic})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, 1, selected[0].ID)
	assert.Equal(t, 4, selected[1].ID)
}

func TestSelectByIDs(t *testing.T) {
	c := newTestCatalog(t)

	selected, err := c.Select(Filter{IDs: []int{600, 1, 1}})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, 1, selected[0].ID)
	assert.Equal(t, 600, selected[1].ID)
}

func TestSelectUnknownIDFails(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Select(Filter{IDs: []int{999}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown test id 999")
}

func TestSelectUnknownCategoryFails(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Select(Filter{Category: "blockchain"})
	require.Error(t, err)
}

func TestSelectEmptyResultFails(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Select(Filter{Category: CategoryStress})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched no tests")
}
