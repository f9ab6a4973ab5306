// Package catalog is the static registry of every known validation test.
//
// Tests are enumerated explicitly at startup; there is no directory scanning
// or reflection. Identifiers are numeric, unique across the whole catalog,
// and each category owns a fixed id range.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/endpoint"
	"github.com/kumasuke/s3ready/internal/isolation"
)

// Category groups tests by the S3 feature area they exercise.
type Category string

const (
	CategoryBasic       Category = "basic"
	CategoryMultipart   Category = "multipart"
	CategoryVersioning  Category = "versioning"
	CategoryACL         Category = "acl"
	CategoryEncryption  Category = "encryption"
	CategoryLifecycle   Category = "lifecycle"
	CategoryPerformance Category = "performance"
	CategoryStress      Category = "stress"
)

// Categories lists every category in declaration order. Selection across
// multiple categories follows this order, never interleaved.
var Categories = []Category{
	CategoryBasic,
	CategoryMultipart,
	CategoryVersioning,
	CategoryACL,
	CategoryEncryption,
	CategoryLifecycle,
	CategoryPerformance,
	CategoryStress,
}

// idRanges maps each category to its inclusive id range.
var idRanges = map[Category][2]int{
	CategoryBasic:       {1, 99},
	CategoryMultipart:   {100, 199},
	CategoryVersioning:  {200, 299},
	CategoryACL:         {300, 399},
	CategoryEncryption:  {400, 499},
	CategoryLifecycle:   {500, 599},
	CategoryPerformance: {600, 699},
	CategoryStress:      {700, 799},
}

// Tier is the criticality classification of a test.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// Body is an executable test. It signals an assertion failure by returning
// a *Failure; any other error is treated as an execution error and may be
// retried if transient. Bodies never touch state outside their namespace.
type Body func(ctx context.Context, client *s3.Client, cfg *config.RunConfig, ns *isolation.Namespace) error

// TestCase is one entry of the catalog.
type TestCase struct {
	ID       int
	Name     string
	Category Category
	Tier     Tier
	Requires []endpoint.Capability
	// Exclusive tests never run concurrently with other exclusive tests.
	Exclusive bool
	Run       Body
}

// Failure marks an assertion failure raised by a test body, as opposed to
// an error reaching the endpoint.
type Failure struct {
	Msg string
}

func (f *Failure) Error() string { return f.Msg }

// Failf builds an assertion failure.
func Failf(format string, args ...any) error {
	return &Failure{Msg: fmt.Sprintf(format, args...)}
}

// Catalog holds the registered tests.
type Catalog struct {
	cases map[int]TestCase
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{cases: make(map[int]TestCase)}
}

// Register adds a test case. Duplicate or out-of-range ids and nil bodies
// are registration errors.
func (c *Catalog) Register(tc TestCase) error {
	if tc.Run == nil {
		return fmt.Errorf("test %d has no body", tc.ID)
	}
	r, ok := idRanges[tc.Category]
	if !ok {
		return fmt.Errorf("test %d has unknown category %q", tc.ID, tc.Category)
	}
	if tc.ID < r[0] || tc.ID > r[1] {
		return fmt.Errorf("test %d is outside the %s id range %d-%d", tc.ID, tc.Category, r[0], r[1])
	}
	if _, exists := c.cases[tc.ID]; exists {
		return fmt.Errorf("test id %d registered twice", tc.ID)
	}
	c.cases[tc.ID] = tc
	return nil
}

// MustRegister is Register for init-time tables.
func (c *Catalog) MustRegister(tc TestCase) {
	if err := c.Register(tc); err != nil {
		panic(err)
	}
}

// Len returns the number of registered tests.
func (c *Catalog) Len() int { return len(c.cases) }

// Filter selects tests either by explicit ids or by a single category.
// The zero Filter selects everything.
type Filter struct {
	IDs      []int
	Category Category
}

// Select returns the matching tests in catalog order: category declaration
// order first, ascending id within each category. An unknown id or an empty
// selection is a configuration error.
func (c *Catalog) Select(f Filter) ([]TestCase, error) {
	if len(f.IDs) > 0 {
		seen := make(map[int]bool, len(f.IDs))
		var out []TestCase
		for _, id := range f.IDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			tc, ok := c.cases[id]
			if !ok {
				return nil, fmt.Errorf("unknown test id %d", id)
			}
			out = append(out, tc)
		}
		sortCatalogOrder(out)
		return out, nil
	}

	if f.Category != "" {
		if _, ok := idRanges[f.Category]; !ok {
			return nil, fmt.Errorf("unknown category %q", f.Category)
		}
	}

	var out []TestCase
	for _, tc := range c.cases {
		if f.Category == "" || tc.Category == f.Category {
			out = append(out, tc)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("selection matched no tests")
	}
	sortCatalogOrder(out)
	return out, nil
}

var categoryRank = func() map[Category]int {
	m := make(map[Category]int, len(Categories))
	for i, cat := range Categories {
		m[cat] = i
	}
	return m
}()

func sortCatalogOrder(cases []TestCase) {
	sort.Slice(cases, func(i, j int) bool {
		if cases[i].Category != cases[j].Category {
			return categoryRank[cases[i].Category] < categoryRank[cases[j].Category]
		}
		return cases[i].ID < cases[j].ID
	})
}
