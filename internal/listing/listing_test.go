package listing_test

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	"bigpartner/internal/listing"
	"bigpartner/internal/testutil"
	apperrors "bigpartner/pkg/errors"
)

var limits = config.ListingConfig{DefaultLimit: 100, MaxLimit: 500}

type seed struct {
	title     string
	ptype     string
	price     float64
	area      float64
	approval  string
	deleted   bool
	createdBy *uint
	amenities []string
}

func insert(t *testing.T, db *gorm.DB, seeds ...seed) []domain.Property {
	t.Helper()
	out := make([]domain.Property, 0, len(seeds))
	for i, s := range seeds {
		p := domain.Property{
			Slug:           fmt.Sprintf("p-%d-%d", i, time.Now().UnixNano()),
			Title:          s.title,
			PropertyType:   s.ptype,
			City:           "Pune",
			Price:          s.price,
			Area:           s.area,
			ApprovalStatus: s.approval,
			CreatedBy:      s.createdBy,
			Amenities:      s.amenities,
		}
		if p.ApprovalStatus == "" {
			p.ApprovalStatus = domain.ApprovalApproved
		}
		if p.Area == 0 {
			p.Area = 1000
		}
		if s.deleted {
			p.SoftDelete(time.Now().UTC())
		}
		require.NoError(t, db.Create(&p).Error)
		out = append(out, p)
	}
	return out
}

func find(t *testing.T, db *gorm.DB, raw string, v listing.Viewer) listing.Page[domain.Property] {
	t.Helper()
	q, err := url.ParseQuery(raw)
	require.NoError(t, err)
	c, err := listing.Parse(q, limits)
	require.NoError(t, err)
	page, err := listing.Find(context.Background(), db, c, v)
	require.NoError(t, err)
	return page
}

func ids(page listing.Page[domain.Property]) []uint {
	out := make([]uint, len(page.Items))
	for i, p := range page.Items {
		out[i] = p.ID
	}
	return out
}

func TestDefaultListingHidesDeletedAndUnapproved(t *testing.T) {
	db := testutil.NewDB(t)
	insert(t, db,
		seed{title: "Live", ptype: "apartment", price: 10},
		seed{title: "Gone", ptype: "apartment", price: 10, deleted: true},
		seed{title: "Waiting", ptype: "apartment", price: 10, approval: domain.ApprovalPending},
		seed{title: "Refused", ptype: "apartment", price: 10, approval: domain.ApprovalRejected},
	)

	page := find(t, db, "", listing.Viewer{})
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Live", page.Items[0].Title)
	assert.EqualValues(t, 1, page.Total)

	t.Run("anonymous includeDeleted is clamped", func(t *testing.T) {
		page := find(t, db, "includeDeleted=true&approvalStatus=all", listing.Viewer{})
		assert.EqualValues(t, 1, page.Total)
	})

	t.Run("admin includeDeleted adds deleted records", func(t *testing.T) {
		page := find(t, db, "includeDeleted=true", listing.Viewer{UserID: 1, Admin: true})
		assert.EqualValues(t, 2, page.Total)
	})

	t.Run("admin sees every state", func(t *testing.T) {
		page := find(t, db, "includeDeleted=true&approvalStatus=all", listing.Viewer{UserID: 1, Admin: true})
		assert.EqualValues(t, 4, page.Total)
	})

	t.Run("admin pending queue", func(t *testing.T) {
		page := find(t, db, "approvalStatus=pending", listing.Viewer{UserID: 1, Admin: true})
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Waiting", page.Items[0].Title)
	})
}

func TestOwnerSeesOwnUnapproved(t *testing.T) {
	db := testutil.NewDB(t)
	owner, other := uint(7), uint(8)
	insert(t, db,
		seed{title: "Mine pending", ptype: "villa", price: 1, approval: domain.ApprovalPending, createdBy: &owner},
		seed{title: "Mine live", ptype: "villa", price: 1, createdBy: &owner},
		seed{title: "Theirs pending", ptype: "villa", price: 1, approval: domain.ApprovalPending, createdBy: &other},
	)

	page := find(t, db, "createdBy=me", listing.Viewer{UserID: owner})
	assert.EqualValues(t, 2, page.Total)
	for _, p := range page.Items {
		assert.True(t, p.IsOwnedBy(owner))
	}

	page = find(t, db, fmt.Sprintf("createdBy=%d&approvalStatus=all", other), listing.Viewer{UserID: owner})
	assert.EqualValues(t, 0, page.Total, "another user's pending listing must stay hidden")
}

func TestCategoryWhitelist(t *testing.T) {
	db := testutil.NewDB(t)
	insert(t, db,
		seed{title: "a", ptype: "farmland", price: 1},
		seed{title: "b", ptype: "Farmland", price: 1},
		seed{title: "c", ptype: "Agricultural", price: 1},
		seed{title: "d", ptype: "agricultural", price: 1},
		seed{title: "e", ptype: "farmhouse", price: 1},
		seed{title: "f", ptype: "apartment", price: 1},
		seed{title: "g", ptype: "farmland", price: 1, deleted: true},
	)

	page := find(t, db, "category=farmland", listing.Viewer{})
	assert.EqualValues(t, 4, page.Total)
	for _, p := range page.Items {
		assert.Contains(t, []string{"farmland", "Farmland", "Agricultural", "agricultural"}, p.PropertyType)
	}

	page = find(t, db, "category=Residential", listing.Viewer{})
	assert.EqualValues(t, 1, page.Total)
}

func TestPriceSortsAreExactReverses(t *testing.T) {
	db := testutil.NewDB(t)
	insert(t, db,
		seed{title: "a", ptype: "plot", price: 300},
		seed{title: "b", ptype: "plot", price: 100},
		seed{title: "c", ptype: "plot", price: 200},
		seed{title: "d", ptype: "plot", price: 100},
		seed{title: "e", ptype: "plot", price: 300},
	)

	low := ids(find(t, db, "sort=price-low", listing.Viewer{}))
	high := ids(find(t, db, "sort=price-high", listing.Viewer{}))
	require.Len(t, low, 5)

	reversed := make([]uint, len(high))
	for i, id := range high {
		reversed[len(high)-1-i] = id
	}
	assert.Equal(t, low, reversed)

	page := find(t, db, "sort=price-low", listing.Viewer{})
	for i := 1; i < len(page.Items); i++ {
		assert.LessOrEqual(t, page.Items[i-1].Price, page.Items[i].Price)
	}
}

func TestNewestIsIDDescending(t *testing.T) {
	db := testutil.NewDB(t)
	rows := insert(t, db,
		seed{title: "first", ptype: "plot", price: 1},
		seed{title: "second", ptype: "plot", price: 1},
	)
	got := ids(find(t, db, "", listing.Viewer{}))
	assert.Equal(t, []uint{rows[1].ID, rows[0].ID}, got)
}

func TestResidentialUnderFiveCrore(t *testing.T) {
	db := testutil.NewDB(t)
	insert(t, db,
		seed{title: "flat", ptype: "apartment", price: 4.5e7},
		seed{title: "edge", ptype: "Villa", price: 5e7},
		seed{title: "mansion", ptype: "villa", price: 6e7},
		seed{title: "shop", ptype: "shop", price: 1e6},
	)

	page := find(t, db, "category=residential&minPrice=0&maxPrice=5&priceUnit=crore", listing.Viewer{})
	assert.EqualValues(t, 2, page.Total)
	for _, p := range page.Items {
		assert.LessOrEqual(t, p.Price, 5e7)
		assert.GreaterOrEqual(t, p.Price, 0.0)
	}
}

func TestTypeFacetIsOrAmenitiesAreAnd(t *testing.T) {
	db := testutil.NewDB(t)
	insert(t, db,
		seed{title: "both", ptype: "apartment", price: 1, amenities: []string{"Gym", "Pool", "Lift"}},
		seed{title: "gym only", ptype: "villa", price: 1, amenities: []string{"Gym"}},
		seed{title: "none", ptype: "plot", price: 1},
	)

	page := find(t, db, "type=apartment,villa", listing.Viewer{})
	assert.EqualValues(t, 2, page.Total)

	page = find(t, db, "amenities=Gym", listing.Viewer{})
	assert.EqualValues(t, 2, page.Total)

	page = find(t, db, "amenities=Gym,Pool", listing.Viewer{})
	require.Len(t, page.Items, 1)
	assert.Equal(t, "both", page.Items[0].Title)
}

func TestPaginationReportsFilteredTotal(t *testing.T) {
	db := testutil.NewDB(t)
	for i := 0; i < 5; i++ {
		insert(t, db, seed{title: fmt.Sprintf("p%d", i), ptype: "plot", price: float64(i)})
	}

	page := find(t, db, "limit=2&page=2&sort=price-low", listing.Viewer{})
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 2, page.Offset)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 2.0, page.Items[0].Price)
}

func TestSearchMatchesTitleCaseInsensitively(t *testing.T) {
	db := testutil.NewDB(t)
	insert(t, db,
		seed{title: "Sea View Apartment", ptype: "apartment", price: 1},
		seed{title: "Hill Plot", ptype: "plot", price: 1},
	)
	page := find(t, db, "search=sea+view", listing.Viewer{})
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Sea View Apartment", page.Items[0].Title)
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	db := testutil.NewDB(t)
	insert(t, db,
		seed{title: "100% Vastu Villa", ptype: "villa", price: 1},
		seed{title: "Plot_7 Hinjewadi", ptype: "plot", price: 1},
		seed{title: "Garden Flat", ptype: "apartment", price: 1},
	)

	page := find(t, db, "search=%25", listing.Viewer{})
	require.Len(t, page.Items, 1)
	assert.Equal(t, "100% Vastu Villa", page.Items[0].Title)

	page = find(t, db, "search=_", listing.Viewer{})
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Plot_7 Hinjewadi", page.Items[0].Title)

	assert.Empty(t, find(t, db, "search=%5C", listing.Viewer{}).Items)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, `%sea view%`, listing.ContainsPattern("Sea View"))
	assert.Equal(t, `%50\% off\_x\\%`, listing.ContainsPattern(`50% OFF_x\`))
}

func TestParse(t *testing.T) {
	t.Run("limit is capped", func(t *testing.T) {
		c, err := listing.Parse(url.Values{"limit": {"10000"}}, limits)
		require.NoError(t, err)
		assert.Equal(t, 500, c.Limit)
	})

	t.Run("defaults", func(t *testing.T) {
		c, err := listing.Parse(url.Values{}, limits)
		require.NoError(t, err)
		assert.Equal(t, 100, c.Limit)
		assert.Equal(t, 0, c.Offset)
		assert.Equal(t, listing.SortNewest, c.Sort)
	})

	t.Run("lakh multiplier", func(t *testing.T) {
		c, err := listing.Parse(url.Values{"minPrice": {"50"}, "priceUnit": {"lakh"}}, limits)
		require.NoError(t, err)
		require.NotNil(t, c.MinPrice)
		assert.Equal(t, 5e6, *c.MinPrice)
	})

	t.Run("malformed values are reported per field", func(t *testing.T) {
		_, err := listing.Parse(url.Values{
			"minPrice": {"cheap"},
			"sort":     {"random"},
			"category": {"castle"},
			"featured": {"maybe"},
		}, limits)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Contains(t, appErr.Fields, "minPrice")
		assert.Contains(t, appErr.Fields, "sort")
		assert.Contains(t, appErr.Fields, "category")
		assert.Contains(t, appErr.Fields, "featured")
	})

	t.Run("inverted price range", func(t *testing.T) {
		_, err := listing.Parse(url.Values{"minPrice": {"10"}, "maxPrice": {"5"}}, limits)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestCategoriesReturnsCopy(t *testing.T) {
	cats := listing.Categories()
	require.NotEmpty(t, cats)
	cats[0].Types[0] = "mutated"

	again, ok := listing.LookupCategory(cats[0].Name)
	require.True(t, ok)
	assert.NotEqual(t, "mutated", again.Types[0])
}
