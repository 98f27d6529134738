//go:build integration
// +build integration

package listing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/database"
	"bigpartner/internal/listing"
)

// setupPostgres starts a PostgreSQL container and returns a migrated connection
func setupPostgres(t *testing.T) *gorm.DB {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("bigpartner"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	conn, err := database.Open(&config.DatabaseConfig{URL: connStr})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	require.NoError(t, database.Migrate(conn))
	t.Cleanup(func() { _ = database.Close(conn) })
	return conn
}

func TestPostgresListing(t *testing.T) {
	db := setupPostgres(t)
	insert(t, db,
		seed{title: "Sea View", ptype: "Apartment", price: 4e7, amenities: []string{"Gym", "Pool"}},
		seed{title: "Orchard", ptype: "Agricultural", price: 9e6, amenities: []string{"Well"}},
		seed{title: "Tower", ptype: "office", price: 2e8, amenities: []string{"Gym"}},
		seed{title: "Hidden", ptype: "apartment", price: 1e7, deleted: true},
	)

	t.Run("jsonb amenity containment", func(t *testing.T) {
		page := find(t, db, "amenities=Gym,Pool", listing.Viewer{})
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Sea View", page.Items[0].Title)
	})

	t.Run("category and crore range", func(t *testing.T) {
		page := find(t, db, "category=residential&maxPrice=5&priceUnit=crore", listing.Viewer{})
		assert.EqualValues(t, 1, page.Total)
	})

	t.Run("farmland aliases", func(t *testing.T) {
		page := find(t, db, "category=farmland", listing.Viewer{})
		assert.EqualValues(t, 1, page.Total)
	})

	t.Run("price sorts reverse", func(t *testing.T) {
		low := ids(find(t, db, "sort=price-low", listing.Viewer{}))
		high := ids(find(t, db, "sort=price-high", listing.Viewer{}))
		require.Len(t, low, 3)
		assert.Equal(t, []uint{low[2], low[1], low[0]}, high)
	})

	t.Run("admin includeDeleted", func(t *testing.T) {
		page := find(t, db, "includeDeleted=true", listing.Viewer{UserID: 1, Admin: true})
		assert.EqualValues(t, 4, page.Total)
	})
}
