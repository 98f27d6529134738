package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
)

func openTemp(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	return &config.DatabaseConfig{URL: "sqlite:///" + filepath.Join(t.TempDir(), "test.db")}
}

func TestOpenAndMigrate_Idempotent(t *testing.T) {
	cfg := openTemp(t)

	for i := 0; i < 2; i++ {
		conn, err := Open(cfg)
		require.NoError(t, err)
		require.NoError(t, Migrate(conn))
		require.NoError(t, HealthCheck(conn))
		require.NoError(t, Close(conn))
	}

	conn, err := Open(cfg)
	require.NoError(t, err)
	defer Close(conn)

	for _, table := range []string{"users", "partners", "investors", "properties", "inquiries", "favorites"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestFavoriteUniquePair(t *testing.T) {
	conn, err := Open(openTemp(t))
	require.NoError(t, err)
	defer Close(conn)
	require.NoError(t, Migrate(conn))

	user := domain.User{Username: "u", Email: "u@example.com", HashedPassword: "x"}
	require.NoError(t, conn.Create(&user).Error)
	prop := domain.Property{Slug: "p", Title: "P", PropertyType: "villa", City: "Pune", Price: 1, Area: 1}
	require.NoError(t, conn.Create(&prop).Error)

	require.NoError(t, conn.Create(&domain.Favorite{UserID: user.ID, PropertyID: prop.ID}).Error)
	assert.Error(t, conn.Create(&domain.Favorite{UserID: user.ID, PropertyID: prop.ID}).Error)
}

func TestGetStats(t *testing.T) {
	conn, err := Open(openTemp(t))
	require.NoError(t, err)
	defer Close(conn)

	stats, err := GetStats(conn)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)
}

func TestPurgeProperties(t *testing.T) {
	conn, err := Open(openTemp(t))
	require.NoError(t, err)
	defer Close(conn)
	require.NoError(t, Migrate(conn))

	user := domain.User{Username: "u", Email: "u@example.com", HashedPassword: "x"}
	require.NoError(t, conn.Create(&user).Error)
	keep := domain.Property{Slug: "keep", Title: "Keep", PropertyType: "villa", City: "Pune", Price: 1, Area: 1}
	gone := domain.Property{Slug: "gone", Title: "Gone", PropertyType: "villa", City: "Pune", Price: 1, Area: 1}
	require.NoError(t, conn.Create(&keep).Error)
	require.NoError(t, conn.Create(&gone).Error)
	require.NoError(t, conn.Create(&domain.Favorite{UserID: user.ID, PropertyID: keep.ID}).Error)
	require.NoError(t, conn.Create(&domain.Favorite{UserID: user.ID, PropertyID: gone.ID}).Error)

	purged, err := PurgeProperties(conn, []uint{gone.ID})
	require.NoError(t, err)
	require.Len(t, purged, 1)
	assert.Equal(t, "gone", purged[0].Slug)

	var props, favs int64
	conn.Model(&domain.Property{}).Count(&props)
	conn.Model(&domain.Favorite{}).Count(&favs)
	assert.Equal(t, int64(1), props)
	assert.Equal(t, int64(1), favs)

	purged, err = PurgeProperties(conn, nil)
	require.NoError(t, err)
	assert.Empty(t, purged)
}

func TestPurgeProperties_RechecksScope(t *testing.T) {
	conn, err := Open(openTemp(t))
	require.NoError(t, err)
	defer Close(conn)
	require.NoError(t, Migrate(conn))

	deletedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trashed := domain.Property{Slug: "trashed", Title: "T", PropertyType: "villa", City: "Pune", Price: 1, Area: 1,
		Deleted: true, DeletedAt: &deletedAt, Images: []string{"/uploads/a.jpg"}, FeaturedImage: "/uploads/a.jpg"}
	restored := domain.Property{Slug: "restored", Title: "R", PropertyType: "villa", City: "Pune", Price: 1, Area: 1}
	require.NoError(t, conn.Create(&trashed).Error)
	require.NoError(t, conn.Create(&restored).Error)

	// restored was collected while still in the trash
	inTrash := func(q *gorm.DB) *gorm.DB { return q.Where("deleted = ?", true) }
	purged, err := PurgeProperties(conn, []uint{trashed.ID, restored.ID}, inTrash)
	require.NoError(t, err)
	require.Len(t, purged, 1)
	assert.Equal(t, trashed.ID, purged[0].ID)
	assert.Equal(t, []string{"/uploads/a.jpg"}, purged[0].ImageURLs())

	var slugs []string
	conn.Model(&domain.Property{}).Pluck("slug", &slugs)
	assert.Equal(t, []string{"restored"}, slugs)
}
