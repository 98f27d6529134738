package util

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	"bigpartner/internal/testutil"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		SecretKey:          "0123456789abcdef0123456789abcdef",
		TokenExpiryMinutes: 5,
		Algorithm:          "HS256",
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testAuthConfig()
	user := &domain.User{ID: 42, Username: "asha", Role: domain.RoleAdmin}

	token, err := GenerateToken(cfg, user)
	require.NoError(t, err)

	claims, err := ValidateToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "asha", claims.Username)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestValidateToken_Rejects(t *testing.T) {
	cfg := testAuthConfig()

	_, err := ValidateToken(cfg, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := *cfg
	other.SecretKey = "ffffffffffffffffffffffffffffffff"
	token, err := GenerateToken(&other, &domain.User{Username: "x"})
	require.NoError(t, err)
	_, err = ValidateToken(cfg, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: "x",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte(cfg.SecretKey))
	require.NoError(t, err)
	_, err = ValidateToken(cfg, signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestRequireRoles(t *testing.T) {
	admin := &domain.User{Role: domain.RoleAdmin}
	staff := &domain.User{Role: domain.RoleStaff}
	user := &domain.User{Role: domain.RoleUser}

	assert.NoError(t, RequireAdmin(admin))
	assert.Error(t, RequireAdmin(staff))
	assert.NoError(t, RequireStaff(staff))
	assert.NoError(t, RequireStaff(admin))
	assert.Error(t, RequireStaff(user))
	assert.Error(t, RequireAdmin(nil))
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"3 BHK Apartment in Whitefield": "3-bhk-apartment-in-whitefield",
		"  Café   Résidence!! ":         "cafe-residence",
		"---":                           "property",
		"Plot #42 / Sector 7":           "plot-42-sector-7",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in, 0), in)
	}
	assert.Equal(t, "abc", Slugify("abc-def", 4))
}

func TestUniqueSlug(t *testing.T) {
	db := testutil.NewDB(t)
	insert := func(slug string) {
		t.Helper()
		require.NoError(t, db.Create(&domain.Property{
			Slug: slug, Title: "x", PropertyType: "plot", City: "Pune", Price: 1, Area: 1,
		}).Error)
	}

	slug, err := UniqueSlug(db, "properties", "slug", "Sea View")
	require.NoError(t, err)
	assert.Equal(t, "sea-view", slug)

	insert("sea-view")
	insert("sea-view-2")
	slug, err = UniqueSlug(db, "properties", "slug", "Sea View")
	require.NoError(t, err)
	assert.Equal(t, "sea-view-3", slug)

	t.Run("shortened candidates are checked", func(t *testing.T) {
		long := strings.Repeat("a", DefaultSlugMaxLen)
		insert(long)
		insert(strings.Repeat("a", DefaultSlugMaxLen-2) + "-2")

		slug, err := UniqueSlug(db, "properties", "slug", long)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("a", DefaultSlugMaxLen-2)+"-3", slug)
		assert.LessOrEqual(t, len(slug), DefaultSlugMaxLen)
	})
}

func TestOpaqueTokenAndIdentifier(t *testing.T) {
	a, b := NewOpaqueToken(), NewOpaqueToken()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)

	assert.Equal(t, "asha@example.com", NormalizeIdentifier("  Asha@Example.com "))
	assert.Equal(t, "919876543210", NormalizeIdentifier("+91 98765-43210"))
}
