package services

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/goa/v3/security"

	"bigpartner/internal/domain"
	"bigpartner/internal/util"
	apperrors "bigpartner/pkg/errors"
)

func newAuthService(f *fixture) *AuthService {
	s := NewAuthService(f.db, f.auth, f.notifier, testLimits)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	s := newAuthService(f)

	res, err := s.Register(context.Background(), &RegisterInput{
		Username: "priya",
		Email:    "Priya@Example.com",
		Password: "s3cretpass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, domain.RoleUser, res.User.Role)
	assert.False(t, res.User.EmailVerified)
	assert.Equal(t, []string{"priya@example.com"}, f.wait())

	_, err = s.Register(context.Background(), &RegisterInput{
		Username: "priya2",
		Email:    "priya@example.com",
		Password: "s3cretpass",
	})
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.CodeOf(err))

	for _, id := range []string{"priya", " PRIYA@example.com "} {
		got, err := s.Login(context.Background(), &LoginInput{Username: id, Password: "s3cretpass"})
		require.NoError(t, err, id)
		assert.Equal(t, res.User.ID, got.User.ID)
	}

	var stored domain.User
	require.NoError(t, f.db.First(&stored, res.User.ID).Error)
	require.NotNil(t, stored.LastLogin)

	_, err = s.Login(context.Background(), &LoginInput{Username: "priya", Password: "wrong-pass"})
	assert.True(t, apperrors.IsUnauthorized(err))
	_, err = s.Login(context.Background(), &LoginInput{Username: "nobody", Password: "s3cretpass"})
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestLogin_Inactive(t *testing.T) {
	f := newFixture(t)
	s := newAuthService(f)
	require.NoError(t, f.db.Model(f.other).Update("is_active", false).Error)

	_, err := s.Login(context.Background(), &LoginInput{Username: "other", Password: "password123"})
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestJWTAuth(t *testing.T) {
	f := newFixture(t)
	s := newAuthService(f)

	token := func(u *domain.User) string {
		tok, err := util.GenerateToken(f.auth, u)
		require.NoError(t, err)
		return tok
	}
	adminScheme := &security.JWTScheme{Name: "jwt", RequiredScopes: []string{ScopeAdmin}}
	staffScheme := &security.JWTScheme{Name: "jwt", RequiredScopes: []string{ScopeStaff}}

	ctx, err := s.JWTAuth(context.Background(), token(f.owner), &security.JWTScheme{Name: "jwt"})
	require.NoError(t, err)
	u, ok := UserFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, f.owner.ID, u.ID)

	_, err = s.JWTAuth(context.Background(), token(f.owner), staffScheme)
	assert.True(t, apperrors.IsForbidden(err))
	_, err = s.JWTAuth(context.Background(), token(f.staff), staffScheme)
	assert.NoError(t, err)
	_, err = s.JWTAuth(context.Background(), token(f.admin), staffScheme)
	assert.NoError(t, err)
	_, err = s.JWTAuth(context.Background(), token(f.staff), adminScheme)
	assert.True(t, apperrors.IsForbidden(err))

	_, err = s.JWTAuth(context.Background(), "garbage", adminScheme)
	assert.True(t, apperrors.IsUnauthorized(err))

	stale := token(f.other)
	require.NoError(t, f.db.Delete(f.other).Error)
	_, err = s.JWTAuth(context.Background(), stale, nil)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	s := newAuthService(f)

	require.NoError(t, s.ForgotPassword(context.Background(), "nobody@example.com"))
	require.NoError(t, s.ForgotPassword(context.Background(), "OWNER@example.com"))
	assert.Equal(t, []string{f.owner.Email}, f.wait())

	var stored domain.User
	require.NoError(t, f.db.First(&stored, f.owner.ID).Error)
	require.NotNil(t, stored.ResetToken)
	require.NotNil(t, stored.ResetTokenExpiry)
	assert.True(t, stored.ResetTokenExpiry.Equal(fixedNow.Add(30*time.Minute)))

	t.Run("expired token", func(t *testing.T) {
		s.now = func() time.Time { return fixedNow.Add(31 * time.Minute) }
		defer func() { s.now = func() time.Time { return fixedNow } }()

		err := s.ResetPassword(context.Background(), &ResetPasswordInput{Token: *stored.ResetToken, Password: "newpassword1"})
		assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.CodeOf(err))
	})

	t.Run("valid token is single use", func(t *testing.T) {
		in := &ResetPasswordInput{Token: *stored.ResetToken, Password: "newpassword1"}
		require.NoError(t, s.ResetPassword(context.Background(), in))

		_, err := s.Login(context.Background(), &LoginInput{Username: "owner", Password: "newpassword1"})
		require.NoError(t, err)

		err = s.ResetPassword(context.Background(), in)
		assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.CodeOf(err))
	})

	t.Run("short password", func(t *testing.T) {
		err := s.ResetPassword(context.Background(), &ResetPasswordInput{Token: "x", Password: "short"})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	s := newAuthService(f)

	res, err := s.Register(context.Background(), &RegisterInput{Username: "kiran", Email: "kiran@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	require.NotNil(t, res.User.EmailVerificationToken)
	require.NoError(t, s.VerifyEmail(context.Background(), *res.User.EmailVerificationToken))

	var user domain.User
	require.NoError(t, f.db.First(&user, res.User.ID).Error)
	assert.True(t, user.EmailVerified)
	assert.Nil(t, user.EmailVerificationToken)

	inv, err := newRegistrationService(f).RegisterInvestor(context.Background(), investorInput())
	require.NoError(t, err)
	require.NoError(t, s.VerifyEmail(context.Background(), *inv.EmailVerificationToken))

	var stored domain.Investor
	require.NoError(t, f.db.First(&stored, inv.ID).Error)
	assert.True(t, stored.EmailVerified)

	err = s.VerifyEmail(context.Background(), *inv.EmailVerificationToken)
	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.CodeOf(err))
}

func TestUsersAdministration(t *testing.T) {
	f := newFixture(t)
	s := newAuthService(f)

	page, err := s.ListUsers(f.as(f.admin), url.Values{"role": {"user"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	_, err = s.ListUsers(f.as(f.staff), url.Values{})
	assert.True(t, apperrors.IsForbidden(err))

	got, err := s.UpdateRole(f.as(f.admin), f.other.ID, " Staff ")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, got.Role)

	_, err = s.UpdateRole(f.as(f.admin), f.admin.ID, domain.RoleUser)
	assert.Equal(t, apperrors.ErrCodeBadRequest, apperrors.CodeOf(err))

	_, err = s.UpdateRole(f.as(f.admin), f.owner.ID, "superuser")
	assert.True(t, apperrors.IsValidation(err))

	_, err = s.UpdateRole(f.as(f.admin), 9999, domain.RoleUser)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateAdmin(t *testing.T) {
	f := newFixture(t)
	s := newAuthService(f)

	created, err := s.CreateAdmin(context.Background(), "root", "root@example.com", "rootpassword")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, created.Role)

	promoted, err := s.CreateAdmin(context.Background(), "owner", "owner@example.com", "ownerpassword")
	require.NoError(t, err)
	assert.Equal(t, f.owner.ID, promoted.ID)
	assert.Equal(t, domain.RoleAdmin, promoted.Role)

	_, err = s.Login(context.Background(), &LoginInput{Username: "owner", Password: "ownerpassword"})
	assert.NoError(t, err)
}
