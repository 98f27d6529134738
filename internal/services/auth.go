package services

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"goa.design/goa/v3/security"
	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	"bigpartner/internal/listing"
	"bigpartner/internal/metrics"
	"bigpartner/internal/util"
	apperrors "bigpartner/pkg/errors"
)

// Scopes understood by the JWT guard
const (
	ScopeAdmin = "admin"
	ScopeStaff = "staff"
)

// RegisterInput creates a site account
type RegisterInput struct {
	Username string  `json:"username" validate:"required,min=3,max=100"`
	Email    string  `json:"email" validate:"required,email,max=150"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	FullName *string `json:"fullName" validate:"omitempty,max=150"`
	Phone    *string `json:"phone" validate:"omitempty,min=7,max=20"`
}

// LoginInput accepts a username or an email address as identifier
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResetPasswordInput completes a password reset
type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// AuthResult is returned by login and register
type AuthResult struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	User        *domain.User `json:"user"`
}

// AuthService implements accounts, sessions and the JWT guard
type AuthService struct {
	db       *gorm.DB
	cfg      *config.AuthConfig
	notifier *Notifier
	limits   config.ListingConfig
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(db *gorm.DB, cfg *config.AuthConfig, notifier *Notifier, limits config.ListingConfig) *AuthService {
	return &AuthService{
		db:       db,
		cfg:      cfg,
		notifier: notifier,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// JWTAuth validates the bearer token, loads the user and checks the scheme's
// required scopes. The user is returned in the context.
func (s *AuthService) JWTAuth(ctx context.Context, token string, schema *security.JWTScheme) (context.Context, error) {
	claims, err := util.ValidateToken(s.cfg, token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	user, err := util.GetUserFromToken(s.db.WithContext(ctx), claims)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Unauthorized("user not found")
		}
		return nil, apperrors.Internal("failed to load user", err)
	}

	if !user.IsActive {
		return nil, apperrors.Unauthorized("user account is inactive")
	}

	if schema != nil {
		for _, scope := range schema.RequiredScopes {
			switch scope {
			case ScopeAdmin:
				err = util.RequireAdmin(user)
			case ScopeStaff:
				err = util.RequireStaff(user)
			}
			if err != nil {
				log.Printf("[AUTH] Access denied for user '%s': %v", user.Username, err)
				return nil, apperrors.Forbidden(err.Error())
			}
		}
	}

	return WithUser(ctx, user), nil
}

// Register creates a user account and sends the email confirmation link
func (s *AuthService) Register(ctx context.Context, in *RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = trimPtr(in.FullName)
	in.Phone = trimPtr(in.Phone)

	log.Printf("[AUTH] Register request: username=%s, email=%s", in.Username, in.Email)

	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("username = ? OR email = ?", in.Username, in.Email).
		Count(&count).Error; err != nil {
		return nil, apperrors.Internal("failed to check user", err)
	}
	if count > 0 {
		log.Printf("[AUTH] Register failed: username or email already registered")
		return nil, apperrors.Conflict("username or email already registered")
	}

	hashed, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	verify := util.NewOpaqueToken()
	user := domain.User{
		Username:               in.Username,
		Email:                  in.Email,
		HashedPassword:         hashed,
		FullName:               in.FullName,
		Phone:                  in.Phone,
		Role:                   domain.RoleUser,
		IsActive:               true,
		EmailVerificationToken: &verify,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.Conflict("username or email already registered")
		}
		log.Printf("[AUTH] Register failed: database error: %v", err)
		return nil, apperrors.Internal("failed to create user", err)
	}

	log.Printf("[AUTH] Register successful: username=%s, id=%d", user.Username, user.ID)
	metrics.RecordRegistration("user")
	s.notifier.EmailVerification(&user)
	return s.session(&user)
}

// Login checks the credentials and issues an access token
func (s *AuthService) Login(ctx context.Context, in *LoginInput) (*AuthResult, error) {
	identifier := strings.TrimSpace(in.Username)
	password := strings.TrimSpace(in.Password)

	log.Printf("[AUTH] Login attempt for user: %s", identifier)

	if identifier == "" || password == "" {
		metrics.RecordAuthAttempt(false)
		return nil, apperrors.Unauthorized("incorrect username or password")
	}

	var user domain.User
	query := s.db.WithContext(ctx)
	if strings.Contains(identifier, "@") {
		query = query.Where("email = ?", util.NormalizeIdentifier(identifier))
	} else {
		query = query.Where("username = ?", identifier)
	}
	if err := query.First(&user).Error; err != nil {
		metrics.RecordAuthAttempt(false)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[AUTH] Login failed: user '%s' not found", identifier)
			return nil, apperrors.Unauthorized("incorrect username or password")
		}
		log.Printf("[AUTH] Login failed: database error for user '%s': %v", identifier, err)
		return nil, apperrors.Internal("failed to load user", err)
	}

	if !util.CheckPasswordHash(password, user.HashedPassword) {
		log.Printf("[AUTH] Login failed: invalid password for user '%s'", identifier)
		metrics.RecordAuthAttempt(false)
		return nil, apperrors.Unauthorized("incorrect username or password")
	}

	if !user.IsActive {
		log.Printf("[AUTH] Login failed: user '%s' is inactive", identifier)
		metrics.RecordAuthAttempt(false)
		return nil, apperrors.Unauthorized("user account is inactive")
	}

	now := s.now()
	user.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("last_login", now).Error; err != nil {
		log.Printf("[AUTH] Failed to record last login for user '%s': %v", identifier, err)
	}

	res, err := s.session(&user)
	if err != nil {
		log.Printf("[AUTH] Login failed: token generation error for user '%s': %v", identifier, err)
		return nil, err
	}

	log.Printf("[AUTH] Login successful for user '%s' (id=%d, role=%s)", user.Username, user.ID, user.Role)
	metrics.RecordAuthAttempt(true)
	return res, nil
}

func (s *AuthService) session(user *domain.User) (*AuthResult, error) {
	token, err := util.GenerateToken(s.cfg, user)
	if err != nil {
		return nil, apperrors.Internal("failed to generate token", err)
	}
	return &AuthResult{AccessToken: token, TokenType: "bearer", User: user}, nil
}

// Me returns the authenticated user
func (s *AuthService) Me(ctx context.Context) (*domain.User, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[AUTH] Me request for user: %s (id=%d)", user.Username, user.ID)
	return user, nil
}

// VerifyEmail consumes an email confirmation token. Tokens are looked up in
// users, then investors, then partners.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.Validation("validation failed", map[string]string{"token": "is required"})
	}

	updates := map[string]interface{}{
		"email_verified":           true,
		"email_verification_token": nil,
	}
	for _, model := range []interface{}{&domain.User{}, &domain.Investor{}, &domain.Partner{}} {
		res := s.db.WithContext(ctx).Model(model).
			Where("email_verification_token = ?", token).
			Updates(updates)
		if res.Error != nil {
			log.Printf("[AUTH] VerifyEmail failed: database error: %v", res.Error)
			return apperrors.Internal("failed to verify email", res.Error)
		}
		if res.RowsAffected > 0 {
			log.Printf("[AUTH] VerifyEmail successful")
			return nil
		}
	}

	log.Printf("[AUTH] VerifyEmail failed: unknown token")
	return apperrors.BadRequest("invalid or expired verification token")
}

// ForgotPassword stores a reset token and emails it. The outcome is the same
// whether or not the address is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = util.NormalizeIdentifier(email)
	log.Printf("[AUTH] ForgotPassword request: email=%s", email)

	var user domain.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[AUTH] ForgotPassword: no user for email=%s", email)
			return nil
		}
		return apperrors.Internal("failed to load user", err)
	}
	if !user.IsActive {
		return nil
	}

	token := util.NewOpaqueToken()
	expiry := s.now().Add(s.cfg.ResetTokenTTL())
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"reset_token":        token,
		"reset_token_expiry": expiry,
	}).Error; err != nil {
		log.Printf("[AUTH] ForgotPassword failed: database error: %v", err)
		return apperrors.Internal("failed to store reset token", err)
	}

	s.notifier.PasswordReset(&user, token)
	return nil
}

// ResetPassword sets a new password using an unexpired reset token
func (s *AuthService) ResetPassword(ctx context.Context, in *ResetPasswordInput) error {
	in.Token = strings.TrimSpace(in.Token)
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}

	var user domain.User
	if err := s.db.WithContext(ctx).Where("reset_token = ?", in.Token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.BadRequest("invalid or expired reset token")
		}
		return apperrors.Internal("failed to load user", err)
	}
	if user.ResetTokenExpiry == nil || s.now().After(*user.ResetTokenExpiry) {
		log.Printf("[AUTH] ResetPassword failed: expired token for user id=%d", user.ID)
		return apperrors.BadRequest("invalid or expired reset token")
	}

	hashed, err := util.HashPassword(in.Password)
	if err != nil {
		return apperrors.Internal("failed to hash password", err)
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"hashed_password":    hashed,
		"reset_token":        nil,
		"reset_token_expiry": nil,
	}).Error; err != nil {
		log.Printf("[AUTH] ResetPassword failed: database error: %v", err)
		return apperrors.Internal("failed to update password", err)
	}

	log.Printf("[AUTH] ResetPassword successful for user id=%d", user.ID)
	return nil
}

// ListUsers returns accounts for admins, newest first
func (s *AuthService) ListUsers(ctx context.Context, q url.Values) (listing.Page[domain.User], error) {
	if _, err := requireAdmin(ctx); err != nil {
		return listing.Page[domain.User]{}, err
	}
	limit, offset, err := pageParams(q, s.limits)
	if err != nil {
		return listing.Page[domain.User]{}, err
	}

	query := s.db.WithContext(ctx).Model(&domain.User{})
	if role := q.Get("role"); role != "" {
		if !domain.ValidRole(role) {
			return listing.Page[domain.User]{}, apperrors.Validation("invalid query", map[string]string{
				"role": "must be one of user, staff, admin",
			})
		}
		query = query.Where("role = ?", role)
	}
	if v := strings.TrimSpace(q.Get("search")); v != "" {
		like := "%" + strings.ToLower(v) + "%"
		query = query.Where("(LOWER(username) LIKE ? OR LOWER(email) LIKE ?)", like, like)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return listing.Page[domain.User]{}, apperrors.Internal("failed to count users", err)
	}
	var users []domain.User
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		log.Printf("[AUTH] ListUsers failed: database error: %v", err)
		return listing.Page[domain.User]{}, apperrors.Internal("failed to list users", err)
	}

	log.Printf("[AUTH] ListUsers successful: returned %d users", len(users))
	return listing.NewPage(users, total, limit, offset), nil
}

// UpdateRole changes a user's role. Admins cannot change their own role.
func (s *AuthService) UpdateRole(ctx context.Context, id uint, role string) (*domain.User, error) {
	admin, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	role = strings.ToLower(strings.TrimSpace(role))
	log.Printf("[AUTH] UpdateRole request: id=%d, role=%s by user=%s", id, role, admin.Username)

	if !domain.ValidRole(role) {
		return nil, apperrors.Validation("validation failed", map[string]string{
			"role": "must be one of user, staff, admin",
		})
	}
	if id == admin.ID {
		return nil, apperrors.BadRequest("cannot change your own role")
	}

	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("role", role).Error; err != nil {
		log.Printf("[AUTH] UpdateRole failed: database error: %v", err)
		return nil, apperrors.Internal("failed to update user", err)
	}
	user.Role = role

	log.Printf("[AUTH] UpdateRole successful: id=%d, username=%s, role=%s", user.ID, user.Username, user.Role)
	return &user, nil
}

// CreateAdmin creates or promotes an administrator account
func (s *AuthService) CreateAdmin(ctx context.Context, username, email, password string) (*domain.User, error) {
	in := RegisterInput{Username: username, Email: email, Password: password}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(&in); err != nil {
		return nil, validationError(err)
	}

	hashed, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	var user domain.User
	err = s.db.WithContext(ctx).Where("username = ?", in.Username).First(&user).Error
	switch {
	case err == nil:
		if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
			"role":            domain.RoleAdmin,
			"is_active":       true,
			"hashed_password": hashed,
		}).Error; err != nil {
			return nil, apperrors.Internal("failed to promote user", err)
		}
		user.Role = domain.RoleAdmin
		user.IsActive = true
		log.Printf("[AUTH] Promoted existing user '%s' to admin", user.Username)
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.Internal("failed to load user", err)
	}

	user = domain.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hashed,
		Role:           domain.RoleAdmin,
		IsActive:       true,
		EmailVerified:  true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.Conflict("email already registered")
		}
		return nil, apperrors.Internal("failed to create admin", err)
	}
	log.Printf("[AUTH] Created admin user '%s' (id=%d)", user.Username, user.ID)
	return &user, nil
}
