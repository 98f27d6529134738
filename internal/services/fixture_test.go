package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	"bigpartner/internal/testutil"
	"bigpartner/internal/util"
)

type sentMail struct {
	to, subject, text string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) SendHTMLEmail(to, subject, htmlBody, textBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, text: textBody})
	return nil
}

func (m *fakeMailer) IsEnabled() bool { return true }

func (m *fakeMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.to
	}
	return out
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

var testLimits = config.ListingConfig{DefaultLimit: 20, MaxLimit: 100}

type fixture struct {
	db       *gorm.DB
	mailer   *fakeMailer
	notifier *Notifier
	auth     *config.AuthConfig

	admin, staff, owner, other *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mailer := &fakeMailer{}
	f := &fixture{
		db:     testutil.NewDB(t),
		mailer: mailer,
		notifier: NewNotifier(mailer, config.NotifyConfig{
			AdminEmail: "admin-alerts@example.com",
			SiteURL:    "https://bigpartner.test",
		}),
		auth: &config.AuthConfig{
			SecretKey:          "test-secret-key-that-is-long-enough-0123",
			TokenExpiryMinutes: 60,
			ResetTokenMinutes:  30,
		},
	}
	f.admin = f.user(t, "admin", domain.RoleAdmin)
	f.staff = f.user(t, "staff", domain.RoleStaff)
	f.owner = f.user(t, "owner", domain.RoleUser)
	f.other = f.user(t, "other", domain.RoleUser)
	return f
}

func (f *fixture) user(t *testing.T, name, role string) *domain.User {
	t.Helper()
	hash, err := util.HashPassword("password123")
	require.NoError(t, err)
	u := &domain.User{
		Username:       name,
		Email:          name + "@example.com",
		HashedPassword: hash,
		Role:           role,
		IsActive:       true,
	}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) as(u *domain.User) context.Context {
	return WithUser(context.Background(), u)
}

// wait drains background notifications
func (f *fixture) wait() []string {
	f.notifier.Wait()
	return f.mailer.recipients()
}

func (f *fixture) property(t *testing.T, owner *domain.User, mutate ...func(*domain.Property)) *domain.Property {
	t.Helper()
	p := &domain.Property{
		Slug:           "listing-" + time.Now().Format("150405.000000000"),
		Title:          "Listing",
		PropertyType:   "apartment",
		City:           "Pune",
		Price:          5_000_000,
		Area:           1000,
		ApprovalStatus: domain.ApprovalApproved,
		CreatedBy:      &owner.ID,
		OwnerEmail:     owner.Email,
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) reload(t *testing.T, p *domain.Property) *domain.Property {
	t.Helper()
	var out domain.Property
	require.NoError(t, f.db.First(&out, p.ID).Error)
	return &out
}

func num(v float64) *Number {
	n := Number(v)
	return &n
}

func str(s string) *string { return &s }
