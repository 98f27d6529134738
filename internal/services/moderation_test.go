package services

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigpartner/internal/domain"
	apperrors "bigpartner/pkg/errors"
)

func newModerationService(f *fixture) *ModerationService {
	s := NewModerationService(f.db, f.notifier, testLimits)
	s.now = func() time.Time { return fixedNow }
	return s
}

func pendingProperty(p *domain.Property) { p.ApprovalStatus = domain.ApprovalPending }

func TestApprove(t *testing.T) {
	f := newFixture(t)
	s := newModerationService(f)
	p := f.property(t, f.owner, pendingProperty)

	got, err := s.Approve(f.as(f.admin), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, got.ApprovalStatus)

	stored := f.reload(t, p)
	require.NotNil(t, stored.PublishedAt)
	assert.True(t, stored.PublishedAt.Equal(fixedNow))
	require.NotNil(t, stored.ModeratedBy)
	assert.Equal(t, f.admin.ID, *stored.ModeratedBy)

	// a second approval keeps the first publish date and sends nothing
	s.now = func() time.Time { return fixedNow.Add(time.Hour) }
	_, err = s.Approve(f.as(f.admin), p.ID)
	require.NoError(t, err)
	assert.True(t, f.reload(t, p).PublishedAt.Equal(fixedNow))

	assert.Equal(t, []string{f.owner.Email}, f.wait())
}

func TestApprove_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	s := newModerationService(f)
	p := f.property(t, f.owner, pendingProperty)

	_, err := s.Approve(f.as(f.staff), p.ID)
	assert.True(t, apperrors.IsForbidden(err))

	_, err = s.Approve(f.as(f.owner), p.ID)
	assert.True(t, apperrors.IsForbidden(err))

	assert.Equal(t, domain.ApprovalPending, f.reload(t, p).ApprovalStatus)
}

func TestApprove_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := newModerationService(f).Approve(f.as(f.admin), 9999)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	s := newModerationService(f)
	p := f.property(t, f.owner, pendingProperty)

	t.Run("blank reason writes nothing", func(t *testing.T) {
		_, err := s.Reject(f.as(f.admin), p.ID, "   ")
		require.True(t, apperrors.IsValidation(err))

		stored := f.reload(t, p)
		assert.Equal(t, domain.ApprovalPending, stored.ApprovalStatus)
		assert.Nil(t, stored.ModeratedBy)
	})

	t.Run("reason is stored", func(t *testing.T) {
		got, err := s.Reject(f.as(f.admin), p.ID, "  Photos are blurry ")
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalRejected, got.ApprovalStatus)

		stored := f.reload(t, p)
		require.NotNil(t, stored.RejectionReason)
		assert.Equal(t, "Photos are blurry", *stored.RejectionReason)
		assert.Contains(t, f.wait(), f.owner.Email)
	})
}

func TestSetFlags(t *testing.T) {
	f := newFixture(t)
	s := newModerationService(f)
	p := f.property(t, f.owner)

	got, err := s.SetFeatured(f.as(f.admin), p.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsFeatured)

	_, err = s.SetVerified(f.as(f.admin), p.ID, true)
	require.NoError(t, err)

	stored := f.reload(t, p)
	assert.True(t, stored.IsFeatured)
	assert.True(t, stored.IsVerified)

	_, err = s.SetFeatured(f.as(f.owner), p.ID, false)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestPendingQueue_OldestFirst(t *testing.T) {
	f := newFixture(t)
	s := newModerationService(f)

	older := f.property(t, f.owner, pendingProperty, func(p *domain.Property) {
		p.CreatedAt = fixedNow.Add(-48 * time.Hour)
	})
	newer := f.property(t, f.other, pendingProperty, func(p *domain.Property) {
		p.CreatedAt = fixedNow.Add(-time.Hour)
	})
	f.property(t, f.owner)

	page, err := s.Pending(f.as(f.admin), url.Values{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, older.ID, page.Items[0].ID)
	assert.Equal(t, newer.ID, page.Items[1].ID)
}
