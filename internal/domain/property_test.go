package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperty_ApproveSetsPublishedOnce(t *testing.T) {
	p := &Property{ApprovalStatus: ApprovalPending}
	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	p.Approve(1, first)

	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, ApprovalApproved, p.ApprovalStatus)
	assert.True(t, p.IsPublished())

	p.Approve(2, first.Add(time.Hour))
	assert.Equal(t, first, *p.PublishedAt)
	assert.Equal(t, uint(2), *p.ModeratedBy)
}

func TestProperty_RejectRequiresReason(t *testing.T) {
	p := &Property{ApprovalStatus: ApprovalPending}
	now := time.Now()

	assert.ErrorIs(t, p.Reject(1, "   ", now), ErrRejectionReasonRequired)
	assert.Equal(t, ApprovalPending, p.ApprovalStatus)

	require.NoError(t, p.Reject(1, " blurry photos ", now))
	assert.Equal(t, ApprovalRejected, p.ApprovalStatus)
	assert.Equal(t, "blurry photos", *p.RejectionReason)

	p.Approve(1, now)
	assert.Nil(t, p.RejectionReason)
}

func TestProperty_SoftDeleteRestore(t *testing.T) {
	p := &Property{}
	deletedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	p.SoftDelete(deletedAt)
	p.SoftDelete(deletedAt.Add(48 * time.Hour))
	require.True(t, p.Deleted)
	assert.Equal(t, deletedAt, *p.DeletedAt)

	retention := 30 * 24 * time.Hour
	assert.Equal(t, 30, p.DaysRemaining(retention, deletedAt))
	assert.Equal(t, 20, p.DaysRemaining(retention, deletedAt.Add(10*24*time.Hour)))
	assert.Equal(t, 1, p.DaysRemaining(retention, deletedAt.Add(29*24*time.Hour+time.Hour)))
	assert.Equal(t, 0, p.DaysRemaining(retention, deletedAt.Add(45*24*time.Hour)))

	p.Restore()
	assert.False(t, p.Deleted)
	assert.Nil(t, p.DeletedAt)
	assert.Nil(t, p.TrashExpiresAt(retention))
}

func TestProperty_RecomputePricePerSqft(t *testing.T) {
	p := &Property{Price: 7500000, Area: 1250}
	p.RecomputePricePerSqft()
	require.NotNil(t, p.PricePerSqft)
	assert.Equal(t, 6000.0, *p.PricePerSqft)

	p.Area = 0
	p.RecomputePricePerSqft()
	assert.Nil(t, p.PricePerSqft)
}

func TestProperty_Ownership(t *testing.T) {
	owner := uint(7)
	p := &Property{CreatedBy: &owner}
	assert.True(t, p.IsOwnedBy(7))
	assert.False(t, p.IsOwnedBy(8))
	assert.False(t, (&Property{}).IsOwnedBy(7))
}
