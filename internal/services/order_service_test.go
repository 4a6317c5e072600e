package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dstarenko/storebot/internal/models"
)

const testChannel = "@storefront"

func TestDispatchInviteTransition(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &fakeNotifier{}
	clock, _ := testClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	svc, err := NewOrderService(db, notifier,
		WithOrderClock(clock),
		WithInviteExpiry(24*time.Hour),
	)
	require.NoError(t, err)

	user := createTestUser(t, db, 100)
	order := createTestOrder(t, db, user.ID, models.OrderStatusApproved, 5000)

	link, err := svc.DispatchInvite(context.Background(), order.ID, testChannel)
	require.NoError(t, err)
	require.NotEmpty(t, link)

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	require.Equal(t, models.OrderStatusInviteSent, stored.Status)
	require.NotNil(t, stored.InviteLink)
	require.Equal(t, link, *stored.InviteLink)
	require.NotNil(t, stored.InviteSentAt)
	require.NotNil(t, stored.InviteExpiresAt)
	require.Equal(t, stored.InviteSentAt.Add(24*time.Hour), *stored.InviteExpiresAt)

	require.Equal(t, int64(1), countOrderEvents(t, db, order.ID))
	require.Equal(t, 1, notifier.issueCount())
	require.Len(t, notifier.texts, 1)
	require.Contains(t, notifier.texts[0], link)
}

func TestDispatchInviteIdempotentReplay(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &fakeNotifier{}

	svc, err := NewOrderService(db, notifier)
	require.NoError(t, err)

	user := createTestUser(t, db, 101)
	order := createTestOrder(t, db, user.ID, models.OrderStatusApproved, 1200)

	first, err := svc.DispatchInvite(context.Background(), order.ID, testChannel)
	require.NoError(t, err)

	second, err := svc.DispatchInvite(context.Background(), order.ID, testChannel)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Replay performed no notification and appended no event.
	require.Equal(t, 1, notifier.issueCount())
	require.Len(t, notifier.texts, 1)
	require.Equal(t, int64(1), countOrderEvents(t, db, order.ID))
}

func TestDispatchInviteRequiresApproval(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &fakeNotifier{}

	svc, err := NewOrderService(db, notifier)
	require.NoError(t, err)

	user := createTestUser(t, db, 102)

	for _, status := range []models.OrderStatus{
		models.OrderStatusAwaitingApproval,
		models.OrderStatusCancelled,
	} {
		order := createTestOrder(t, db, user.ID, status, 800)

		_, err := svc.DispatchInvite(context.Background(), order.ID, testChannel)
		require.ErrorIs(t, err, ErrOrderNotApproved)
	}

	require.Equal(t, 0, notifier.issueCount())
	require.Empty(t, notifier.texts)
}

func TestDispatchInviteMissingOrder(t *testing.T) {
	db := openServiceTestDB(t)

	svc, err := NewOrderService(db, &fakeNotifier{})
	require.NoError(t, err)

	_, err = svc.DispatchInvite(context.Background(), "4c2c5df1-0000-0000-0000-000000000000", testChannel)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestDispatchInviteGrantFailureLeavesOrderEligible(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &fakeNotifier{issueErr: context.DeadlineExceeded}

	svc, err := NewOrderService(db, notifier)
	require.NoError(t, err)

	user := createTestUser(t, db, 103)
	order := createTestOrder(t, db, user.ID, models.OrderStatusApproved, 900)

	_, err = svc.DispatchInvite(context.Background(), order.ID, testChannel)
	require.Error(t, err)

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	require.Equal(t, models.OrderStatusApproved, stored.Status)
	require.Nil(t, stored.InviteLink)
	require.Equal(t, int64(0), countOrderEvents(t, db, order.ID))
}

func TestRevokeExpiredInviteExactlyOnce(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &fakeNotifier{}
	clock, current := testClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	svc, err := NewOrderService(db, notifier,
		WithOrderClock(clock),
		WithInviteExpiry(time.Hour),
	)
	require.NoError(t, err)

	user := createTestUser(t, db, 104)
	order := createTestOrder(t, db, user.ID, models.OrderStatusApproved, 2500)

	_, err = svc.DispatchInvite(context.Background(), order.ID, testChannel)
	require.NoError(t, err)

	*current = current.Add(2 * time.Hour)

	revoked, err := svc.RevokeExpiredInvite(context.Background(), order.ID, testChannel)
	require.NoError(t, err)
	require.True(t, revoked)

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	require.True(t, stored.InviteRevoked)

	// dispatch + revocation
	require.Equal(t, int64(2), countOrderEvents(t, db, order.ID))
	require.Equal(t, 1, notifier.revokeCount())

	// A second sweep is a no-op.
	revoked, err = svc.RevokeExpiredInvite(context.Background(), order.ID, testChannel)
	require.NoError(t, err)
	require.False(t, revoked)
	require.Equal(t, 1, notifier.revokeCount())
	require.Equal(t, int64(2), countOrderEvents(t, db, order.ID))
}

func TestRevokeExpiredInviteSkipsLiveInvite(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &fakeNotifier{}
	clock, current := testClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	svc, err := NewOrderService(db, notifier,
		WithOrderClock(clock),
		WithInviteExpiry(24*time.Hour),
	)
	require.NoError(t, err)

	user := createTestUser(t, db, 105)
	order := createTestOrder(t, db, user.ID, models.OrderStatusApproved, 700)

	_, err = svc.DispatchInvite(context.Background(), order.ID, testChannel)
	require.NoError(t, err)

	*current = current.Add(time.Hour)

	revoked, err := svc.RevokeExpiredInvite(context.Background(), order.ID, testChannel)
	require.NoError(t, err)
	require.False(t, revoked)
	require.Equal(t, 0, notifier.revokeCount())
}

func TestRevokeExpiredInviteTransportFailureRetriable(t *testing.T) {
	db := openServiceTestDB(t)
	notifier := &fakeNotifier{}
	clock, current := testClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	svc, err := NewOrderService(db, notifier,
		WithOrderClock(clock),
		WithInviteExpiry(time.Hour),
	)
	require.NoError(t, err)

	user := createTestUser(t, db, 106)
	order := createTestOrder(t, db, user.ID, models.OrderStatusApproved, 1500)

	_, err = svc.DispatchInvite(context.Background(), order.ID, testChannel)
	require.NoError(t, err)

	*current = current.Add(2 * time.Hour)

	notifier.revokeErr = context.DeadlineExceeded
	_, err = svc.RevokeExpiredInvite(context.Background(), order.ID, testChannel)
	require.Error(t, err)

	// Order stays eligible for the next sweep.
	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", order.ID).Error)
	require.False(t, stored.InviteRevoked)

	notifier.revokeErr = nil
	revoked, err := svc.RevokeExpiredInvite(context.Background(), order.ID, testChannel)
	require.NoError(t, err)
	require.True(t, revoked)
}
