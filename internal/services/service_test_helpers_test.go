package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dstarenko/storebot/internal/models"
	"github.com/dstarenko/storebot/internal/notify"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ReferralCode{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderEvent{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, chatID int64) *models.User {
	t.Helper()

	user := &models.User{ChatID: chatID, Username: fmt.Sprintf("user%d", chatID)}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestOrder(t *testing.T, db *gorm.DB, userID string, status models.OrderStatus, total int64) *models.Order {
	t.Helper()

	order := &models.Order{
		UserID:         userID,
		SubtotalAmount: total,
		TotalAmount:    total,
		Status:         status,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func countOrderEvents(t *testing.T, db *gorm.DB, orderID string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.OrderEvent{}).Where("order_id = ?", orderID).Count(&count).Error)
	return count
}

// fakeNotifier records outbound calls and fails on demand.
type fakeNotifier struct {
	mu sync.Mutex

	issueErr  error
	revokeErr error
	sendErr   error

	issued  []string
	revoked []notify.AccessGrant
	texts   []string
}

func (f *fakeNotifier) IssueAccessGrant(ctx context.Context, destination string) (notify.AccessGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.issueErr != nil {
		return notify.AccessGrant{}, f.issueErr
	}
	f.issued = append(f.issued, destination)
	return notify.AccessGrant{Link: fmt.Sprintf("https://t.me/+invite%d", len(f.issued))}, nil
}

func (f *fakeNotifier) RevokeAccessGrant(ctx context.Context, destination string, grant notify.AccessGrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, grant)
	return nil
}

func (f *fakeNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) issueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issued)
}

func (f *fakeNotifier) revokeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.revoked)
}

var _ notify.Notifier = (*fakeNotifier)(nil)

func testClock(at time.Time) (func() time.Time, *time.Time) {
	current := at
	return func() time.Time { return current }, &current
}
