package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dstarenko/storebot/internal/models"
	"github.com/dstarenko/storebot/pkg/logger"
)

// CartOption customises CartService behaviour.
type CartOption func(*CartService)

// WithCartClock injects a custom clock primarily for testing.
func WithCartClock(clock func() time.Time) CartOption {
	return func(s *CartService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// CartService maintains cart activity timestamps and reclaims abandoned carts.
type CartService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// NewCartService constructs a CartService.
func NewCartService(db *gorm.DB, opts ...CartOption) (*CartService, error) {
	if db == nil {
		return nil, errors.New("cart service: db is required")
	}

	service := &CartService{
		db:  db,
		now: time.Now,
		log: logger.WithModule("carts"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Touch refreshes the cart's activity timestamp. Called by upstream chat
// handlers whenever the buyer interacts with the cart.
func (s *CartService) Touch(ctx context.Context, cartID string) error {
	result := s.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ? AND reclaimed_at IS NULL", cartID).
		Update("last_activity_at", s.now())
	if result.Error != nil {
		return fmt.Errorf("cart service: touch cart: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("cart service: cart %s: %w", cartID, ErrCartNotFound)
	}
	return nil
}

// ReapIdle soft-expires carts idle past the threshold and deletes their line
// items. Carts consumed by an order are never reclaimed, regardless of age.
// Re-running is a no-op because reclaimed carts fall out of the selection.
func (s *CartService) ReapIdle(ctx context.Context, idleThreshold time.Duration) (int, error) {
	cutoff := s.now().Add(-idleThreshold)

	consumed := s.db.Model(&models.Order{}).
		Select("cart_id").
		Where("cart_id IS NOT NULL")

	var carts []models.Cart
	if err := s.db.WithContext(ctx).
		Where("reclaimed_at IS NULL").
		Where("last_activity_at < ?", cutoff).
		Where("id NOT IN (?)", consumed).
		Order("last_activity_at").
		Find(&carts).Error; err != nil {
		return 0, fmt.Errorf("cart service: select idle carts: %w", err)
	}

	reclaimed := 0
	for _, cart := range carts {
		if err := s.reclaim(ctx, cart.ID); err != nil {
			s.log.Warn("cart reclaim failed", zap.String("cart_id", cart.ID), zap.Error(err))
			continue
		}
		reclaimed++
	}

	return reclaimed, nil
}

func (s *CartService) reclaim(ctx context.Context, cartID string) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Cart{}).
			Where("id = ? AND reclaimed_at IS NULL", cartID).
			Update("reclaimed_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
	})
}
