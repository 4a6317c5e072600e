package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/dstarenko/storebot/internal/models"
	"github.com/dstarenko/storebot/internal/notify"
	"github.com/dstarenko/storebot/pkg/logger"
)

const defaultInviteExpiry = 24 * time.Hour

// OrderOption customises OrderService behaviour.
type OrderOption func(*OrderService)

// WithInviteExpiry overrides the invite link lifetime recorded at dispatch time.
func WithInviteExpiry(d time.Duration) OrderOption {
	return func(s *OrderService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithOrderClock injects a custom clock primarily for testing.
func WithOrderClock(clock func() time.Time) OrderOption {
	return func(s *OrderService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// OrderService owns the approved → invite_sent transition and invite revocation.
type OrderService struct {
	db       *gorm.DB
	notifier notify.Notifier
	expiry   time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewOrderService constructs an OrderService with the provided dependencies.
func NewOrderService(db *gorm.DB, notifier notify.Notifier, opts ...OrderOption) (*OrderService, error) {
	if db == nil {
		return nil, errors.New("order service: db is required")
	}
	if notifier == nil {
		return nil, errors.New("order service: notifier is required")
	}

	service := &OrderService{
		db:       db,
		notifier: notifier,
		expiry:   defaultInviteExpiry,
		now:      time.Now,
		log:      logger.WithModule("orders"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// DispatchInvite performs the approved → invite_sent transition for one order.
//
// The operation is idempotent: an order that already carries an invite link is
// returned unchanged with no notification and no write, which makes it safe for
// the at-least-once batch sender to call arbitrarily often. The order update
// and the audit event append are one atomic unit; a grant that was issued but
// not recorded (write failure) is abandoned and a retry issues a fresh one.
func (s *OrderService) DispatchInvite(ctx context.Context, orderID, destination string) (string, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return "", err
	}

	if order.InviteLink != nil {
		return *order.InviteLink, nil
	}

	if order.Status != models.OrderStatusApproved {
		return "", fmt.Errorf("order service: order %s in status %q: %w", orderID, order.Status, ErrOrderNotApproved)
	}

	grant, err := s.notifier.IssueAccessGrant(ctx, destination)
	if err != nil {
		return "", fmt.Errorf("order service: issue access grant: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The status predicate keeps a concurrent dispatcher from recording a
		// second link; the loser re-reads and returns the winner's link.
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusApproved).
			Updates(map[string]any{
				"status":            models.OrderStatusInviteSent,
				"invite_link":       grant.Link,
				"invite_sent_at":    now,
				"invite_expires_at": expiresAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errConcurrentDispatch
		}

		event := models.OrderEvent{
			OrderID:    order.ID,
			FromStatus: models.OrderStatusApproved,
			ToStatus:   models.OrderStatusInviteSent,
			Note:       "invite link issued",
			Payload:    eventPayload(map[string]any{"invite_link": grant.Link}),
		}
		return tx.Create(&event).Error
	})
	if errors.Is(err, errConcurrentDispatch) {
		return s.dispatchedLink(ctx, order.ID)
	}
	if err != nil {
		return "", fmt.Errorf("order service: record invite: %w", err)
	}

	s.notifyBuyer(ctx, order, fmt.Sprintf("Your order is confirmed. Join here: %s", grant.Link))

	return grant.Link, nil
}

// RevokeExpiredInvite revokes the access grant of one expired invite_sent order.
// It reports whether this call performed the revocation. Re-running against an
// already revoked or otherwise ineligible order is a no-op.
func (s *OrderService) RevokeExpiredInvite(ctx context.Context, orderID, destination string) (bool, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return false, err
	}

	if !s.inviteExpired(order) {
		return false, nil
	}

	grant := notify.AccessGrant{Link: *order.InviteLink}
	if err := s.notifier.RevokeAccessGrant(ctx, destination, grant); err != nil {
		switch {
		case notify.IsUnreachable(err):
			s.log.Warn("grant revocation skipped, destination unreachable",
				zap.String("order_id", order.ID), zap.Error(err))
		case errors.Is(err, notify.ErrNotifierDisabled):
			// Flag anyway so a disabled environment does not re-select forever.
		default:
			return false, fmt.Errorf("order service: revoke access grant: %w", err)
		}
	}

	var revoked bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND invite_revoked = ?", order.ID, false).
			Update("invite_revoked", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		revoked = true

		event := models.OrderEvent{
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   order.Status,
			Note:       "invite link expired and revoked",
			Payload:    eventPayload(map[string]any{"invite_link": grant.Link}),
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return false, fmt.Errorf("order service: record revocation: %w", err)
	}

	if revoked {
		s.notifyBuyer(ctx, order, "Your join link has expired. Contact the store to request a new one.")
	}

	return revoked, nil
}

var errConcurrentDispatch = errors.New("order service: concurrent dispatch")

func (s *OrderService) loadOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("User").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order service: order %s: %w", orderID, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("order service: load order: %w", err)
	}
	return &order, nil
}

func (s *OrderService) dispatchedLink(ctx context.Context, orderID string) (string, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.InviteLink == nil {
		return "", fmt.Errorf("order service: order %s in status %q: %w", orderID, order.Status, ErrOrderNotApproved)
	}
	return *order.InviteLink, nil
}

func (s *OrderService) inviteExpired(order *models.Order) bool {
	if order.Status != models.OrderStatusInviteSent || order.InviteRevoked {
		return false
	}
	if order.InviteLink == nil || order.InviteExpiresAt == nil {
		return false
	}
	return order.InviteExpiresAt.Before(s.now())
}

// notifyBuyer delivers a best-effort text to the order owner. A buyer who
// blocked the bot must not fail the pipeline; the durable state has already
// been recorded at this point.
func (s *OrderService) notifyBuyer(ctx context.Context, order *models.Order, text string) {
	if order.User == nil {
		return
	}
	if err := s.notifier.SendText(ctx, order.User.ChatID, text); err != nil {
		if notify.IsUnreachable(err) || errors.Is(err, notify.ErrNotifierDisabled) {
			return
		}
		s.log.Warn("buyer notification failed",
			zap.String("order_id", order.ID), zap.Int64("chat_id", order.User.ChatID), zap.Error(err))
	}
}

func eventPayload(fields map[string]any) datatypes.JSON {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
