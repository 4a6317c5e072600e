package models

import "time"

// OrderStatus enumerates the order lifecycle. The fulfillment pipeline owns the
// approved → invite_sent edge; all other transitions happen upstream.
type OrderStatus string

const (
	OrderStatusAwaitingApproval OrderStatus = "awaiting_manager_approval"
	OrderStatusApproved         OrderStatus = "approved"
	OrderStatusInviteSent       OrderStatus = "invite_sent"
	OrderStatusAwaitingReceipt  OrderStatus = "awaiting_receipt"
	OrderStatusPaid             OrderStatus = "paid"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Order represents a checkout produced from a cart. Monetary amounts are in
// integer minor currency units.
//
// InviteLink is set exactly once, by the invite dispatch transition; it is
// non-nil iff the order status is invite_sent or later (excluding cancelled).
type Order struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `json:"user,omitempty"`

	CartID *string `gorm:"type:uuid;index" json:"cart_id,omitempty"`

	SubtotalAmount int64 `gorm:"not null" json:"subtotal_amount"`
	DiscountAmount int64 `gorm:"not null;default:0" json:"discount_amount"`
	TotalAmount    int64 `gorm:"not null" json:"total_amount"`

	Status OrderStatus `gorm:"type:varchar(32);not null;index" json:"status"`

	InviteLink      *string    `json:"invite_link,omitempty"`
	InviteSentAt    *time.Time `json:"invite_sent_at,omitempty"`
	InviteExpiresAt *time.Time `gorm:"index" json:"invite_expires_at,omitempty"`
	InviteRevoked   bool       `gorm:"default:false" json:"invite_revoked"`

	Events []OrderEvent `gorm:"foreignKey:OrderID" json:"-"`
}
