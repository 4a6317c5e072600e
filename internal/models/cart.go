package models

import "time"

// Cart accumulates items while a buyer is browsing. A cart stays active until
// an order consumes it or the idle reaper reclaims it.
type Cart struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `json:"-"`

	LastActivityAt time.Time  `gorm:"not null;index" json:"last_activity_at"`
	ReclaimedAt    *time.Time `json:"reclaimed_at,omitempty"`

	Items []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"`
}

// Reclaimed reports whether the idle reaper has already taken the cart.
func (c *Cart) Reclaimed() bool {
	return c.ReclaimedAt != nil
}

// CartItem is a single line in a cart. Unit prices are integer minor currency units.
type CartItem struct {
	BaseModel

	CartID string `gorm:"type:uuid;not null;index" json:"cart_id"`

	Title           string `gorm:"not null" json:"title"`
	UnitPriceAmount int64  `gorm:"not null" json:"unit_price_amount"`
	Quantity        int    `gorm:"not null;default:1" json:"quantity"`
}
