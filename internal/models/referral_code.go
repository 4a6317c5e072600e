package models

// ReferralCode links new users to the customer or manager who invited them.
// MaxUses of zero means unlimited.
type ReferralCode struct {
	BaseModel

	Code string `gorm:"uniqueIndex;not null" json:"code"`

	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"-"`

	UsageCount int  `gorm:"default:0" json:"usage_count"`
	MaxUses    int  `gorm:"default:0" json:"max_uses"`
	IsActive   bool `gorm:"default:true" json:"is_active"`
}

// Usable reports whether the code can still be redeemed.
func (c *ReferralCode) Usable() bool {
	if !c.IsActive {
		return false
	}
	return c.MaxUses == 0 || c.UsageCount < c.MaxUses
}
