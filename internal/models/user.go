package models

// User describes a storefront customer or manager reached through a chat identity.
//
// ReferredByID forms a self-referential relation that is intended to be a forest.
// Nothing in the schema enforces acyclicity, so every traversal over it must
// defend against cycles introduced by manual edits or corrupted imports.
type User struct {
	BaseModel

	ChatID    int64  `gorm:"uniqueIndex;not null" json:"chat_id"`
	Username  string `gorm:"index" json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	IsManager bool `gorm:"default:false" json:"is_manager"`

	ReferredByID *string `gorm:"type:uuid;index" json:"referred_by_id,omitempty"`
	ReferredBy   *User   `gorm:"foreignKey:ReferredByID" json:"-"`

	UsedReferralCodeID *string       `gorm:"type:uuid" json:"used_referral_code_id,omitempty"`
	UsedReferralCode   *ReferralCode `gorm:"foreignKey:UsedReferralCodeID" json:"-"`

	Orders []Order `gorm:"foreignKey:UserID" json:"-"`
	Carts  []Cart  `gorm:"foreignKey:UserID" json:"-"`
}
