package models

import "gorm.io/datatypes"

// OrderEvent is an append-only audit row recording a single order state
// transition. Rows are never updated or deleted.
type OrderEvent struct {
	BaseModel

	OrderID string `gorm:"type:uuid;not null;index" json:"order_id"`

	FromStatus OrderStatus `gorm:"type:varchar(32);not null" json:"from_status"`
	ToStatus   OrderStatus `gorm:"type:varchar(32);not null" json:"to_status"`

	Note    string         `json:"note,omitempty"`
	Payload datatypes.JSON `json:"payload,omitempty"`
}
