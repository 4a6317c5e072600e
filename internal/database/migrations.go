package database

import (
	"gorm.io/gorm"

	"github.com/dstarenko/storebot/internal/models"
	"github.com/dstarenko/storebot/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.ReferralCode{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderEvent{},
	)
}

// bootstrapManagerID is the well-known id of the seeded manager account.
const bootstrapManagerID = "00000000-0000-0000-0000-000000000001"

// SeedData ensures a bootstrap manager account and its root referral code exist.
// Running it repeatedly is a no-op.
func SeedData(db *gorm.DB) error {
	var managers int64
	if err := db.Model(&models.User{}).Where("is_manager = ?", true).Count(&managers).Error; err != nil {
		return err
	}
	if managers > 0 {
		return nil
	}

	manager := models.User{
		BaseModel: models.BaseModel{ID: bootstrapManagerID},
		ChatID:    0,
		Username:  "manager",
		IsManager: true,
	}
	// Matching on the fixed id keeps a customer who happens to be named
	// "manager" from satisfying the lookup and leaving the referral code
	// owned by a nonexistent row.
	if err := db.Where("id = ?", bootstrapManagerID).Attrs(manager).FirstOrCreate(&models.User{}).Error; err != nil {
		return err
	}

	code, err := crypto.GenerateReferralCode(8)
	if err != nil {
		return err
	}

	root := models.ReferralCode{
		Code:     code,
		OwnerID:  manager.ID,
		IsActive: true,
	}
	return db.Where(models.ReferralCode{OwnerID: manager.ID}).Attrs(root).FirstOrCreate(&models.ReferralCode{}).Error
}
