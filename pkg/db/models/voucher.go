package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Voucher is a percentage discount code. Codes are stored upper-cased and
// matched case-insensitively; no expiry or usage limits are modeled.
type Voucher struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code            string    `gorm:"column:code;not null;uniqueIndex"`
	DiscountPercent int       `gorm:"column:discount_percent;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (v *Voucher) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
