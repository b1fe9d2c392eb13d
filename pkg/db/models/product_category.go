package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductCategory is a catalog grouping. Categories are archived rather than
// deleted so products keep resolving their category code.
type ProductCategory struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code      string    `gorm:"column:code;not null;uniqueIndex"`
	Label     string    `gorm:"column:label;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *ProductCategory) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
