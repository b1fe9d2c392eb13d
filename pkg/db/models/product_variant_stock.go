package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductVariantStock holds the stock count for one (size, color)
// specialization of a product. Size and color are each optional; the pair is
// unique per product. When any rows exist for a product they are the sole
// source of availability truth.
type ProductVariantStock struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:uq_variant_identity"`
	Size      *string   `gorm:"column:size;uniqueIndex:uq_variant_identity"`
	Color     *string   `gorm:"column:color;uniqueIndex:uq_variant_identity"`
	Stock     int       `gorm:"column:stock;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariantStock) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
