package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the canonical catalog listing. Stock is authoritative only while
// no variant rows exist; once variants are present it is kept as the sum of
// their stocks for display and must never be decremented on its own.
type Product struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name        string                `gorm:"column:name;not null"`
	Price       decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	Category    string                `gorm:"column:category;not null"`
	Description *string               `gorm:"column:description"`
	ImageURL    *string               `gorm:"column:image_url"`
	Gallery     pq.StringArray        `gorm:"column:gallery;type:text[]"`
	Stock       int                   `gorm:"column:stock;not null;default:0"`
	IsArchived  bool                  `gorm:"column:is_archived;not null;default:false"`
	ArchivedAt  *time.Time            `gorm:"column:archived_at"`
	ArchivedBy  *uuid.UUID            `gorm:"column:archived_by;type:uuid"`
	Variants    []ProductVariantStock `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the identifier client-side so the model also works
// against engines without uuid defaults (sqlite in tests).
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
