package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem snapshots one purchased line. ProductID is a weak reference: the
// product may be archived or deleted later, the snapshot stays intact. Price
// is captured at order time and never recomputed.
type OrderItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	SelectedSize  *string         `gorm:"column:selected_size"`
	SelectedColor *string         `gorm:"column:selected_color"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
