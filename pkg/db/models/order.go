package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/pkg/enums"
)

// Order is the purchase record created at checkout. Stock is reserved at
// creation time, not at shipment, so forward status transitions carry no
// stock side effects; only cancellation releases stock.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Address        string              `gorm:"column:address;not null"`
	Phone          string              `gorm:"column:phone;not null"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentDetails *string             `gorm:"column:payment_details"`
	Status         enums.OrderStatus   `gorm:"column:status;not null;default:'PENDING'"`
	TotalAmount    decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PromoApplied   *string             `gorm:"column:promo_applied"`
	Items          []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
