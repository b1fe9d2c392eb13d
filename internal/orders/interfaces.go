package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/pkg/db/models"
	"github.com/velogear/velogear-backend/pkg/enums"
	"github.com/velogear/velogear-backend/pkg/pagination"
)

// ListFilter narrows admin order listings.
type ListFilter struct {
	Status *enums.OrderStatus
	UserID *uuid.UUID
	Page   pagination.Params
}

// Repository persists and loads orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	// UpdateStatusIf applies the transition only when the row still holds the
	// observed status; false reports a lost race.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
}
