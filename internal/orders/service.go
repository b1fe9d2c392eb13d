package orders

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/internal/checkout/reservation"
	"github.com/velogear/velogear-backend/internal/stock"
	"github.com/velogear/velogear-backend/pkg/db"
	"github.com/velogear/velogear-backend/pkg/db/models"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
	"github.com/velogear/velogear-backend/pkg/metrics"
)

// procedureCanceller cancels an order and restores its stock in one atomic
// server-side call.
type procedureCanceller interface {
	CancelOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// stockReleaser returns units client-side when the cancel procedure is
// unavailable.
type stockReleaser interface {
	Release(ctx context.Context, key stock.ItemKey, qty int) error
}

// Actor identifies who is performing an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) isAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// Service exposes order reads and lifecycle operations.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, actor Actor) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus, actor Actor) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
}

type service struct {
	repo      Repository
	canceller procedureCanceller
	releaser  stockReleaser
	log       *logger.Logger
	metrics   *metrics.CheckoutMetrics

	procedureMissing atomic.Bool
}

// NewService builds the order lifecycle service. procedureInstalled seeds the
// cancel path choice, typically from the startup probe; once the procedure is
// found missing, cancellation stays on the client-side path for the process
// lifetime.
func NewService(repo Repository, canceller procedureCanceller, procedureInstalled bool, releaser stockReleaser, log *logger.Logger, m *metrics.CheckoutMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if releaser == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &service{
		repo:      repo,
		canceller: canceller,
		releaser:  releaser,
		log:       log,
		metrics:   m,
	}
	s.procedureMissing.Store(canceller == nil || !procedureInstalled)
	return s, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.isAdmin() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, actor Actor) ([]models.Order, error) {
	if !actor.isAdmin() {
		// customers only ever see their own orders
		userID := actor.UserID
		filter.UserID = &userID
	}
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

// UpdateStatus moves an order forward through its lifecycle. Cancellation is
// not a plain status write; it is routed through Cancel so stock is restored.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus, actor Actor) (*models.Order, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins update order status")
	}
	if next == enums.OrderStatusCancelled {
		return s.Cancel(ctx, orderID, actor)
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == next {
		return order, nil
	}
	if !CanTransition(order.Status, next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
			WithDetails(map[string]any{"from": order.Status, "to": next})
	}

	applied, err := s.repo.UpdateStatusIf(ctx, order.ID, order.Status, next)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently, retry")
	}

	ctx = s.log.WithOrderID(ctx, order.ID.String())
	s.log.Info(ctx, "order status updated to "+next.String())

	order.Status = next
	return order, nil
}

// Cancel transitions the order to CANCELLED and restores its stock. A second
// cancel of the same order is an idempotent no-op; stock is never restored
// twice.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.isAdmin() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	if order.Status == enums.OrderStatusCancelled {
		return order, nil
	}
	if !CanTransition(order.Status, enums.OrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
			WithDetails(map[string]any{"status": order.Status})
	}
	if !actor.isAdmin() && order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
		// once shipped, customers go through support
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipped orders are cancelled by support")
	}

	ctx = s.log.WithOrderID(ctx, order.ID.String())

	if !s.procedureMissing.Load() {
		already, err := s.canceller.CancelOrder(ctx, order.ID)
		switch {
		case err == nil:
			if !already {
				s.countRestoredUnits(order)
				s.log.Info(ctx, "order cancelled, stock restored")
			}
			order.Status = enums.OrderStatusCancelled
			return order, nil
		case errors.Is(err, reservation.ErrOrderNotFound):
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		case errors.Is(err, reservation.ErrCancelNotAllowed):
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
		case db.IsUndefinedFunction(err):
			// stay on the client-side path from now on
			s.procedureMissing.Store(true)
			s.log.Warn(ctx, "cancel procedure missing, using client-side cancellation")
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
	}

	return s.cancelClientSide(ctx, order)
}

// cancelClientSide flips the status with a guarded write, then restores the
// item stock. The guard makes a concurrent cancel lose cleanly instead of
// restoring stock twice.
func (s *service) cancelClientSide(ctx context.Context, order *models.Order) (*models.Order, error) {
	applied, err := s.repo.UpdateStatusIf(ctx, order.ID, order.Status, enums.OrderStatusCancelled)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !applied {
		refreshed, err := s.loadOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if refreshed.Status == enums.OrderStatusCancelled {
			return refreshed, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently, retry")
	}

	for _, item := range order.Items {
		key := stock.ItemKey{ProductID: item.ProductID, Size: item.SelectedSize, Color: item.SelectedColor}
		if err := s.releaser.Release(ctx, key, item.Quantity); err != nil {
			// the order stays cancelled; leaked units are reconciled manually
			s.log.Error(ctx, "stock restore failed for cancelled order item", err)
			continue
		}
		s.metrics.AddReleasedUnits("cancel", item.Quantity)
	}

	s.log.Info(ctx, "order cancelled, stock restored")
	order.Status = enums.OrderStatusCancelled
	return order, nil
}

func (s *service) countRestoredUnits(order *models.Order) {
	for _, item := range order.Items {
		s.metrics.AddReleasedUnits("cancel", item.Quantity)
	}
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
