package orders

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/internal/stock"
	"github.com/velogear/velogear-backend/pkg/db/models"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
	"github.com/velogear/velogear-backend/pkg/metrics"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.Product{}, &models.ProductVariantStock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

// recordingReleaser tracks client-side stock restores.
type recordingReleaser struct {
	released map[uuid.UUID]int
}

func (r *recordingReleaser) Release(_ context.Context, key stock.ItemKey, qty int) error {
	if r.released == nil {
		r.released = map[uuid.UUID]int{}
	}
	r.released[key.ProductID] += qty
	return nil
}

// scriptedCanceller simulates the server-side cancel procedure.
type scriptedCanceller struct {
	err              error
	alreadyCancelled bool
	calls            int
}

func (c *scriptedCanceller) CancelOrder(context.Context, uuid.UUID) (bool, error) {
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return c.alreadyCancelled, nil
}

func seedOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.OrderStatus, items ...models.OrderItem) *models.Order {
	t.Helper()
	order := models.Order{
		UserID:        userID,
		Address:       "12 Chainring Lane",
		Phone:         "0917-555-0101",
		PaymentMethod: enums.PaymentMethodCOD,
		Status:        status,
		TotalAmount:   decimal.NewFromInt(250),
		Items:         items,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return &order
}

func newTestService(t *testing.T, db *gorm.DB, canceller procedureCanceller, releaser stockReleaser) Service {
	t.Helper()
	if releaser == nil {
		releaser = &recordingReleaser{}
	}
	svc, err := NewService(NewRepository(db), canceller, canceller != nil, releaser, newTestLogger(), metrics.NewCheckoutMetrics(nil))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestGetEnforcesOwnership(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPending)
	svc := newTestService(t, db, nil, nil)

	if _, err := svc.Get(ctx, order.ID, Actor{UserID: owner, Role: enums.UserRoleCustomer}); err != nil {
		t.Fatalf("owner get: %v", err)
	}

	_, err := svc.Get(ctx, order.ID, Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}

	if _, err := svc.Get(ctx, order.ID, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}); err != nil {
		t.Fatalf("admin get: %v", err)
	}
}

func TestUpdateStatusForwardChain(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending)
	svc := newTestService(t, db, nil, nil)
	admin := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	for _, next := range []enums.OrderStatus{
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
	} {
		updated, err := svc.UpdateStatus(ctx, order.ID, next, admin)
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("expected %s, got %s", next, updated.Status)
		}
	}

	// delivered is terminal
	_, err := svc.UpdateStatus(ctx, order.ID, enums.OrderStatusProcessing, admin)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestUpdateStatusRejectsSkippedStep(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending)
	svc := newTestService(t, db, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusDelivered, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPending)
	svc := newTestService(t, db, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusProcessing, Actor{UserID: owner, Role: enums.UserRoleCustomer})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestCancelRestoresStockClientSide(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	owner := uuid.New()
	productID := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPending, models.OrderItem{
		ProductID: productID,
		Quantity:  2,
		Price:     decimal.NewFromInt(125),
	})

	releaser := &recordingReleaser{}
	svc := newTestService(t, db, nil, releaser)

	cancelled, err := svc.Cancel(ctx, order.ID, Actor{UserID: owner, Role: enums.UserRoleCustomer})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if releaser.released[productID] != 2 {
		t.Fatalf("expected 2 units restored, got %d", releaser.released[productID])
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	owner := uuid.New()
	productID := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPending, models.OrderItem{
		ProductID: productID,
		Quantity:  3,
		Price:     decimal.NewFromInt(50),
	})

	releaser := &recordingReleaser{}
	svc := newTestService(t, db, nil, releaser)
	actor := Actor{UserID: owner, Role: enums.UserRoleCustomer}

	if _, err := svc.Cancel(ctx, order.ID, actor); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := svc.Cancel(ctx, order.ID, actor); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if releaser.released[productID] != 3 {
		t.Fatalf("stock restored twice: %d units", releaser.released[productID])
	}
}

func TestCancelPrefersProcedure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusProcessing)

	canceller := &scriptedCanceller{}
	releaser := &recordingReleaser{}
	svc := newTestService(t, db, canceller, releaser)

	cancelled, err := svc.Cancel(ctx, order.ID, Actor{UserID: owner, Role: enums.UserRoleCustomer})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if canceller.calls != 1 {
		t.Fatalf("expected one procedure call, got %d", canceller.calls)
	}
	if len(releaser.released) != 0 {
		t.Fatalf("client-side restore must not run when the procedure handled it")
	}
}

func TestCancelFallsBackWhenProcedureMissing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	owner := uuid.New()
	productID := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusPending, models.OrderItem{
		ProductID: productID,
		Quantity:  1,
		Price:     decimal.NewFromInt(80),
	})

	canceller := &scriptedCanceller{err: errors.New("function cancel_order_and_restore_stock(uuid) does not exist")}
	releaser := &recordingReleaser{}
	svc := newTestService(t, db, canceller, releaser)

	cancelled, err := svc.Cancel(ctx, order.ID, Actor{UserID: owner, Role: enums.UserRoleCustomer})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if releaser.released[productID] != 1 {
		t.Fatalf("expected client-side restore, got %v", releaser.released)
	}
}

func TestCancelProcedureDowngradeSticks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	owner := uuid.New()
	first := seedOrder(t, db, owner, enums.OrderStatusPending, models.OrderItem{
		ProductID: uuid.New(),
		Quantity:  1,
		Price:     decimal.NewFromInt(40),
	})
	second := seedOrder(t, db, owner, enums.OrderStatusPending, models.OrderItem{
		ProductID: uuid.New(),
		Quantity:  2,
		Price:     decimal.NewFromInt(60),
	})

	canceller := &scriptedCanceller{err: errors.New("function cancel_order_and_restore_stock(uuid) does not exist")}
	releaser := &recordingReleaser{}
	svc := newTestService(t, db, canceller, releaser)
	actor := Actor{UserID: owner, Role: enums.UserRoleCustomer}

	if _, err := svc.Cancel(ctx, first.ID, actor); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := svc.Cancel(ctx, second.ID, actor); err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	// the missing procedure is not retried on later cancels
	if canceller.calls != 1 {
		t.Fatalf("expected a single procedure attempt, got %d", canceller.calls)
	}
	if len(releaser.released) != 2 {
		t.Fatalf("expected both orders restored client-side, got %v", releaser.released)
	}
}

func TestCustomerCannotCancelShippedOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusShipped)
	svc := newTestService(t, db, nil, nil)

	_, err := svc.Cancel(context.Background(), order.ID, Actor{UserID: owner, Role: enums.UserRoleCustomer})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}

	// admins still can
	if _, err := svc.Cancel(context.Background(), order.ID, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestListScopesCustomersToOwnOrders(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	owner := uuid.New()
	seedOrder(t, db, owner, enums.OrderStatusPending)
	seedOrder(t, db, uuid.New(), enums.OrderStatusPending)
	svc := newTestService(t, db, nil, nil)

	mine, err := svc.List(ctx, ListFilter{}, Actor{UserID: owner, Role: enums.UserRoleCustomer})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].UserID != owner {
		t.Fatalf("expected only own orders, got %d", len(mine))
	}

	all, err := svc.List(ctx, ListFilter{}, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected all orders for admin, got %d", len(all))
	}
}

func TestListFiltersByStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	seedOrder(t, db, uuid.New(), enums.OrderStatusPending)
	seedOrder(t, db, uuid.New(), enums.OrderStatusShipped)
	svc := newTestService(t, db, nil, nil)

	shipped := enums.OrderStatusShipped
	got, err := svc.List(ctx, ListFilter{Status: &shipped}, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Status != enums.OrderStatusShipped {
		t.Fatalf("expected one shipped order, got %d", len(got))
	}
}
