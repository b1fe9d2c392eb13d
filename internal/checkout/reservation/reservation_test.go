package reservation

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/internal/stock"
	"github.com/velogear/velogear-backend/pkg/db/models"
	"github.com/velogear/velogear-backend/pkg/enums"
	"github.com/velogear/velogear-backend/pkg/logger"
	"github.com/velogear/velogear-backend/pkg/metrics"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservation_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.ProductVariantStock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func seedProduct(t *testing.T, db *gorm.DB, stockCount int) uuid.UUID {
	t.Helper()
	product := models.Product{
		Name:     "Clipless Pedals",
		Price:    decimal.NewFromInt(89),
		Category: "components",
		Stock:    stockCount,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func strPtr(s string) *string { return &s }

func TestFlattenDemandMergesDuplicates(t *testing.T) {
	t.Parallel()

	productA := uuid.New()
	productB := uuid.New()
	lines := []Line{
		{ProductID: productA, Size: strPtr("M"), Quantity: 1},
		{ProductID: productB, Quantity: 2},
		{ProductID: productA, Size: strPtr("M"), Quantity: 2},
		{ProductID: productA, Size: strPtr("L"), Quantity: 1},
	}

	flattened := FlattenDemand(lines)
	if len(flattened) != 3 {
		t.Fatalf("expected 3 merged lines, got %d", len(flattened))
	}
	if flattened[0].ProductID != productA || flattened[0].Quantity != 3 {
		t.Fatalf("expected first line merged to qty 3, got %+v", flattened[0])
	}
	if flattened[1].ProductID != productB {
		t.Fatalf("expected insertion order preserved, got %+v", flattened[1])
	}
	if flattened[2].Size == nil || *flattened[2].Size != "L" {
		t.Fatalf("expected distinct variant kept separate, got %+v", flattened[2])
	}
}

func TestOptimisticReserveAndRelease(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 5)

	backend := NewOptimisticBackend(stock.NewLedger(db, newTestLogger()), 3, time.Millisecond, metrics.NewCheckoutMetrics(nil))
	key := stock.ItemKey{ProductID: productID}

	if err := backend.Reserve(ctx, key, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.Stock != 2 {
		t.Fatalf("expected stock 2 after reserve, got %d", product.Stock)
	}

	if err := backend.Release(ctx, key, 3); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", product.Stock)
	}
}

func TestOptimisticReleaseRestoresArchivedProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 5)

	backend := NewOptimisticBackend(stock.NewLedger(db, newTestLogger()), 3, time.Millisecond, metrics.NewCheckoutMetrics(nil))
	key := stock.ItemKey{ProductID: productID}

	if err := backend.Reserve(ctx, key, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := db.Model(&models.Product{}).Where("id = ?", productID).Update("is_archived", true).Error; err != nil {
		t.Fatalf("archive product: %v", err)
	}

	// a cancellation must restore stock even after the product left the catalog
	if err := backend.Release(ctx, key, 2); err != nil {
		t.Fatalf("release to archived product: %v", err)
	}

	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", product.Stock)
	}
}

func TestOptimisticInsufficientStockFailsFast(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productID := seedProduct(t, db, 2)

	backend := NewOptimisticBackend(stock.NewLedger(db, newTestLogger()), 3, time.Millisecond, metrics.NewCheckoutMetrics(nil))
	err := backend.Reserve(ctx, stock.ItemKey{ProductID: productID}, 4)

	var insufficient *stock.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
}

// contendedLedger rejects the first writes as lost races, then lets one
// through, simulating a concurrent buyer.
type contendedLedger struct {
	stock   int
	rejects int
}

func (c *contendedLedger) Availability(context.Context, stock.ItemKey) (stock.Availability, error) {
	return stock.Availability{Stock: c.stock}, nil
}

func (c *contendedLedger) ReleaseAvailability(ctx context.Context, key stock.ItemKey) (stock.Availability, error) {
	return c.Availability(ctx, key)
}

func (c *contendedLedger) CompareAndDecrement(_ context.Context, _ stock.ItemKey, qty, _ int) (bool, error) {
	if c.rejects > 0 {
		c.rejects--
		return false, nil
	}
	c.stock -= qty
	return true, nil
}

func (c *contendedLedger) CompareAndIncrement(_ context.Context, _ stock.ItemKey, qty, _ int) (bool, error) {
	c.stock += qty
	return true, nil
}

func TestOptimisticRetriesLostRaces(t *testing.T) {
	t.Parallel()

	ledger := &contendedLedger{stock: 10, rejects: 2}
	backend := NewOptimisticBackend(ledger, 3, time.Millisecond, metrics.NewCheckoutMetrics(nil))

	if err := backend.Reserve(context.Background(), stock.ItemKey{ProductID: uuid.New()}, 2); err != nil {
		t.Fatalf("expected third round to win, got %v", err)
	}
	if ledger.stock != 8 {
		t.Fatalf("expected stock 8, got %d", ledger.stock)
	}
}

func TestOptimisticGivesUpAfterBoundedAttempts(t *testing.T) {
	t.Parallel()

	ledger := &contendedLedger{stock: 10, rejects: 99}
	backend := NewOptimisticBackend(ledger, 3, time.Millisecond, metrics.NewCheckoutMetrics(nil))

	err := backend.Reserve(context.Background(), stock.ItemKey{ProductID: uuid.New()}, 1)
	var contention *ContentionError
	if !errors.As(err, &contention) {
		t.Fatalf("expected ContentionError, got %v", err)
	}
	if contention.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", contention.Attempts)
	}
}

// scriptedReserver records calls and fails per-product on demand.
type scriptedReserver struct {
	failOn   map[uuid.UUID]error
	reserved []stock.ItemKey
	released []stock.ItemKey
}

func (s *scriptedReserver) Reserve(_ context.Context, key stock.ItemKey, _ int) error {
	if err, ok := s.failOn[key.ProductID]; ok {
		return err
	}
	s.reserved = append(s.reserved, key)
	return nil
}

func (s *scriptedReserver) Release(_ context.Context, key stock.ItemKey, _ int) error {
	s.released = append(s.released, key)
	return nil
}

func TestEngineAllOrNothing(t *testing.T) {
	t.Parallel()

	productA := uuid.New()
	productB := uuid.New()
	failing := &scriptedReserver{
		failOn: map[uuid.UUID]error{
			productB: &stock.InsufficientStockError{ProductID: productB, Requested: 2, Available: 0},
		},
	}
	engine := NewEngine(nil, failing, false, newTestLogger(), metrics.NewCheckoutMetrics(nil))

	held, err := engine.ReserveAll(context.Background(), []Line{
		{ProductID: productA, Quantity: 1},
		{ProductID: productB, Quantity: 2},
	})
	if held != nil {
		t.Fatalf("expected no holds on failure, got %v", held)
	}
	var insufficient *stock.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected causal InsufficientStockError, got %v", err)
	}
	if len(failing.released) != 1 || failing.released[0].ProductID != productA {
		t.Fatalf("expected the prior hold released, got %v", failing.released)
	}
}

func TestEngineFallsBackWhenProcedureMissing(t *testing.T) {
	t.Parallel()

	missing := errors.New(`function reserve_product_stock(uuid, integer, text, text) does not exist`)
	productID := uuid.New()
	procedure := &scriptedReserver{failOn: map[uuid.UUID]error{productID: missing}}
	optimistic := &scriptedReserver{}
	engine := NewEngine(procedure, optimistic, true, newTestLogger(), metrics.NewCheckoutMetrics(nil))

	held, err := engine.ReserveAll(context.Background(), []Line{{ProductID: productID, Quantity: 1}})
	if err != nil {
		t.Fatalf("expected fallback reserve to succeed, got %v", err)
	}
	if len(held) != 1 || held[0].Mode != enums.ReservedViaOptimisticRetry {
		t.Fatalf("expected optimistic mode, got %+v", held)
	}

	// the downgrade sticks for subsequent calls
	held, err = engine.ReserveAll(context.Background(), []Line{{ProductID: uuid.New(), Quantity: 1}})
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if held[0].Mode != enums.ReservedViaOptimisticRetry {
		t.Fatalf("expected optimistic mode after downgrade, got %s", held[0].Mode)
	}
	if len(optimistic.reserved) != 2 {
		t.Fatalf("expected both reserves on optimistic path, got %d", len(optimistic.reserved))
	}
}

func TestEngineReleaseMirrorsMode(t *testing.T) {
	t.Parallel()

	procedure := &scriptedReserver{}
	optimistic := &scriptedReserver{}
	engine := NewEngine(procedure, optimistic, true, newTestLogger(), metrics.NewCheckoutMetrics(nil))

	procedural := uuid.New()
	clientSide := uuid.New()
	err := engine.ReleaseAll(context.Background(), []Held{
		{Line: Line{ProductID: procedural, Quantity: 1}, Mode: enums.ReservedViaProcedure},
		{Line: Line{ProductID: clientSide, Quantity: 2}, Mode: enums.ReservedViaOptimisticRetry},
	})
	if err != nil {
		t.Fatalf("release all: %v", err)
	}
	if len(procedure.released) != 1 || procedure.released[0].ProductID != procedural {
		t.Fatalf("expected procedure release, got %v", procedure.released)
	}
	if len(optimistic.released) != 1 || optimistic.released[0].ProductID != clientSide {
		t.Fatalf("expected optimistic release, got %v", optimistic.released)
	}
}
