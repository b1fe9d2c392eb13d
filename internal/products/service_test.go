package products

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/internal/stock"
	"github.com/velogear/velogear-backend/pkg/db/models"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.ProductVariantStock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(
		NewRepository(db),
		testTxRunner{db: db},
		stock.NewLedger(db, logg),
		logg,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func strPtr(s string) *string { return &s }

func createProduct(t *testing.T, svc Service, stockCount int) *models.Product {
	t.Helper()
	product, err := svc.Create(context.Background(), CreateInput{
		Name:     "Gravel Tires 700x40",
		Price:    decimal.RequireFromString("64.50"),
		Category: "tires",
		Stock:    stockCount,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	cases := []CreateInput{
		{Name: "", Price: decimal.NewFromInt(10), Category: "tires"},
		{Name: "x", Price: decimal.Zero, Category: "tires"},
		{Name: "x", Price: decimal.NewFromInt(10), Category: ""},
		{Name: "x", Price: decimal.NewFromInt(10), Category: "tires", Stock: -1},
	}
	for i, input := range cases {
		_, err := svc.Create(ctx, input)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestAdjustStockRejectsVariantManaged(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	product := createProduct(t, svc, 5)

	if _, err := svc.AdjustStock(ctx, product.ID, 12); err != nil {
		t.Fatalf("adjust plain product: %v", err)
	}

	if _, err := svc.ReplaceVariants(ctx, product.ID, []VariantInput{
		{Size: strPtr("M"), Stock: 3},
	}); err != nil {
		t.Fatalf("replace variants: %v", err)
	}

	_, err := svc.AdjustStock(ctx, product.ID, 20)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT for variant-managed stock, got %v", err)
	}
}

func TestReplaceVariantsResyncsAggregate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	product := createProduct(t, svc, 100)

	updated, err := svc.ReplaceVariants(ctx, product.ID, []VariantInput{
		{Size: strPtr("S"), Color: strPtr("red"), Stock: 2},
		{Size: strPtr("M"), Color: strPtr("red"), Stock: 3},
	})
	if err != nil {
		t.Fatalf("replace variants: %v", err)
	}
	if updated.Stock != 5 {
		t.Fatalf("expected aggregate resynced to 5, got %d", updated.Stock)
	}
	if len(updated.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(updated.Variants))
	}

	// replacing again drops the old rows
	updated, err = svc.ReplaceVariants(ctx, product.ID, []VariantInput{
		{Size: strPtr("L"), Stock: 7},
	})
	if err != nil {
		t.Fatalf("second replace: %v", err)
	}
	if updated.Stock != 7 || len(updated.Variants) != 1 {
		t.Fatalf("expected single variant with stock 7, got %+v", updated)
	}
}

func TestReplaceVariantsRejectsDuplicates(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newTestDB(t))
	product := createProduct(t, svc, 0)

	_, err := svc.ReplaceVariants(context.Background(), product.ID, []VariantInput{
		{Size: strPtr("M"), Color: strPtr("red"), Stock: 1},
		{Size: strPtr("M"), Color: strPtr("red"), Stock: 2},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestArchiveHidesFromStorefrontList(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()
	product := createProduct(t, svc, 1)
	actor := uuid.New()

	archived, err := svc.Archive(ctx, product.ID, actor)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !archived.IsArchived || archived.ArchivedBy == nil || *archived.ArchivedBy != actor {
		t.Fatalf("unexpected archive state: %+v", archived)
	}

	visible, err := svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("archived product must be hidden, got %d", len(visible))
	}

	all, err := svc.List(ctx, ListFilter{IncludeArchived: true})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("admin listing must include archived, got %d", len(all))
	}

	restored, err := svc.Unarchive(ctx, product.ID)
	if err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if restored.IsArchived || restored.ArchivedAt != nil {
		t.Fatalf("unexpected unarchive state: %+v", restored)
	}
}

func TestDeleteReturnsSnapshot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	product := createProduct(t, svc, 4)
	if _, err := svc.ReplaceVariants(ctx, product.ID, []VariantInput{{Size: strPtr("M"), Stock: 4}}); err != nil {
		t.Fatalf("replace variants: %v", err)
	}

	snapshot, err := svc.Delete(ctx, product.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if snapshot.Name != "Gravel Tires 700x40" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	if _, err := svc.Get(ctx, product.ID); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND after delete, got %v", err)
	}

	var count int64
	if err := db.Model(&models.ProductVariantStock{}).Where("product_id = ?", product.ID).Count(&count).Error; err != nil {
		t.Fatalf("count variants: %v", err)
	}
	if count != 0 {
		t.Fatalf("variants must be removed with the product, got %d", count)
	}
}
