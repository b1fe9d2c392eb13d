package vouchers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/pkg/db/models"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:vouchers_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Voucher{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Create(ctx, "spring10", 10); err != nil {
		t.Fatalf("create voucher: %v", err)
	}

	for _, input := range []string{"SPRING10", "spring10", " Spring10 "} {
		voucher, err := svc.Resolve(ctx, input)
		if err != nil {
			t.Fatalf("resolve %q: %v", input, err)
		}
		if voucher.Code != "SPRING10" || voucher.DiscountPercent != 10 {
			t.Fatalf("unexpected voucher for %q: %+v", input, voucher)
		}
	}
}

func TestResolveUnknownCode(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := NewService(db)

	_, err := svc.Resolve(context.Background(), "NOPE")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCreateValidatesPercent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, _ := NewService(db)

	for _, percent := range []int{0, -5, 101} {
		_, err := svc.Create(context.Background(), "BAD", percent)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %d, got %v", percent, err)
		}
	}
}

func TestDeleteVoucher(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc, _ := NewService(db)

	if _, err := svc.Create(ctx, "GONE15", 15); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, "gone15"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, "gone15"); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND on second delete, got %v", err)
	}
}

func TestApplyDiscountRoundsOnce(t *testing.T) {
	t.Parallel()

	total := decimal.RequireFromString("333.33")
	discounted := ApplyDiscount(total, 15)
	// 333.33 * 0.85 = 283.3305, rounded once to cents
	if got := discounted.StringFixed(2); got != "283.33" {
		t.Fatalf("expected 283.33, got %s", got)
	}

	if got := ApplyDiscount(total, 0).StringFixed(2); got != "333.33" {
		t.Fatalf("expected passthrough, got %s", got)
	}
	if got := ApplyDiscount(total, 100).StringFixed(2); got != "0.00" {
		t.Fatalf("expected zero at 100 percent, got %s", got)
	}
}
