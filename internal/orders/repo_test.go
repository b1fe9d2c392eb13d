package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velogear/velogear-backend/pkg/db/models"
	"github.com/velogear/velogear-backend/pkg/enums"
	"github.com/velogear/velogear-backend/pkg/pagination"
)

func TestListPaginatesWithCursor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	userID := uuid.New()

	base := time.Now().Add(-time.Hour).UTC()
	for i := 0; i < 5; i++ {
		order := models.Order{
			UserID:        userID,
			Address:       "1 Cassette Court",
			Phone:         "0917-555-0103",
			PaymentMethod: enums.PaymentMethodCOD,
			Status:        enums.OrderStatusPending,
			TotalAmount:   decimal.NewFromInt(int64(10 + i)),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&order).Error; err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	first, err := repo.List(ctx, ListFilter{Page: pagination.Params{Limit: 2}})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	// buffer row included so callers can detect the next page
	if len(first) != 3 {
		t.Fatalf("expected 3 rows (2 + buffer), got %d", len(first))
	}
	if !first[0].CreatedAt.After(first[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}

	cursor := pagination.EncodeCursor(pagination.Cursor{
		CreatedAt: first[1].CreatedAt,
		ID:        first[1].ID,
	})
	second, err := repo.List(ctx, ListFilter{Page: pagination.Params{Limit: 2, Cursor: cursor}})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	for _, order := range second {
		if !order.CreatedAt.Before(first[1].CreatedAt) && order.ID == first[1].ID {
			t.Fatalf("cursor row repeated: %+v", order)
		}
	}
	if len(second) != 3 {
		t.Fatalf("expected remaining 3 rows, got %d", len(second))
	}
}

func TestUpdateStatusIfGuardsConcurrentWrites(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending)

	applied, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusProcessing)
	if err != nil || !applied {
		t.Fatalf("expected transition applied, applied=%v err=%v", applied, err)
	}

	applied, err = repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("guarded update: %v", err)
	}
	if applied {
		t.Fatal("stale transition must be rejected")
	}
}
