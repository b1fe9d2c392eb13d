package categories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/pkg/db/models"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:categories_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.ProductCategory{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCreateAndListCategories(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Create(ctx, " Helmets ", "Helmets"); err != nil {
		t.Fatalf("create: %v", err)
	}

	// duplicate code conflicts regardless of casing
	if _, err := svc.Create(ctx, "HELMETS", "Other"); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}

	active, err := svc.List(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].Code != "helmets" {
		t.Fatalf("unexpected listing: %+v", active)
	}
}

func TestDeactivateHidesCategory(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc, _ := NewService(db)

	if _, err := svc.Create(ctx, "tires", "Tires"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SetActive(ctx, "tires", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	active, err := svc.List(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("inactive category must be hidden, got %d", len(active))
	}

	all, err := svc.List(ctx, true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected inactive category in admin listing, got %d", len(all))
	}
}

func TestRenameCategory(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc, _ := NewService(db)

	if _, err := svc.Create(ctx, "bags", "Bags"); err != nil {
		t.Fatalf("create: %v", err)
	}
	renamed, err := svc.Rename(ctx, "bags", "Frame Bags")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Label != "Frame Bags" {
		t.Fatalf("unexpected label: %s", renamed.Label)
	}

	if _, err := svc.Rename(ctx, "unknown", "X"); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
