package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/pkg/db/models"
	"github.com/velogear/velogear-backend/pkg/logger"
)

// ItemKey addresses one unit of sellable stock. Size and color select a
// variant row; both nil addresses the product aggregate when no variant rows
// exist for the product.
type ItemKey struct {
	ProductID uuid.UUID
	Size      *string
	Color     *string
}

// Availability is a point-in-time stock observation. VariantBacked reports
// which table answered; reads against a variant-backed product never consult
// the product aggregate.
type Availability struct {
	Stock         int
	VariantBacked bool
	ProductName   string
}

// Ledger performs guarded stock reads and writes. Writes are conditional
// compare-and-swap updates so concurrent buyers cannot both observe and spend
// the same units.
type Ledger struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewLedger builds a ledger bound to the provided DB handle.
func NewLedger(db *gorm.DB, log *logger.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

// WithTx returns a ledger bound to the transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{db: tx, log: l.log}
}

// Availability reads the current stock for the key on the sale path. Archived
// products are unavailable, and a product with variant rows but no row
// matching the requested size/color pair is unavailable even when the
// aggregate is positive.
func (l *Ledger) Availability(ctx context.Context, key ItemKey) (Availability, error) {
	return l.availability(ctx, key, false)
}

// ReleaseAvailability reads stock for the release path. Unlike Availability it
// tolerates archived products: a cancellation must restore stock even when the
// product was archived after the order was placed.
func (l *Ledger) ReleaseAvailability(ctx context.Context, key ItemKey) (Availability, error) {
	return l.availability(ctx, key, true)
}

func (l *Ledger) availability(ctx context.Context, key ItemKey, allowArchived bool) (Availability, error) {
	variantBacked, err := l.hasVariants(ctx, key.ProductID)
	if err != nil {
		return Availability{}, err
	}

	if variantBacked {
		var name string
		if !allowArchived {
			productName, archived, err := l.productState(ctx, key.ProductID)
			if err != nil {
				return Availability{}, err
			}
			if archived {
				return Availability{}, &ProductUnavailableError{ProductID: key.ProductID, Name: productName, Size: key.Size, Color: key.Color}
			}
			name = productName
		}

		var variant models.ProductVariantStock
		err := l.variantQuery(ctx, key).First(&variant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Availability{}, &ProductUnavailableError{ProductID: key.ProductID, Name: name, Size: key.Size, Color: key.Color}
		}
		if err != nil {
			return Availability{}, fmt.Errorf("load variant stock: %w", err)
		}
		return Availability{Stock: variant.Stock, VariantBacked: true, ProductName: name}, nil
	}

	query := l.db.WithContext(ctx).Where("id = ?", key.ProductID)
	if !allowArchived {
		query = query.Where("is_archived = ?", false)
	}
	var product models.Product
	err = query.First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Availability{}, &ProductUnavailableError{ProductID: key.ProductID}
	}
	if err != nil {
		return Availability{}, fmt.Errorf("load product stock: %w", err)
	}
	return Availability{Stock: product.Stock, ProductName: product.Name}, nil
}

// CompareAndDecrement subtracts qty from the key's stock only if the row still
// holds the expected value. It returns false when a concurrent writer changed
// the row first; the caller re-reads and retries.
func (l *Ledger) CompareAndDecrement(ctx context.Context, key ItemKey, qty, expected int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	if expected < qty {
		return false, &InsufficientStockError{
			ProductID: key.ProductID,
			Size:      key.Size,
			Color:     key.Color,
			Requested: qty,
			Available: expected,
		}
	}
	return l.compareAndSet(ctx, key, expected, expected-qty, false)
}

// CompareAndIncrement adds qty back to the key's stock only if the row still
// holds the expected value. Releases use the same guarded write as
// reservations so a racing release cannot silently drop units.
func (l *Ledger) CompareAndIncrement(ctx context.Context, key ItemKey, qty, expected int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	return l.compareAndSet(ctx, key, expected, expected+qty, true)
}

// allowArchived lets releases restore stock to products archived after the
// order was placed; sales never target archived products.
func (l *Ledger) compareAndSet(ctx context.Context, key ItemKey, expected, next int, allowArchived bool) (bool, error) {
	variantBacked, err := l.hasVariants(ctx, key.ProductID)
	if err != nil {
		return false, err
	}

	if variantBacked {
		res := l.variantQuery(ctx, key).
			Where("stock = ?", expected).
			Update("stock", next)
		if res.Error != nil {
			return false, fmt.Errorf("update variant stock: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return false, nil
		}
		if err := l.ResyncAggregate(ctx, key.ProductID); err != nil {
			// the aggregate is a derived display value; the variant write stands
			if l.log != nil {
				l.log.Error(l.log.WithProductID(ctx, key.ProductID.String()), "aggregate resync failed after variant stock write", err)
			}
		}
		return true, nil
	}

	query := l.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock = ?", key.ProductID, expected)
	if !allowArchived {
		query = query.Where("is_archived = ?", false)
	}
	res := query.Update("stock", next)
	if res.Error != nil {
		return false, fmt.Errorf("update product stock: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ResyncAggregate rewrites the product aggregate as the sum of its variant
// rows. The aggregate is a derived display value once variants exist.
func (l *Ledger) ResyncAggregate(ctx context.Context, productID uuid.UUID) error {
	err := l.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr(
			"(SELECT COALESCE(SUM(stock), 0) FROM product_variant_stocks WHERE product_id = ?)",
			productID,
		)).Error
	if err != nil {
		return fmt.Errorf("resync product aggregate: %w", err)
	}
	return nil
}

// HasVariants reports whether the product's availability is variant-backed.
func (l *Ledger) HasVariants(ctx context.Context, productID uuid.UUID) (bool, error) {
	return l.hasVariants(ctx, productID)
}

func (l *Ledger) hasVariants(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.ProductVariantStock{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count variants: %w", err)
	}
	return count > 0, nil
}

func (l *Ledger) productState(ctx context.Context, productID uuid.UUID) (string, bool, error) {
	var product models.Product
	err := l.db.WithContext(ctx).
		Select("name", "is_archived").
		Where("id = ?", productID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, &ProductUnavailableError{ProductID: productID}
	}
	if err != nil {
		return "", false, fmt.Errorf("load product: %w", err)
	}
	return product.Name, product.IsArchived, nil
}

func (l *Ledger) variantQuery(ctx context.Context, key ItemKey) *gorm.DB {
	return l.db.WithContext(ctx).
		Model(&models.ProductVariantStock{}).
		Where("product_id = ?", key.ProductID).
		Where("(size = ? OR (size IS NULL AND ? IS NULL))", key.Size, key.Size).
		Where("(color = ? OR (color IS NULL AND ? IS NULL))", key.Color, key.Color)
}
