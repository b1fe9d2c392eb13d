package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/internal/stock"
)

const (
	reserveProcedure = "reserve_product_stock"
	releaseProcedure = "release_product_stock"
	cancelProcedure  = "cancel_order_and_restore_stock"
)

// Cancellation outcomes surfaced by the cancel procedure.
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrCancelNotAllowed = errors.New("order cannot be cancelled in its current state")
)

// procedureResult is the jsonb envelope every stock procedure returns.
type procedureResult struct {
	OK               bool   `json:"ok"`
	Error            string `json:"error"`
	Available        int    `json:"available"`
	AlreadyCancelled bool   `json:"already_cancelled"`
}

// ProcedureBackend reserves and releases stock through server-side functions.
// Each call is atomic inside the database; there is no client-side retry.
type ProcedureBackend struct {
	db *gorm.DB
}

// NewProcedureBackend builds the procedure-backed reserver.
func NewProcedureBackend(db *gorm.DB) *ProcedureBackend {
	return &ProcedureBackend{db: db}
}

// Probe reports whether the reserve procedure is installed. Callers use this
// at startup to pick the initial reservation path without burning a checkout
// attempt on the discovery.
func (b *ProcedureBackend) Probe(ctx context.Context) (bool, error) {
	var installed bool
	err := b.db.WithContext(ctx).
		Raw("SELECT to_regproc(?) IS NOT NULL", reserveProcedure).
		Scan(&installed).Error
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", reserveProcedure, err)
	}
	return installed, nil
}

// Reserve holds qty units atomically. A missing procedure surfaces the
// driver's undefined-function error unchanged so the caller can fall back.
func (b *ProcedureBackend) Reserve(ctx context.Context, key stock.ItemKey, qty int) error {
	result, err := b.call(ctx, "SELECT "+reserveProcedure+"(?, ?, ?, ?)", key.ProductID, qty, key.Size, key.Color)
	if err != nil {
		return err
	}
	if result.OK {
		return nil
	}
	switch result.Error {
	case "INSUFFICIENT_STOCK":
		return &stock.InsufficientStockError{
			ProductID: key.ProductID,
			Size:      key.Size,
			Color:     key.Color,
			Requested: qty,
			Available: result.Available,
		}
	case "PRODUCT_UNAVAILABLE":
		return &stock.ProductUnavailableError{ProductID: key.ProductID, Size: key.Size, Color: key.Color}
	default:
		return fmt.Errorf("%s rejected: %s", reserveProcedure, result.Error)
	}
}

// Release returns qty units atomically.
func (b *ProcedureBackend) Release(ctx context.Context, key stock.ItemKey, qty int) error {
	result, err := b.call(ctx, "SELECT "+releaseProcedure+"(?, ?, ?, ?)", key.ProductID, qty, key.Size, key.Color)
	if err != nil {
		return err
	}
	if result.OK {
		return nil
	}
	if result.Error == "PRODUCT_UNAVAILABLE" {
		return &stock.ProductUnavailableError{ProductID: key.ProductID, Size: key.Size, Color: key.Color}
	}
	return fmt.Errorf("%s rejected: %s", releaseProcedure, result.Error)
}

// CancelOrder cancels the order and restores all of its line stock in one
// atomic call. The second return reports an idempotent no-op on an already
// cancelled order.
func (b *ProcedureBackend) CancelOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	result, err := b.call(ctx, "SELECT "+cancelProcedure+"(?)", orderID)
	if err != nil {
		return false, err
	}
	if result.OK {
		return result.AlreadyCancelled, nil
	}
	switch result.Error {
	case "ORDER_NOT_FOUND":
		return false, ErrOrderNotFound
	case "INVALID_TRANSITION":
		return false, ErrCancelNotAllowed
	default:
		return false, fmt.Errorf("%s rejected: %s", cancelProcedure, result.Error)
	}
}

func (b *ProcedureBackend) call(ctx context.Context, query string, args ...any) (procedureResult, error) {
	var payload string
	if err := b.db.WithContext(ctx).Raw(query, args...).Scan(&payload).Error; err != nil {
		return procedureResult{}, err
	}
	var result procedureResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return procedureResult{}, fmt.Errorf("decode procedure result %q: %w", payload, err)
	}
	return result, nil
}
