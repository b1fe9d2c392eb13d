package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/pkg/db/models"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
)

// Service resolves voucher codes and applies percentage discounts.
type Service interface {
	Resolve(ctx context.Context, code string) (*models.Voucher, error)
	List(ctx context.Context) ([]models.Voucher, error)
	Create(ctx context.Context, code string, discountPercent int) (*models.Voucher, error)
	Delete(ctx context.Context, code string) error
}

type service struct {
	db *gorm.DB
}

// NewService builds a voucher service bound to the provided DB.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{db: db}, nil
}

// NormalizeCode maps user input onto the stored representation. Codes are
// stored upper-cased, so matching is case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) Resolve(ctx context.Context, code string) (*models.Voucher, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	}

	var voucher models.Voucher
	err := s.db.WithContext(ctx).Where("code = ?", normalized).First(&voucher).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found").WithDetails(map[string]any{"code": normalized})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}
	return &voucher, nil
}

func (s *service) List(ctx context.Context) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&vouchers).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vouchers")
	}
	return vouchers, nil
}

func (s *service) Create(ctx context.Context, code string, discountPercent int) (*models.Voucher, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	}
	if discountPercent < 1 || discountPercent > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be between 1 and 100")
	}

	voucher := models.Voucher{Code: normalized, DiscountPercent: discountPercent}
	if err := s.db.WithContext(ctx).Create(&voucher).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "create voucher")
	}
	return &voucher, nil
}

func (s *service) Delete(ctx context.Context, code string) error {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	}
	res := s.db.WithContext(ctx).Where("code = ?", normalized).Delete(&models.Voucher{})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete voucher")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
	}
	return nil
}

// ApplyDiscount computes the discounted total without intermediate rounding.
// The result is rounded to cents once, at the end.
func ApplyDiscount(total decimal.Decimal, discountPercent int) decimal.Decimal {
	if discountPercent <= 0 {
		return total.Round(2)
	}
	if discountPercent >= 100 {
		return decimal.Zero.Round(2)
	}
	remaining := decimal.NewFromInt(100 - int64(discountPercent))
	return total.Mul(remaining).Div(decimal.NewFromInt(100)).Round(2)
}
