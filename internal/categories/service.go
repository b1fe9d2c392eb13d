package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/pkg/db"
	"github.com/velogear/velogear-backend/pkg/db/models"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
)

// Service manages catalog categories. Categories are deactivated, not
// deleted, so existing products keep resolving their category code.
type Service interface {
	List(ctx context.Context, includeInactive bool) ([]models.ProductCategory, error)
	Create(ctx context.Context, code, label string) (*models.ProductCategory, error)
	Rename(ctx context.Context, code, label string) (*models.ProductCategory, error)
	SetActive(ctx context.Context, code string, active bool) (*models.ProductCategory, error)
}

type service struct {
	db *gorm.DB
}

// NewService builds a category service bound to the provided DB.
func NewService(conn *gorm.DB) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{db: conn}, nil
}

// NormalizeCode maps user input onto the stored representation.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func (s *service) List(ctx context.Context, includeInactive bool) ([]models.ProductCategory, error) {
	query := s.db.WithContext(ctx).Order("label ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var categories []models.ProductCategory
	if err := query.Find(&categories).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}

func (s *service) Create(ctx context.Context, code, label string) (*models.ProductCategory, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category code required")
	}
	if strings.TrimSpace(label) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category label required")
	}

	category := models.ProductCategory{Code: normalized, Label: strings.TrimSpace(label), IsActive: true}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return &category, nil
}

func (s *service) Rename(ctx context.Context, code, label string) (*models.ProductCategory, error) {
	if strings.TrimSpace(label) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category label required")
	}
	category, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).
		Model(category).
		Update("label", strings.TrimSpace(label)).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rename category")
	}
	return s.load(ctx, code)
}

func (s *service) SetActive(ctx context.Context, code string, active bool) (*models.ProductCategory, error) {
	category, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).
		Model(category).
		Update("is_active", active).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category state")
	}
	return s.load(ctx, code)
}

func (s *service) load(ctx context.Context, code string) (*models.ProductCategory, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category code required")
	}
	var category models.ProductCategory
	err := s.db.WithContext(ctx).Where("code = ?", normalized).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return &category, nil
}
