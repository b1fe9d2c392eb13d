package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/pkg/db/models"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// aggregateResyncer rewrites the product-level stock sum after variant writes.
type aggregateResyncer interface {
	ResyncAggregate(ctx context.Context, productID uuid.UUID) error
	HasVariants(ctx context.Context, productID uuid.UUID) (bool, error)
}

// CreateInput is the admin payload for a new catalog listing.
type CreateInput struct {
	Name        string
	Price       decimal.Decimal
	Category    string
	Description *string
	ImageURL    *string
	Gallery     []string
	Stock       int
}

// UpdateInput carries partial product updates; nil fields are untouched.
type UpdateInput struct {
	Name        *string
	Price       *decimal.Decimal
	Category    *string
	Description *string
	ImageURL    *string
	Gallery     []string
}

// VariantInput defines one (size, color) stock row.
type VariantInput struct {
	Size  *string
	Color *string
	Stock int
}

// Service exposes catalog reads and the admin mutations.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filter ListFilter) ([]models.Product, error)
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	Archive(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*models.Product, error)
	Unarchive(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.Product, error)
	AdjustStock(ctx context.Context, id uuid.UUID, newStock int) (*models.Product, error)
	ReplaceVariants(ctx context.Context, id uuid.UUID, variants []VariantInput) (*models.Product, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger aggregateResyncer
	log    *logger.Logger
}

// NewService builds the catalog service.
func NewService(repo Repository, tx txRunner, ledger aggregateResyncer, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, ledger: ledger, log: log}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.load(ctx, id)
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	products, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.Price.IsNegative() || input.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price must be positive")
	}
	if input.Category == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product category required")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product stock cannot be negative")
	}

	product := models.Product{
		Name:        input.Name,
		Price:       input.Price,
		Category:    input.Category,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Gallery:     pq.StringArray(input.Gallery),
		Stock:       input.Stock,
	}
	created, err := s.repo.Create(ctx, &product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if *input.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		updates["name"] = *input.Name
	}
	if input.Price != nil {
		if input.Price.IsNegative() || input.Price.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price must be positive")
		}
		updates["price"] = *input.Price
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.Gallery != nil {
		updates["gallery"] = pq.StringArray(input.Gallery)
	}
	if len(updates) == 0 {
		return s.load(ctx, id)
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return s.load(ctx, id)
}

// Archive hides the product from the storefront without touching order
// history. Archived products cannot be purchased.
func (s *service) Archive(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*models.Product, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	updates := map[string]any{
		"is_archived": true,
		"archived_at": now,
		"archived_by": actorID,
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive product")
	}
	return s.load(ctx, id)
}

func (s *service) Unarchive(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	updates := map[string]any{
		"is_archived": false,
		"archived_at": nil,
		"archived_by": nil,
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unarchive product")
	}
	return s.load(ctx, id)
}

// Delete removes the product permanently. Order item snapshots survive
// because they reference the product weakly. The removed record is returned
// so the caller can audit it.
func (s *service) Delete(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteVariants(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return product, nil
}

// AdjustStock sets the aggregate count directly. Variant-managed products are
// rejected; their aggregate is derived and must be edited through variants.
func (s *service) AdjustStock(ctx context.Context, id uuid.UUID, newStock int) (*models.Product, error) {
	if newStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	variantBacked, err := s.ledger.HasVariants(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inspect variants")
	}
	if variantBacked {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stock is variant-managed, edit variants instead")
	}

	if err := s.repo.SetStock(ctx, id, newStock); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
	}
	return s.load(ctx, id)
}

// ReplaceVariants swaps the product's variant set atomically, then resyncs
// the aggregate. A failed resync is logged but does not roll back the new
// variant rows; the aggregate is display-only once variants exist.
func (s *service) ReplaceVariants(ctx context.Context, id uuid.UUID, variants []VariantInput) (*models.Product, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	rows := make([]models.ProductVariantStock, 0, len(variants))
	for _, v := range variants {
		if v.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant stock cannot be negative")
		}
		identity := variantIdentity(v.Size, v.Color)
		if _, dup := seen[identity]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate variant size/color pair")
		}
		seen[identity] = struct{}{}
		rows = append(rows, models.ProductVariantStock{
			ProductID: id,
			Size:      v.Size,
			Color:     v.Color,
			Stock:     v.Stock,
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteVariants(ctx, id); err != nil {
			return err
		}
		return repo.CreateVariants(ctx, rows)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace variants")
	}

	if err := s.ledger.ResyncAggregate(ctx, id); err != nil {
		ctx = s.log.WithProductID(ctx, id.String())
		s.log.Error(ctx, "aggregate stock resync failed after variant save", err)
	}
	return s.load(ctx, id)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func variantIdentity(size, color *string) string {
	key := "|"
	if size != nil {
		key = *size + key
	}
	if color != nil {
		key += *color
	}
	return key
}
