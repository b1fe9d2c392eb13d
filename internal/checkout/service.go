// Package checkout turns a cart into a persisted order. Stock is reserved
// before anything is written; if the order cannot be saved afterwards, every
// reserved unit is returned before the error reaches the caller.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/velogear/velogear-backend/internal/checkout/reservation"
	"github.com/velogear/velogear-backend/internal/orders"
	"github.com/velogear/velogear-backend/internal/stock"
	"github.com/velogear/velogear-backend/internal/vouchers"
	"github.com/velogear/velogear-backend/pkg/db/models"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
)

type reservationEngine interface {
	ReserveAll(ctx context.Context, lines []reservation.Line) ([]reservation.Held, error)
	ReleaseAll(ctx context.Context, held []reservation.Held) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type voucherResolver interface {
	Resolve(ctx context.Context, code string) (*models.Voucher, error)
}

type cartClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

// Item is one checkout line as submitted by the storefront.
type Item struct {
	ProductID uuid.UUID
	Quantity  int
	Size      *string
	Color     *string
}

// Input carries everything needed to place an order.
type Input struct {
	UserID           uuid.UUID
	Items            []Item
	Address          string
	Phone            string
	PaymentMethod    enums.PaymentMethod
	PaymentReference *string
	VoucherCode      *string
	// BuyNow orders bypass the cart, so the cart is left untouched.
	BuyNow bool
}

// Service places orders.
type Service interface {
	PlaceOrder(ctx context.Context, input Input) (*models.Order, error)
}

type service struct {
	engine   reservationEngine
	products productLoader
	vouchers voucherResolver
	orders   orders.Repository
	tx       txRunner
	cart     cartClearer
	log      *logger.Logger
}

// NewService wires the checkout pipeline. cart may be nil when no cart store
// is configured.
func NewService(
	engine reservationEngine,
	products productLoader,
	resolver voucherResolver,
	ordersRepo orders.Repository,
	tx txRunner,
	cart cartClearer,
	log *logger.Logger,
) (Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("reservation engine required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("voucher resolver required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		engine:   engine,
		products: products,
		vouchers: resolver,
		orders:   ordersRepo,
		tx:       tx,
		cart:     cart,
		log:      log,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input Input) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	ctx = s.log.WithUserID(ctx, input.UserID.String())

	catalog, err := s.loadCatalog(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	lines := make([]reservation.Line, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, reservation.Line{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
		})
	}

	held, err := s.engine.ReserveAll(ctx, lines)
	if err != nil {
		return nil, mapReservationError(err, catalog)
	}

	order, err := s.assembleOrder(ctx, input, catalog)
	if err == nil {
		err = s.persistOrder(ctx, order)
	}
	if err != nil {
		// the order never materialized, put every unit back
		if releaseErr := s.engine.ReleaseAll(ctx, held); releaseErr != nil {
			s.log.Error(ctx, "compensating release after failed order persist", releaseErr)
		}
		return nil, err
	}

	ctx = s.log.WithOrderID(ctx, order.ID.String())
	s.log.Info(ctx, "order placed")

	if !input.BuyNow && s.cart != nil {
		if err := s.cart.Clear(ctx, input.UserID); err != nil {
			// the order exists; a stale cart is an annoyance, not a failure
			s.log.Warn(ctx, "clearing cart after checkout failed")
		}
	}
	return order, nil
}

// assembleOrder snapshots prices and computes the total. Totals are summed in
// decimal and rounded once after the discount.
func (s *service) assembleOrder(ctx context.Context, input Input, catalog map[uuid.UUID]models.Product) (*models.Order, error) {
	items := make([]models.OrderItem, 0, len(input.Items))
	total := decimal.Zero
	for _, item := range input.Items {
		product := catalog[item.ProductID]
		items = append(items, models.OrderItem{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			Price:         product.Price,
			SelectedSize:  item.Size,
			SelectedColor: item.Color,
		})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	var promoApplied *string
	if input.VoucherCode != nil && *input.VoucherCode != "" {
		voucher, err := s.vouchers.Resolve(ctx, *input.VoucherCode)
		switch {
		case err == nil:
			total = vouchers.ApplyDiscount(total, voucher.DiscountPercent)
			promoApplied = &voucher.Code
		case isNotFound(err):
			// an unknown code does not block the purchase
			s.log.Warn(ctx, "voucher code not found, order placed without discount")
		default:
			return nil, err
		}
	}

	return &models.Order{
		UserID:         input.UserID,
		Address:        input.Address,
		Phone:          input.Phone,
		PaymentMethod:  input.PaymentMethod,
		PaymentDetails: input.PaymentReference,
		Status:         enums.OrderStatusPending,
		TotalAmount:    total.Round(2),
		PromoApplied:   promoApplied,
		Items:          items,
	}, nil
}

// persistOrder writes the header and items in a single transaction. A failure
// of either write surfaces as an order persistence failure.
func (s *service) persistOrder(ctx context.Context, order *models.Order) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.orders.WithTx(tx).Create(ctx, order)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "persist order")
	}
	return nil
}

func (s *service) loadCatalog(ctx context.Context, items []Item) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	catalog := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		catalog[product.ID] = product
	}
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "product unavailable").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if product.IsArchived {
			return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, fmt.Sprintf("%s is no longer available", product.Name)).
				WithDetails(map[string]any{"product_id": item.ProductID, "product_name": product.Name})
		}
	}
	return catalog, nil
}

func validateInput(input Input) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one item")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}
	if input.Address == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if input.Phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact phone required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.PaymentMethod.RequiresReference() && (input.PaymentReference == nil || *input.PaymentReference == "") {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference required for this method")
	}
	return nil
}

// mapReservationError translates engine failures into the coded taxonomy the
// API layer renders. The catalog supplies product names so the shopper is
// told which item blocked the checkout, not just its id.
func mapReservationError(err error, catalog map[uuid.UUID]models.Product) error {
	name := func(id uuid.UUID) string {
		if product, ok := catalog[id]; ok {
			return product.Name
		}
		return id.String()
	}

	var insufficient *stock.InsufficientStockError
	if errors.As(err, &insufficient) {
		return pkgerrors.Wrap(pkgerrors.CodeInsufficientStock, err,
			fmt.Sprintf("not enough stock for %s: %d available", name(insufficient.ProductID), insufficient.Available)).
			WithDetails(map[string]any{
				"product_id":   insufficient.ProductID,
				"product_name": name(insufficient.ProductID),
				"requested":    insufficient.Requested,
				"available":    insufficient.Available,
			})
	}
	var unavailable *stock.ProductUnavailableError
	if errors.As(err, &unavailable) {
		return pkgerrors.Wrap(pkgerrors.CodeProductUnavailable, err,
			fmt.Sprintf("%s is no longer available", name(unavailable.ProductID))).
			WithDetails(map[string]any{
				"product_id":   unavailable.ProductID,
				"product_name": name(unavailable.ProductID),
			})
	}
	var contention *reservation.ContentionError
	if errors.As(err, &contention) {
		return pkgerrors.Wrap(pkgerrors.CodeContention, err,
			fmt.Sprintf("%s is in high demand, please retry", name(contention.Key.ProductID))).
			WithDetails(map[string]any{
				"product_id":   contention.Key.ProductID,
				"product_name": name(contention.Key.ProductID),
			})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
}

func isNotFound(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodeNotFound
}
