package stock

import (
	"fmt"

	"github.com/google/uuid"
)

// InsufficientStockError reports that the requested quantity exceeded what was
// on hand at the moment the write was attempted. Name is filled in when the
// caller knows it, so shoppers see which product blocked the checkout.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Name      string
	Size      *string
	Color     *string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"insufficient stock for product %s%s: requested %d, available %d",
		productLabel(e.ProductID, e.Name), variantSuffix(e.Size, e.Color), e.Requested, e.Available,
	)
}

// ProductUnavailableError reports that the product (or the requested variant)
// does not exist or is archived.
type ProductUnavailableError struct {
	ProductID uuid.UUID
	Name      string
	Size      *string
	Color     *string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s%s is unavailable", productLabel(e.ProductID, e.Name), variantSuffix(e.Size, e.Color))
}

func productLabel(id uuid.UUID, name string) string {
	if name == "" {
		return id.String()
	}
	return fmt.Sprintf("%q (%s)", name, id)
}

func variantSuffix(size, color *string) string {
	if size == nil && color == nil {
		return ""
	}
	return fmt.Sprintf(" (size=%s, color=%s)", deref(size), deref(color))
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
