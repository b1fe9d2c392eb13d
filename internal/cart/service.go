// Package cart keeps the customer's server-side cart in Redis. The cart is a
// convenience copy of client state; checkout validates everything against the
// database, so cart writes are never load-bearing for stock accuracy.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/redis"
)

type kvStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CartKey(userID string) string
}

// Item is one cart line.
type Item struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Size      *string   `json:"size,omitempty"`
	Color     *string   `json:"color,omitempty"`
}

// Service reads and writes per-user carts.
type Service interface {
	Items(ctx context.Context, userID uuid.UUID) ([]Item, error)
	Replace(ctx context.Context, userID uuid.UUID, items []Item) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	store kvStore
	ttl   time.Duration
}

// NewService builds the cart service. ttl bounds how long an untouched cart
// survives.
func NewService(store kvStore, ttl time.Duration) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	return &service{store: store, ttl: ttl}, nil
}

func (s *service) Items(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	payload, err := s.store.Get(ctx, s.store.CartKey(userID.String()))
	if errors.Is(err, redis.Nil) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	var items []Item
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	return items, nil
}

func (s *service) Replace(ctx context.Context, userID uuid.UUID, items []Item) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart item product id required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart item quantity must be positive")
		}
	}
	if len(items) == 0 {
		return s.Clear(ctx, userID)
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.store.Set(ctx, s.store.CartKey(userID.String()), string(payload), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := s.store.Del(ctx, s.store.CartKey(userID.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
