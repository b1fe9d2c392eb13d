package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/velogear/velogear-backend/api/responses"
	"github.com/velogear/velogear-backend/api/validators"
	checkoutsvc "github.com/velogear/velogear-backend/internal/checkout"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
)

type checkoutItemRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid4"`
	Quantity  int     `json:"quantity" validate:"required,min=1"`
	Size      *string `json:"size,omitempty"`
	Color     *string `json:"color,omitempty"`
}

type checkoutRequest struct {
	Items            []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Address          string                `json:"address" validate:"required"`
	Phone            string                `json:"phone" validate:"required"`
	PaymentMethod    string                `json:"payment_method" validate:"required"`
	PaymentReference *string               `json:"payment_reference,omitempty"`
	VoucherCode      *string               `json:"voucher_code,omitempty"`
	BuyNow           bool                  `json:"buy_now,omitempty"`
}

// Checkout places an order from the submitted lines.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(strings.ToUpper(strings.TrimSpace(payload.PaymentMethod)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		items := make([]checkoutsvc.Item, 0, len(payload.Items))
		for _, item := range payload.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			items = append(items, checkoutsvc.Item{
				ProductID: productID,
				Quantity:  item.Quantity,
				Size:      item.Size,
				Color:     item.Color,
			})
		}

		order, err := svc.PlaceOrder(r.Context(), checkoutsvc.Input{
			UserID:           actor.UserID,
			Items:            items,
			Address:          strings.TrimSpace(payload.Address),
			Phone:            strings.TrimSpace(payload.Phone),
			PaymentMethod:    method,
			PaymentReference: payload.PaymentReference,
			VoucherCode:      payload.VoucherCode,
			BuyNow:           payload.BuyNow,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
