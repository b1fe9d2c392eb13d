package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/velogear/velogear-backend/api/responses"
	"github.com/velogear/velogear-backend/api/validators"
	"github.com/velogear/velogear-backend/internal/audit"
	ordersvc "github.com/velogear/velogear-backend/internal/orders"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
)

// AdminOrderList returns every order, optionally filtered by status or user.
func AdminOrderList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := buildOrderFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id"))
				return
			}
			filter.UserID = &userID
		}

		orders, err := svc.List(r.Context(), filter, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

// AdminOrderDetail returns any order by id.
func AdminOrderDetail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type adminOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminOrderUpdateStatus advances the order lifecycle. Setting CANCELLED
// cancels the order and restores stock.
func AdminOrderUpdateStatus(svc ordersvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		auditActor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		before, err := svc.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orderID, next, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := order.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionStatusUpdate,
			EntityType: enums.AuditEntityOrder,
			EntityID:   &entityID,
			Actor:      auditActor,
			Metadata:   map[string]any{"from": string(before.Status), "to": string(order.Status)},
		})
		responses.WriteSuccess(w, order)
	}
}

// AdminOrderCancel cancels any non-terminal order.
func AdminOrderCancel(svc ordersvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		auditActor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := order.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionStatusUpdate,
			EntityType: enums.AuditEntityOrder,
			EntityID:   &entityID,
			Actor:      auditActor,
			Metadata:   map[string]any{"to": string(enums.OrderStatusCancelled)},
		})
		responses.WriteSuccess(w, order)
	}
}
