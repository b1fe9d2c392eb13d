package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/velogear/velogear-backend/api/responses"
	"github.com/velogear/velogear-backend/api/validators"
	"github.com/velogear/velogear-backend/internal/audit"
	vouchersvc "github.com/velogear/velogear-backend/internal/vouchers"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
)

func AdminVoucherList(svc vouchersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable"))
			return
		}

		vouchers, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vouchers)
	}
}

type adminVoucherCreateRequest struct {
	Code            string `json:"code" validate:"required"`
	DiscountPercent int    `json:"discount_percent" validate:"required,min=1,max=100"`
}

func AdminVoucherCreate(svc vouchersvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminVoucherCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		voucher, err := svc.Create(r.Context(), payload.Code, payload.DiscountPercent)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := voucher.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionCreate,
			EntityType: enums.AuditEntityVoucher,
			EntityID:   &entityID,
			Actor:      actor,
			After:      audit.Snapshot(voucher),
		})
		responses.WriteSuccessStatus(w, http.StatusCreated, voucher)
	}
}

func AdminVoucherDelete(svc vouchersvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "voucher code is required"))
			return
		}

		voucher, err := svc.Resolve(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := voucher.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionDelete,
			EntityType: enums.AuditEntityVoucher,
			EntityID:   &entityID,
			Actor:      actor,
			Before:     audit.Snapshot(voucher),
		})
		responses.WriteSuccess(w, nil)
	}
}
