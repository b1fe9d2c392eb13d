package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/velogear/velogear-backend/api/responses"
	"github.com/velogear/velogear-backend/api/validators"
	"github.com/velogear/velogear-backend/internal/audit"
	categoriesvc "github.com/velogear/velogear-backend/internal/categories"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
)

// AdminCategoryList includes deactivated categories.
func AdminCategoryList(svc categoriesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
			return
		}

		categories, err := svc.List(r.Context(), true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

type adminCategoryCreateRequest struct {
	Code  string `json:"code" validate:"required"`
	Label string `json:"label" validate:"required"`
}

func AdminCategoryCreate(svc categoriesvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminCategoryCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.Create(r.Context(), payload.Code, payload.Label)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := category.Code
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionCreate,
			EntityType: enums.AuditEntityCategory,
			EntityID:   &entityID,
			Actor:      actor,
			After:      audit.Snapshot(category),
		})
		responses.WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

type adminCategoryUpdateRequest struct {
	Label  *string `json:"label,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// AdminCategoryUpdate renames or toggles a category. Categories are never
// deleted; deactivation keeps historical products valid.
func AdminCategoryUpdate(svc categoriesvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "category service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "category code is required"))
			return
		}

		var payload adminCategoryUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Label == nil && payload.Active == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update"))
			return
		}

		var category any
		if payload.Label != nil {
			updated, err := svc.Rename(r.Context(), code, *payload.Label)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			category = updated
		}
		if payload.Active != nil {
			updated, err := svc.SetActive(r.Context(), code, *payload.Active)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			category = updated
		}

		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionUpdate,
			EntityType: enums.AuditEntityCategory,
			EntityID:   &code,
			Actor:      actor,
			After:      audit.Snapshot(category),
		})
		responses.WriteSuccess(w, category)
	}
}
