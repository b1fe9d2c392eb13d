package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/velogear/velogear-backend/api/responses"
	"github.com/velogear/velogear-backend/api/validators"
	"github.com/velogear/velogear-backend/internal/audit"
	productsvc "github.com/velogear/velogear-backend/internal/products"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
)

// recordAudit is best effort: a failed audit write is logged, never surfaced
// to the caller.
func recordAudit(ctx context.Context, logg *logger.Logger, auditSvc audit.Service, entry audit.Entry) {
	if auditSvc == nil {
		return
	}
	if err := auditSvc.Record(ctx, entry); err != nil && logg != nil {
		logg.Error(ctx, "audit record failed", err)
	}
}

type adminProductCreateRequest struct {
	Name        string   `json:"name" validate:"required"`
	Price       string   `json:"price" validate:"required"`
	Category    string   `json:"category" validate:"required"`
	Description *string  `json:"description,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty"`
	Gallery     []string `json:"gallery,omitempty"`
	Stock       int      `json:"stock" validate:"min=0"`
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}
	return price, nil
}

// AdminProductList includes archived listings when requested.
func AdminProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeArchived, err := validators.ParseQueryBool(r, "include_archived")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := productsvc.ListFilter{Page: page, IncludeArchived: includeArchived}
		if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
			filter.Category = &category
		}

		products, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func AdminProductCreate(svc productsvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminProductCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := parsePrice(payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), productsvc.CreateInput{
			Name:        strings.TrimSpace(payload.Name),
			Price:       price,
			Category:    strings.TrimSpace(payload.Category),
			Description: payload.Description,
			ImageURL:    payload.ImageURL,
			Gallery:     payload.Gallery,
			Stock:       payload.Stock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := product.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionCreate,
			EntityType: enums.AuditEntityProduct,
			EntityID:   &entityID,
			Actor:      actor,
			After:      audit.Snapshot(product),
		})
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type adminProductUpdateRequest struct {
	Name        *string  `json:"name,omitempty"`
	Price       *string  `json:"price,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty"`
	Gallery     []string `json:"gallery,omitempty"`
}

func AdminProductUpdate(svc productsvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminProductUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := productsvc.UpdateInput{
			Name:        payload.Name,
			Category:    payload.Category,
			Description: payload.Description,
			ImageURL:    payload.ImageURL,
			Gallery:     payload.Gallery,
		}
		if payload.Price != nil {
			price, err := parsePrice(*payload.Price)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Price = &price
		}

		before, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := product.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionUpdate,
			EntityType: enums.AuditEntityProduct,
			EntityID:   &entityID,
			Actor:      actor,
			Before:     audit.Snapshot(before),
			After:      audit.Snapshot(product),
		})
		responses.WriteSuccess(w, product)
	}
}

func AdminProductArchive(svc productsvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		before, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Archive(r.Context(), productID, actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := product.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionArchive,
			EntityType: enums.AuditEntityProduct,
			EntityID:   &entityID,
			Actor:      actor,
			Before:     audit.Snapshot(before),
			After:      audit.Snapshot(product),
		})
		responses.WriteSuccess(w, product)
	}
}

func AdminProductUnarchive(svc productsvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Unarchive(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := product.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionRestore,
			EntityType: enums.AuditEntityProduct,
			EntityID:   &entityID,
			Actor:      actor,
			After:      audit.Snapshot(product),
		})
		responses.WriteSuccess(w, product)
	}
}

func AdminProductDelete(svc productsvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		removed, err := svc.Delete(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := removed.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionDelete,
			EntityType: enums.AuditEntityProduct,
			EntityID:   &entityID,
			Actor:      actor,
			Before:     audit.Snapshot(removed),
		})
		responses.WriteSuccess(w, nil)
	}
}

type adminAdjustStockRequest struct {
	Stock int `json:"stock" validate:"min=0"`
}

func AdminProductAdjustStock(svc productsvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminAdjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		before, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.AdjustStock(r.Context(), productID, payload.Stock)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := product.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionStockAdjust,
			EntityType: enums.AuditEntityProduct,
			EntityID:   &entityID,
			Actor:      actor,
			Metadata:   map[string]any{"from": before.Stock, "to": product.Stock},
		})
		responses.WriteSuccess(w, product)
	}
}

type adminVariantRequest struct {
	Size  *string `json:"size,omitempty"`
	Color *string `json:"color,omitempty"`
	Stock int     `json:"stock" validate:"min=0"`
}

type adminReplaceVariantsRequest struct {
	Variants []adminVariantRequest `json:"variants" validate:"dive"`
}

func AdminProductReplaceVariants(svc productsvc.Service, auditSvc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		actor, err := auditActorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminReplaceVariantsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		variants := make([]productsvc.VariantInput, 0, len(payload.Variants))
		for _, v := range payload.Variants {
			variants = append(variants, productsvc.VariantInput{
				Size:  v.Size,
				Color: v.Color,
				Stock: v.Stock,
			})
		}

		product, err := svc.ReplaceVariants(r.Context(), productID, variants)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityID := product.ID.String()
		recordAudit(r.Context(), logg, auditSvc, audit.Entry{
			Action:     enums.AuditActionUpdate,
			EntityType: enums.AuditEntityProduct,
			EntityID:   &entityID,
			Actor:      actor,
			Metadata:   map[string]any{"variants": len(variants), "stock": product.Stock},
		})
		responses.WriteSuccess(w, product)
	}
}
