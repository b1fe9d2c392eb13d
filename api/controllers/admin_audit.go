package controllers

import (
	"net/http"
	"strings"

	"github.com/velogear/velogear-backend/api/responses"
	"github.com/velogear/velogear-backend/api/validators"
	auditsvc "github.com/velogear/velogear-backend/internal/audit"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
	"github.com/velogear/velogear-backend/pkg/logger"
)

// AdminAuditList pages through the audit trail, newest first.
func AdminAuditList(svc auditsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := auditsvc.ListFilter{Page: page}

		if raw := strings.TrimSpace(r.URL.Query().Get("entity_type")); raw != "" {
			entity, err := enums.ParseAuditEntity(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entity_type"))
				return
			}
			filter.EntityType = &entity
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("action")); raw != "" {
			action := enums.AuditAction(strings.ToUpper(raw))
			filter.Action = &action
		}

		logs, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, logs)
	}
}

// AdminAuditRestore undoes a destructive action from its snapshot.
func AdminAuditRestore(svc auditsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logID, err := parseUUIDParam(r, "logId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		restored, err := svc.Restore(r.Context(), logID, actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, restored)
	}
}
