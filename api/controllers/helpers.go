package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/velogear/velogear-backend/api/middleware"
	"github.com/velogear/velogear-backend/internal/audit"
	"github.com/velogear/velogear-backend/internal/orders"
	"github.com/velogear/velogear-backend/pkg/enums"
	pkgerrors "github.com/velogear/velogear-backend/pkg/errors"
)

func actorFromRequest(r *http.Request) (orders.Actor, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	role := enums.UserRole(middleware.RoleFromContext(r.Context()))
	if !role.IsValid() {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "actor role missing")
	}
	return orders.Actor{UserID: parsed, Role: role}, nil
}

func auditActorFromRequest(r *http.Request) (audit.Actor, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return audit.Actor{}, err
	}
	out := audit.Actor{ID: actor.UserID}
	if email := middleware.EmailFromContext(r.Context()); email != "" {
		out.Email = &email
	}
	return out, nil
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return parsed, nil
}
