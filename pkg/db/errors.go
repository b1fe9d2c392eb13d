package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres raises SQLSTATE 42883 when a function does not exist. Hosted
// API gateways surface the equivalent condition as "PGRST202".
const (
	pgUndefinedFunction      = "42883"
	gatewayMissingProcedure  = "PGRST202"
	undefinedFunctionMessage = "does not exist"
)

// IsUndefinedFunction reports whether err signals a missing server-side
// procedure, which triggers the client-side reservation fallback.
func IsUndefinedFunction(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedFunction
	}
	msg := err.Error()
	return strings.Contains(msg, gatewayMissingProcedure) ||
		(strings.Contains(msg, "function") && strings.Contains(msg, undefinedFunctionMessage))
}

// IsUniqueViolation reports whether the provided error references a unique
// violation. When constraintName is provided, the helper looks for the
// constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
