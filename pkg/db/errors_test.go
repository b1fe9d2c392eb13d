package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUndefinedFunction(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42883", Message: "function reserve_product_stock(uuid, integer) does not exist"}
	if !IsUndefinedFunction(pgErr) {
		t.Fatal("expected SQLSTATE 42883 to be recognized")
	}
	if !IsUndefinedFunction(fmt.Errorf("rpc failed: PGRST202")) {
		t.Fatal("expected gateway signature to be recognized")
	}
	if IsUndefinedFunction(errors.New("connection refused")) {
		t.Fatal("unrelated error misclassified")
	}
	if IsUndefinedFunction(nil) {
		t.Fatal("nil misclassified")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_vouchers_code"}
	if !IsUniqueViolation(pgErr, "uq_vouchers_code") {
		t.Fatal("expected constraint match")
	}
	if IsUniqueViolation(pgErr, "uq_other") {
		t.Fatal("constraint mismatch should not match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: vouchers.code"), "") {
		t.Fatal("expected sqlite unique message to be recognized")
	}
}
