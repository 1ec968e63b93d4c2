package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolationPostgres(t *testing.T) {
	t.Parallel()

	pgxErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_invoice_number_company"}
	wrapped := fmt.Errorf("create invoice: %w", pgxErr)

	if !IsUniqueViolation(wrapped, "ux_invoice_number_company") {
		t.Fatal("expected a match on the violated constraint")
	}
	if !IsUniqueViolation(wrapped, "") {
		t.Fatal("expected an unscoped match")
	}
	if IsUniqueViolation(wrapped, "ux_channel_external_product") {
		t.Fatal("expected no match on a different constraint")
	}

	pqErr := &pq.Error{Code: "23505", Constraint: "ux_outbox_events_event_aggregate"}
	if !IsUniqueViolation(fmt.Errorf("emit: %w", pqErr), "ux_outbox_events_event_aggregate") {
		t.Fatal("expected a match on the lib/pq constraint")
	}

	// Non-unique database errors never match, whatever their text says.
	notUnique := &pgconn.PgError{Code: "23503", ConstraintName: "fk_payments_invoice", Message: "violates foreign key"}
	if IsUniqueViolation(fmt.Errorf("delete: %w", notUnique), "") {
		t.Fatal("a foreign key violation must not look like a unique one")
	}
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	t.Parallel()

	msg := errors.New("UNIQUE constraint failed: purchase_invoices.invoice_number, purchase_invoices.company_id")
	if !IsUniqueViolation(msg, "ux_invoice_number_company") {
		t.Fatal("expected the column list to match the registered index")
	}
	if IsUniqueViolation(msg, "ux_inventory_txn_reference") {
		t.Fatal("expected no match for an index over other columns")
	}
	if IsUniqueViolation(msg, "ux_unregistered_index") {
		t.Fatal("an unregistered index name must not match")
	}
	if !IsUniqueViolation(msg, "") {
		t.Fatal("expected an unscoped match on any unique failure")
	}
}

func TestIsUniqueViolationPlainErrors(t *testing.T) {
	t.Parallel()

	if IsUniqueViolation(nil, "ux_invoice_number_company") {
		t.Fatal("nil must not match")
	}
	// An error that merely mentions the index name is not a violation.
	if IsUniqueViolation(errors.New(`parse field "ux_invoice_number_company"`), "ux_invoice_number_company") {
		t.Fatal("mentioning the name must not be enough")
	}
	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatal("unrelated errors must not match")
	}
}
