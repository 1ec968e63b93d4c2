package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// uniqueIndexColumns maps each unique index to the qualified columns it
// covers. sqlite reports a violation by listing the columns, never the
// index name, so the sqlite path scopes the match through this table.
var uniqueIndexColumns = map[string][]string{
	"ux_invoice_number_company": {
		"purchase_invoices.invoice_number",
		"purchase_invoices.company_id",
	},
	"ux_channel_external_product": {
		"channel_product_mappings.channel_id",
		"channel_product_mappings.external_product_id",
	},
	"ux_inventory_txn_reference": {
		"inventory_transactions.product_id",
		"inventory_transactions.reference_type",
		"inventory_transactions.reference_id",
	},
	"ux_outbox_events_event_aggregate": {
		"outbox_events.event_type",
		"outbox_events.aggregate_id",
	},
}

// IsUniqueViolation reports whether err is a unique-constraint failure on
// the named index. Postgres errors are matched structurally on the driver
// error, pgx first since GORM wraps it; sqlite errors by the violated
// column list. An index name missing from the registry never matches on
// sqlite.
func IsUniqueViolation(err error, indexName string) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == pgUniqueViolation && (indexName == "" || pgxErr.ConstraintName == indexName)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation && (indexName == "" || pqErr.Constraint == indexName)
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if indexName == "" {
		return true
	}
	cols, ok := uniqueIndexColumns[indexName]
	if !ok {
		return false
	}
	for _, col := range cols {
		if !strings.Contains(msg, col) {
			return false
		}
	}
	return true
}
