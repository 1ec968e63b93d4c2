package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockline-hq/stockline-backend/pkg/enums"
)

// InventoryTransaction is the append-only stock audit log. Rows are never
// updated or deleted. (product_id, reference_type, reference_id) is the
// idempotency key for automatically generated transactions; the unique
// index ux_inventory_txn_reference backs it. In Postgres the index is
// partial over non-null references; here NULL references compare distinct,
// so manual adjustments stay exempt either way.
type InventoryTransaction struct {
	ID            uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID                      `gorm:"column:product_id;type:uuid;not null;index;uniqueIndex:ux_inventory_txn_reference"`
	QuantityDelta int                            `gorm:"column:quantity_delta;not null"`
	Type          enums.InventoryTransactionType `gorm:"column:type;type:inventory_transaction_type_enum;not null"`
	ReferenceType *enums.ReferenceType           `gorm:"column:reference_type;type:reference_type_enum;uniqueIndex:ux_inventory_txn_reference"`
	ReferenceID   *string                        `gorm:"column:reference_id;uniqueIndex:ux_inventory_txn_reference"`
	Notes         *string                        `gorm:"column:notes"`
	CreatedBy     *uuid.UUID                     `gorm:"column:created_by;type:uuid"`
	CreatedAt     time.Time                      `gorm:"column:created_at;autoCreateTime"`
}
