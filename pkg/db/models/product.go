package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the canonical internal catalog entry. OnHandQty is the only
// hot shared field; every mutation to it goes through the inventory
// service so the audit trail stays complete.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SKU          string          `gorm:"column:sku;not null;uniqueIndex"`
	Name         string          `gorm:"column:name;not null"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
	OnHandQty    int             `gorm:"column:on_hand_qty;not null;default:0"`
	ReorderLevel int             `gorm:"column:reorder_level;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
