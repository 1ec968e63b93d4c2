package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline-hq/stockline-backend/pkg/enums"
)

// PurchaseInvoice is a supplier bill. AmountPaid is maintained
// transactionally alongside the payment rows, never recomputed by
// scanning on read. Invariants: AmountPaid <= TotalAmount and
// TotalAmount = max(0, Subtotal + TaxAmount - DiscountAmount).
type PurchaseInvoice struct {
	ID             uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceNumber  string                      `gorm:"column:invoice_number;not null;uniqueIndex:ux_invoice_number_company"`
	CompanyID      uuid.UUID                   `gorm:"column:company_id;type:uuid;not null;uniqueIndex:ux_invoice_number_company"`
	InvoiceDate    time.Time                   `gorm:"column:invoice_date;not null"`
	DueDate        *time.Time                  `gorm:"column:due_date"`
	Status         enums.PurchaseInvoiceStatus `gorm:"column:status;type:purchase_invoice_status_enum;not null;default:'draft'"`
	Subtotal       decimal.Decimal             `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	TaxAmount      decimal.Decimal             `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	DiscountAmount decimal.Decimal             `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount    decimal.Decimal             `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	AmountPaid     decimal.Decimal             `gorm:"column:amount_paid;type:numeric(12,2);not null;default:0"`
	Notes          *string                     `gorm:"column:notes"`
	CreatedBy      uuid.UUID                   `gorm:"column:created_by;type:uuid;not null"`
	Items          []PurchaseInvoiceItem       `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

// PurchaseInvoiceItem is a single invoice line. Immutable once created.
type PurchaseInvoiceItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID   uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index"`
	ProductID   *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	Description string          `gorm:"column:description;not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(12,2);not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TaxPercent  decimal.Decimal `gorm:"column:tax_percent;type:numeric(5,2);not null;default:0"`
	TaxAmount   decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	SortOrder   int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Payment records money applied against a purchase invoice.
type Payment struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID   uuid.UUID         `gorm:"column:invoice_id;type:uuid;not null;index"`
	Amount      decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null"`
	PaymentDate time.Time         `gorm:"column:payment_date;not null"`
	Mode        enums.PaymentMode `gorm:"column:mode;type:payment_mode_enum;not null"`
	Reference   *string           `gorm:"column:reference"`
	Notes       *string           `gorm:"column:notes"`
	CreatedBy   uuid.UUID         `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
