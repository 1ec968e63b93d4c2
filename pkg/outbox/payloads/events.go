package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline-hq/stockline-backend/pkg/enums"
)

// InventoryTransactionRecordedEvent is emitted for every ledger row written.
type InventoryTransactionRecordedEvent struct {
	TransactionID uuid.UUID                      `json:"transaction_id"`
	ProductID     uuid.UUID                      `json:"product_id"`
	QuantityDelta int                            `json:"quantity_delta"`
	OnHandQty     int                            `json:"on_hand_qty"`
	Type          enums.InventoryTransactionType `json:"type"`
	ReferenceType *enums.ReferenceType           `json:"reference_type,omitempty"`
	ReferenceID   *string                        `json:"reference_id,omitempty"`
}

// PurchaseInvoicePaidEvent signals an invoice reaching fully-paid status.
type PurchaseInvoicePaidEvent struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CompanyID     uuid.UUID       `json:"company_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAt        time.Time       `json:"paid_at"`
}

// AgentActionExecutedEvent reports an approved recommendation.
type AgentActionExecutedEvent struct {
	ActionID   uuid.UUID       `json:"action_id"`
	AgentType  enums.AgentType `json:"agent_type"`
	ResolvedBy uuid.UUID       `json:"resolved_by"`
	ResolvedAt time.Time       `json:"resolved_at"`
}
